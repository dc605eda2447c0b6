// Package config loads RuntimeConfig with the same three-tier precedence the
// teacher's devops config used: struct-tag defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig models every environment variable named in spec §6 as a
// typed field, plus the ambient fields (paths, ports) the teacher's own
// config layer always carries.
type RuntimeConfig struct {
	// Ambient
	Env         string `env:"SURF_ENV" yaml:"env" default:"development"`
	LogLevel    string `env:"SURF_LOG_LEVEL" yaml:"log_level" default:"info"`
	HTTPAddr    string `env:"SURF_HTTP_ADDR" yaml:"http_addr" default:"127.0.0.1:8765"`
	DBPath      string `env:"SURF_DB_PATH" yaml:"db_path" default:"./surf-core.db"`
	VectorDir   string `env:"SURF_VECTOR_DIR" yaml:"vector_dir" default:"./surf-core.vectors"`
	LockFile    string `env:"SURF_LOCK_FILE" yaml:"lock_file" default:"./surf-core.lock"`
	RasterBytes int     `env:"SURF_RASTER_BUDGET_BYTES" yaml:"raster_budget_bytes" default:"1048576"`

	// Privacy / Event Pipeline
	PrivacySalt      string `env:"PRIVACY_SALT" yaml:"privacy_salt" default:""`
	EventQueueSize   int    `env:"SURF_EVENT_QUEUE_SIZE" yaml:"event_queue_size" default:"1000"`
	FlushBatchSize   int    `env:"SURF_FLUSH_BATCH_SIZE" yaml:"flush_batch_size" default:"50"`
	FlushMaxAgeSecs  int    `env:"SURF_FLUSH_MAX_AGE_SECS" yaml:"flush_max_age_secs" default:"60"`
	SessionIdleMins  int    `env:"SURF_SESSION_IDLE_MINUTES" yaml:"session_idle_minutes" default:"15"`

	// Recommendation / Pattern Engine
	RecMaxPerDay               int     `env:"REC_MAX_PER_DAY" yaml:"rec_max_per_day" default:"3"`
	RecMinConfidence           float64 `env:"REC_MIN_CONFIDENCE" yaml:"rec_min_confidence" default:"0.5"`
	RecPatternCooldownHours    int     `env:"REC_PATTERN_COOLDOWN_HOURS" yaml:"rec_pattern_cooldown_hours" default:"72"`
	RecMinOccurrencesAppSeq    int     `env:"REC_MIN_OCCURRENCES_APP_SEQUENCE" yaml:"rec_min_occurrences_app_sequence" default:"3"`
	RecMinOccurrencesKeyword   int     `env:"REC_MIN_OCCURRENCES_KEYWORD_REPEAT" yaml:"rec_min_occurrences_keyword_repeat" default:"5"`
	RecMinOccurrencesFile      int     `env:"REC_MIN_OCCURRENCES_FILE_PATTERN" yaml:"rec_min_occurrences_file_pattern" default:"3"`
	RecMinOccurrencesTime      int     `env:"REC_MIN_OCCURRENCES_TIME_BASED_ACTION" yaml:"rec_min_occurrences_time_based_action" default:"3"`
	RecMinSimilarityAppSeq     float64 `env:"REC_MIN_SIMILARITY_APP_SEQUENCE" yaml:"rec_min_similarity_app_sequence" default:"0.8"`
	RecMinSimilarityKeyword    float64 `env:"REC_MIN_SIMILARITY_KEYWORD_REPEAT" yaml:"rec_min_similarity_keyword_repeat" default:"0.8"`
	RecMinSimilarityFile       float64 `env:"REC_MIN_SIMILARITY_FILE_PATTERN" yaml:"rec_min_similarity_file_pattern" default:"0.8"`
	RecMinSimilarityTime       float64 `env:"REC_MIN_SIMILARITY_TIME_BASED_ACTION" yaml:"rec_min_similarity_time_based_action" default:"0.8"`
	PatternLookbackDays        int     `env:"SURF_PATTERN_LOOKBACK_DAYS" yaml:"pattern_lookback_days" default:"7"`
	PatternMergeSimilarity     float64 `env:"SURF_PATTERN_MERGE_SIMILARITY" yaml:"pattern_merge_similarity" default:"0.92"`
	PatternTickCron            string  `env:"SURF_PATTERN_TICK_CRON" yaml:"pattern_tick_cron" default:"*/5 * * * *"`

	// Planner
	ContextPruneMaxMessages int    `env:"CONTEXT_PRUNE_MAX_MESSAGES" yaml:"context_prune_max_messages" default:"40"`
	SessionResetMode        string `env:"SESSION_RESET_MODE" yaml:"session_reset_mode" default:"off"`
	SessionResetAtHour      int    `env:"SESSION_RESET_AT_HOUR" yaml:"session_reset_at_hour" default:"4"`
	SessionResetIdleMinutes int    `env:"SESSION_RESET_IDLE_MINUTES" yaml:"session_reset_idle_minutes" default:"120"`
	MaxSteps                int    `env:"SURF_MAX_STEPS" yaml:"max_steps" default:"25"`
	ExecutorMaxReplans      int    `env:"EXECUTOR_MAX_REPLANS" yaml:"executor_max_replans" default:"1"`

	// Action Executor / shell policy
	ShellAllowComposites   bool `env:"SHELL_ALLOW_COMPOSITES" yaml:"shell_allow_composites" default:"false"`
	ShellAllowSubstitution bool `env:"SHELL_ALLOW_SUBSTITUTION" yaml:"shell_allow_substitution" default:"false"`
	ExecutorMaxRetries     int  `env:"EXECUTOR_MAX_RETRIES" yaml:"executor_max_retries" default:"3"`
	RoutineMaxRetries      int  `env:"ROUTINE_MAX_RETRIES" yaml:"routine_max_retries" default:"3"`
	RoutineRetryDelaySecs  int  `env:"ROUTINE_RETRY_DELAY_SECS" yaml:"routine_retry_delay_secs" default:"5"`

	// CORS
	CORSOrigins string `env:"SURF_CORS_ORIGINS" yaml:"cors_origins" default:"http://localhost:3000,http://127.0.0.1:3000"`

	// LLM client (plan and proposal generation)
	LLMAPIKey     string `env:"ANTHROPIC_API_KEY" yaml:"llm_api_key" default:""`
	LLMBaseURL    string `env:"SURF_LLM_BASE_URL" yaml:"llm_base_url" default:"https://api.anthropic.com/v1"`
	LLMModel      string `env:"SURF_LLM_MODEL" yaml:"llm_model" default:"claude-3-5-sonnet-latest"`
	LLMMaxTokens  int    `env:"SURF_LLM_MAX_TOKENS" yaml:"llm_max_tokens" default:"1024"`
	LLMTimeoutSecs int   `env:"SURF_LLM_TIMEOUT_SECS" yaml:"llm_timeout_secs" default:"30"`
}

// Load applies defaults, then an optional YAML file at configPath (if it
// exists), then environment variables, in that order.
func Load(configPath string) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{}
	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if configPath != "" {
		if err := overlayYAML(cfg, configPath); err != nil {
			return nil, fmt.Errorf("load yaml config %s: %w", configPath, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}

	if cfg.Env == "production" && cfg.PrivacySalt == "" {
		return nil, fmt.Errorf("PRIVACY_SALT is required when SURF_ENV=production")
	}
	return cfg, nil
}

func applyDefaults(cfg *RuntimeConfig) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		def, ok := field.Tag.Lookup("default")
		if !ok {
			continue
		}
		if err := setField(v.Field(i), def); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func overlayYAML(cfg *RuntimeConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key, ok := field.Tag.Lookup("yaml")
		if !ok {
			continue
		}
		val, present := raw[key]
		if !present {
			continue
		}
		if err := setField(v.Field(i), fmt.Sprintf("%v", val)); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func applyEnv(cfg *RuntimeConfig) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		val, present := os.LookupEnv(key)
		if !present {
			continue
		}
		if err := setField(v.Field(i), val); err != nil {
			return fmt.Errorf("field %s (env %s): %w", field.Name, key, err)
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// ResolvePath joins a possibly-relative path against the directory the
// config file lives in, mirroring the teacher's resolvePath helper so
// relative DB/vector paths behave the same regardless of working directory.
func ResolvePath(configPath, target string) string {
	if filepath.IsAbs(target) || configPath == "" {
		return target
	}
	return filepath.Join(filepath.Dir(configPath), target)
}
