package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RecMaxPerDay != 3 {
		t.Errorf("RecMaxPerDay = %d, want 3", cfg.RecMaxPerDay)
	}
	if cfg.MaxSteps != 25 {
		t.Errorf("MaxSteps = %d, want 25", cfg.MaxSteps)
	}
	if cfg.ExecutorMaxRetries != 3 {
		t.Errorf("ExecutorMaxRetries = %d, want 3", cfg.ExecutorMaxRetries)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surf.yaml")
	if err := os.WriteFile(path, []byte("rec_max_per_day: 7\nmax_steps: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RecMaxPerDay != 7 {
		t.Errorf("RecMaxPerDay = %d, want 7 (from yaml)", cfg.RecMaxPerDay)
	}
	if cfg.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want 10 (from yaml)", cfg.MaxSteps)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surf.yaml")
	if err := os.WriteFile(path, []byte("max_steps: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SURF_MAX_STEPS", "99")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxSteps != 99 {
		t.Errorf("MaxSteps = %d, want 99 (env should win over yaml)", cfg.MaxSteps)
	}
}

func TestProductionRequiresPrivacySalt(t *testing.T) {
	t.Setenv("SURF_ENV", "production")
	t.Setenv("PRIVACY_SALT", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when SURF_ENV=production without PRIVACY_SALT")
	}
}

func TestResolvePath(t *testing.T) {
	got := ResolvePath("/etc/surf/surf.yaml", "data.db")
	if got != "/etc/surf/data.db" {
		t.Errorf("ResolvePath() = %s, want /etc/surf/data.db", got)
	}
	if ResolvePath("", "/abs/data.db") != "/abs/data.db" {
		t.Error("ResolvePath() should pass through absolute paths")
	}
}
