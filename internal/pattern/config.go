package pattern

import "surf-core/internal/config"

// ConfigFromRuntime translates the ambient RuntimeConfig's recommendation
// and pattern-engine knobs into the Engine's Config.
func ConfigFromRuntime(c config.RuntimeConfig) Config {
	return Config{
		LookbackDays:    c.PatternLookbackDays,
		MergeSimilarity: c.PatternMergeSimilarity,
		CooldownHours:   c.RecPatternCooldownHours,
		MaxPerDay:       c.RecMaxPerDay,
		MinConfidence:   c.RecMinConfidence,
		AppSequence: Thresholds{
			MinOccurrences: c.RecMinOccurrencesAppSeq,
			MinSimilarity:  c.RecMinSimilarityAppSeq,
		},
		KeywordRepeat: Thresholds{
			MinOccurrences: c.RecMinOccurrencesKeyword,
			MinSimilarity:  c.RecMinSimilarityKeyword,
		},
		FilePattern: Thresholds{
			MinOccurrences: c.RecMinOccurrencesFile,
			MinSimilarity:  c.RecMinSimilarityFile,
		},
		TimeBasedAction: Thresholds{
			MinOccurrences: c.RecMinOccurrencesTime,
			MinSimilarity:  c.RecMinSimilarityTime,
		},
	}
}
