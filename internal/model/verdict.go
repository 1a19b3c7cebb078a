package model

import "time"

// Verdict is the engine's classification of the current activity.
type Verdict string

// Verdicts.
const (
	VerdictUnknown          Verdict = "unknown"
	VerdictOnTask           Verdict = "onTask"
	VerdictOffTaskCandidate Verdict = "offTaskCandidate"
	VerdictOffTask          Verdict = "offTask"
)

// ScorerConfig holds the hysteresis settings. Values are clamped by the settings
// store; the engine uses them as given.
type ScorerConfig struct {
	Grace       time.Duration
	Persistence int
	Cooldown    time.Duration
}

// DefaultScorerConfig returns the default hysteresis settings.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Grace:       20 * time.Second,
		Persistence: 3,
		Cooldown:    45 * time.Second,
	}
}

// ScorerState is the engine's mutable state.
type ScorerState struct {
	LastActed time.Time
	Verdict   Verdict
	Reason    string
	OffCount  int
}
