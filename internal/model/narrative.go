package model

import "time"

// NarrativeOutcome classifies how a narrative request ended.
type NarrativeOutcome string

const (
	OutcomeGenerated NarrativeOutcome = "generated"
	OutcomeCached    NarrativeOutcome = "cached"
	OutcomeRejected  NarrativeOutcome = "rejected"
	OutcomeFailed    NarrativeOutcome = "failed"
)

// NarrativeResult is what the narrative pipeline returns to its caller on
// success. Rejected narratives carry the violated phrases but never the
// generated text.
type NarrativeResult struct {
	Summary     string          `json:"summary,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	CacheHit    bool            `json:"cache_hit"`
	Scenario    *ParsedScenario `json:"scenario,omitempty"`
	Rejected    bool            `json:"rejected"`
	Violations  []string        `json:"violations,omitempty"`
}

// CachedNarrative is a stored narrative summary keyed by projection
// fingerprint.
type CachedNarrative struct {
	Fingerprint string    `json:"fingerprint"`
	Summary     string    `json:"summary"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NarrativeRecord is one audit-log row for a narrative request.
type NarrativeRecord struct {
	ID          string           `json:"id"`
	Fingerprint string           `json:"fingerprint"`
	Query       string           `json:"query"`
	Outcome     NarrativeOutcome `json:"outcome"`
	CacheHit    bool             `json:"cache_hit"`
	DurationMS  int64            `json:"duration_ms"`
	CreatedAt   time.Time        `json:"created_at"`
}
