package model

import (
	"github.com/rotisserie/eris"
)

// ParsedScenarioField is one override extracted from a free-text query.
type ParsedScenarioField struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Value        any     `json:"value"`
	DisplayValue string  `json:"display_value"`
	Confidence   float64 `json:"confidence"`
}

// ScenarioConfidence carries the aggregate and per-field extraction
// confidence. Fields keys exactly match the keys present in
// ParsedScenario.Fields.
type ScenarioConfidence struct {
	Overall float64            `json:"overall"`
	Fields  map[string]float64 `json:"fields"`
}

// ParsedScenario is the structured result of parsing one scenario query.
// Fields preserves extraction order; Overrides is the key→value map the
// caller merges into a ProjectionInput.
type ParsedScenario struct {
	Overrides     map[string]any        `json:"overrides"`
	Fields        []ParsedScenarioField `json:"fields"`
	Confidence    ScenarioConfidence    `json:"confidence"`
	OriginalQuery string                `json:"original_query"`
}

// Validate checks the scenario's internal invariants: per-field confidence
// keys mirror Fields exactly, Overrides never references a key absent from
// Fields, and every confidence value lies in [0, 1].
func (s *ParsedScenario) Validate() error {
	if s.Confidence.Overall < 0 || s.Confidence.Overall > 1 {
		return eris.Errorf("scenario: overall confidence %v out of range", s.Confidence.Overall)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Key] {
			return eris.Errorf("scenario: duplicate field %q", f.Key)
		}
		seen[f.Key] = true
		if f.Confidence < 0 || f.Confidence > 1 {
			return eris.Errorf("scenario: field %q confidence %v out of range", f.Key, f.Confidence)
		}
		c, ok := s.Confidence.Fields[f.Key]
		if !ok {
			return eris.Errorf("scenario: field %q missing from confidence map", f.Key)
		}
		if c != f.Confidence {
			return eris.Errorf("scenario: field %q confidence mismatch", f.Key)
		}
	}
	if len(s.Confidence.Fields) != len(s.Fields) {
		return eris.Errorf("scenario: confidence map has %d keys, fields has %d", len(s.Confidence.Fields), len(s.Fields))
	}
	for k := range s.Overrides {
		if !seen[k] {
			return eris.Errorf("scenario: override %q has no matching field", k)
		}
	}
	return nil
}

// FailureReason classifies why a scenario parse failed.
type FailureReason string

const (
	// FailureUpstreamUnavailable: the AI provider errored or timed out.
	FailureUpstreamUnavailable FailureReason = "upstream_unavailable"
	// FailureUnparseableResponse: provider output could not be mapped onto
	// the override schema at all.
	FailureUnparseableResponse FailureReason = "unparseable_response"
	// FailureLowConfidence: aggregate confidence fell below the configured
	// threshold.
	FailureLowConfidence FailureReason = "low_confidence"
)

// ScenarioParseResponse is the discriminated outcome of a parse: Success
// with Data, or not with Reason and a human-readable Error. Never both.
type ScenarioParseResponse struct {
	Success bool            `json:"success"`
	Data    *ParsedScenario `json:"data,omitempty"`
	Reason  FailureReason   `json:"reason,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ScenarioSuccess wraps a parsed scenario in a success response.
func ScenarioSuccess(data *ParsedScenario) ScenarioParseResponse {
	return ScenarioParseResponse{Success: true, Data: data}
}

// ScenarioFailure builds a failure response with a classified reason.
func ScenarioFailure(reason FailureReason, msg string) ScenarioParseResponse {
	return ScenarioParseResponse{Success: false, Reason: reason, Error: msg}
}
