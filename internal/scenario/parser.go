// Package scenario turns a free-text what-if query into structured,
// confidence-scored overrides of projection parameters.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/resilience"
)

const extractSystemText = "You are a financial-planning assistant extracting projection parameter changes from a user's what-if question. Return only a valid JSON object matching the requested schema. Express rates as decimal fractions (20% -> 0.20). Only include parameters the user actually mentioned."

const extractPromptFmt = `Recognized projection parameters:
%s

User query: %s

Return a valid JSON object:
{"fields": [{"key": "<parameter key>", "value": <extracted value>, "confidence": <0.0-1.0>}]}`

// Config controls parser behaviour.
type Config struct {
	// ConfidenceThreshold rejects results whose aggregate confidence falls
	// below it. Zero disables the check.
	ConfidenceThreshold float64
	// Timeout bounds the provider round trip. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Parser maps provider output onto the override schema. Each Parse call is
// one provider round trip; there is no shared mutable state between calls.
type Parser struct {
	provider Provider
	schema   *model.OverrideSchema
	cfg      Config
}

// NewParser creates a Parser for the given provider and schema.
func NewParser(provider Provider, schema *model.OverrideSchema, cfg Config) *Parser {
	return &Parser{provider: provider, schema: schema, cfg: cfg}
}

// wireResponse is the JSON contract expected from the provider.
type wireResponse struct {
	Fields []wireField `json:"fields"`
}

type wireField struct {
	Key        string `json:"key"`
	Value      any    `json:"value"`
	Confidence any    `json:"confidence"`
}

// Parse extracts overrides from query. Failures are classified and
// returned in the response, never as panics or Go errors: the caller gets
// either a complete ParsedScenario or nothing. A cancelled or timed-out
// provider call yields an upstream failure, not a partial scenario.
func (p *Parser) Parse(ctx context.Context, query string) model.ScenarioParseResponse {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.ScenarioFailure(model.FailureUnparseableResponse, "query is empty")
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(extractPromptFmt, p.describeSchema(), query)

	raw, err := p.provider.Complete(ctx, extractSystemText, prompt)
	if err != nil {
		if resilience.IsUpstreamUnavailable(err) {
			zap.L().Warn("scenario: provider unavailable", zap.Error(err))
			return model.ScenarioFailure(model.FailureUpstreamUnavailable, "AI provider is temporarily unavailable")
		}
		zap.L().Error("scenario: provider request failed", zap.Error(err))
		return model.ScenarioFailure(model.FailureUpstreamUnavailable, "AI provider request failed")
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &wire); err != nil {
		zap.L().Warn("scenario: unparseable provider output",
			zap.String("query", query),
			zap.Error(err),
		)
		return model.ScenarioFailure(model.FailureUnparseableResponse, "provider output could not be parsed")
	}

	fields := p.mapFields(wire.Fields)
	if len(fields) == 0 {
		return model.ScenarioFailure(model.FailureUnparseableResponse, "no recognized parameters in provider output")
	}

	// Aggregate confidence: arithmetic mean of per-field confidences.
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	overall := sum / float64(len(fields))

	if p.cfg.ConfidenceThreshold > 0 && overall < p.cfg.ConfidenceThreshold {
		zap.L().Info("scenario: low confidence result rejected",
			zap.Float64("overall", overall),
			zap.Float64("threshold", p.cfg.ConfidenceThreshold),
		)
		return model.ScenarioFailure(model.FailureLowConfidence,
			fmt.Sprintf("extraction confidence %.2f below threshold %.2f", overall, p.cfg.ConfidenceThreshold))
	}

	overrides := make(map[string]any, len(fields))
	confidences := make(map[string]float64, len(fields))
	for _, f := range fields {
		overrides[f.Key] = f.Value
		confidences[f.Key] = f.Confidence
	}

	parsed := &model.ParsedScenario{
		Overrides:     overrides,
		Fields:        fields,
		Confidence:    model.ScenarioConfidence{Overall: overall, Fields: confidences},
		OriginalQuery: query,
	}
	if err := parsed.Validate(); err != nil {
		zap.L().Error("scenario: invariant violation after mapping", zap.Error(err))
		return model.ScenarioFailure(model.FailureUnparseableResponse, "provider output could not be mapped onto the schema")
	}

	return model.ScenarioSuccess(parsed)
}

// mapFields validates wire fields against the schema. Unknown keys and
// duplicates are dropped; values are coerced to the field's declared type.
func (p *Parser) mapFields(wire []wireField) []model.ParsedScenarioField {
	var fields []model.ParsedScenarioField
	seen := make(map[string]bool, len(wire))

	for _, wf := range wire {
		spec := p.schema.ByKey(wf.Key)
		if spec == nil {
			zap.L().Debug("scenario: dropping unknown key", zap.String("key", wf.Key))
			continue
		}
		if seen[wf.Key] {
			zap.L().Debug("scenario: dropping duplicate key", zap.String("key", wf.Key))
			continue
		}

		value, ok := coerceValue(wf.Value, spec)
		if !ok {
			zap.L().Debug("scenario: dropping uncoercible value",
				zap.String("key", wf.Key),
				zap.Any("value", wf.Value),
			)
			continue
		}

		conf, _ := toFloat64(wf.Confidence)
		conf = clamp01(conf)

		seen[wf.Key] = true
		fields = append(fields, model.ParsedScenarioField{
			Key:          spec.Key,
			Label:        spec.Label,
			Value:        value,
			DisplayValue: formatValue(value, spec),
			Confidence:   conf,
		})
	}

	return fields
}

// describeSchema renders the schema as prompt context, one parameter per
// line.
func (p *Parser) describeSchema() string {
	var b strings.Builder
	for _, f := range p.schema.Fields {
		fmt.Fprintf(&b, "- %s (%s): %s", f.Key, f.Type, f.Label)
		if f.Format == model.FormatPercent {
			b.WriteString(", as a decimal fraction")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// coerceValue converts a raw extracted value to the field's declared type.
// Percent fields given as percentage points (20 rather than 0.20) are
// normalized to fractions. Out-of-range numeric values are dropped.
func coerceValue(v any, spec *model.OverrideField) (any, bool) {
	switch spec.Type {
	case model.FieldText:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		return strings.TrimSpace(s), true

	case model.FieldNumber, model.FieldInteger:
		n, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		// Percentage points only plausibly start at 1; a fraction-scale
		// value just above Max is out of range, not points.
		if spec.Format == model.FormatPercent && n >= 1 && n > spec.Max && n <= spec.Max*100 {
			n /= 100
		}
		if spec.Min != 0 || spec.Max != 0 {
			if n < spec.Min || n > spec.Max {
				return nil, false
			}
		}
		if spec.Type == model.FieldInteger {
			return int(math.Round(n)), true
		}
		return n, true

	default:
		return nil, false
	}
}

// formatValue renders a coerced value for display.
func formatValue(v any, spec *model.OverrideField) string {
	switch spec.Format {
	case model.FormatPercent:
		if n, ok := toFloat64(v); ok {
			// Round to hundredths of a point so 0.07 renders as 7%, not
			// 7.000000000000001%.
			return strconv.FormatFloat(math.Round(n*10000)/100, 'f', -1, 64) + "%"
		}
	case model.FormatCurrency:
		if n, ok := toFloat64(v); ok {
			return "$" + groupThousands(n)
		}
	case model.FormatYears:
		if n, ok := toFloat64(v); ok {
			return strconv.Itoa(int(math.Round(n)))
		}
	}
	return fmt.Sprintf("%v", v)
}

// groupThousands formats a non-negative amount with comma separators,
// dropping fractional cents.
func groupThousands(n float64) string {
	s := strconv.FormatFloat(math.Abs(n), 'f', 0, 64)
	var b strings.Builder
	if n < 0 {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// toFloat64 attempts to convert an any value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
