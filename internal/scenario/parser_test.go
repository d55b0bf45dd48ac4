package scenario

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planner-cli/internal/model"
)

// cannedProvider returns a fixed response or error, recording the prompt.
type cannedProvider struct {
	response string
	err      error

	lastSystem string
	lastPrompt string
}

func (c *cannedProvider) Complete(_ context.Context, system, prompt string) (string, error) {
	c.lastSystem = system
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func newTestParser(p Provider, cfg Config) *Parser {
	return NewParser(p, model.DefaultOverrideSchema(), cfg)
}

func TestParse_Success(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [
			{"key": "savingsRate", "value": 0.20, "confidence": 0.95},
			{"key": "retirementAge", "value": 62, "confidence": 0.9}
		]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "bump my savings rate to 20% and retire at 62")
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)

	assert.Equal(t, map[string]any{"savingsRate": 0.20, "retirementAge": 62}, resp.Data.Overrides)
	assert.Len(t, resp.Data.Fields, 2)
	assert.Equal(t, "bump my savings rate to 20% and retire at 62", resp.Data.OriginalQuery)

	// Mean of 0.95 and 0.9.
	assert.InDelta(t, 0.925, resp.Data.Confidence.Overall, 0.001)
	require.NoError(t, resp.Data.Validate())
}

func TestParse_ConfidenceKeysMirrorFields(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [
			{"key": "savingsRate", "value": 0.1, "confidence": 0.8},
			{"key": "expectedReturn", "value": 0.06, "confidence": 0.7}
		]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save 10% and assume 6% returns")
	require.True(t, resp.Success)

	keys := make(map[string]bool)
	for _, f := range resp.Data.Fields {
		keys[f.Key] = true
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
	}
	assert.Len(t, resp.Data.Confidence.Fields, len(keys))
	for k := range resp.Data.Confidence.Fields {
		assert.True(t, keys[k])
	}
}

func TestParse_UnknownKeysDropped(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [
			{"key": "savingsRate", "value": 0.15, "confidence": 0.9},
			{"key": "favoriteColor", "value": "blue", "confidence": 0.99}
		]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save 15%")
	require.True(t, resp.Success)
	assert.Len(t, resp.Data.Fields, 1)
	assert.Equal(t, "savingsRate", resp.Data.Fields[0].Key)
	assert.NotContains(t, resp.Data.Overrides, "favoriteColor")
}

func TestParse_DuplicateKeysKeepFirst(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [
			{"key": "retirementAge", "value": 62, "confidence": 0.9},
			{"key": "retirementAge", "value": 65, "confidence": 0.5}
		]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "retire at 62")
	require.True(t, resp.Success)
	require.Len(t, resp.Data.Fields, 1)
	assert.Equal(t, 62, resp.Data.Overrides["retirementAge"])
}

func TestParse_PercentPointsNormalized(t *testing.T) {
	// Model answered in percentage points despite instructions.
	provider := &cannedProvider{
		response: `{"fields": [{"key": "savingsRate", "value": 20, "confidence": 0.9}]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save 20%")
	require.True(t, resp.Success)
	assert.InDelta(t, 0.20, resp.Data.Overrides["savingsRate"].(float64), 0.0001)
	assert.Equal(t, "20%", resp.Data.Fields[0].DisplayValue)
}

func TestCoerceValue_PercentJustAboveMaxDropped(t *testing.T) {
	// A fraction-scale value slightly above the limit is out of range, not
	// percentage points; 0.6 must not be reinterpreted as 0.006.
	spec := model.DefaultOverrideSchema().ByKey("expectedReturn")
	require.NotNil(t, spec)

	_, ok := coerceValue(0.6, spec)
	assert.False(t, ok)

	// Genuine percentage points still normalize.
	v, ok := coerceValue(40, spec)
	require.True(t, ok)
	assert.InDelta(t, 0.40, v.(float64), 0.0001)
}

func TestParse_OutOfRangeValueDropped(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [{"key": "retirementAge", "value": 250, "confidence": 0.9}]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "retire at 250")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUnparseableResponse, resp.Reason)
}

func TestParse_ConfidenceClamped(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [{"key": "savingsRate", "value": 0.1, "confidence": 1.7}]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save 10%")
	require.True(t, resp.Success)
	assert.Equal(t, 1.0, resp.Data.Fields[0].Confidence)
}

func TestParse_MarkdownFencedResponse(t *testing.T) {
	provider := &cannedProvider{
		response: "Here you go:\n```json\n{\"fields\": [{\"key\": \"savingsRate\", \"value\": 0.25, \"confidence\": 0.8}]}\n```",
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save a quarter of my income")
	require.True(t, resp.Success)
	assert.InDelta(t, 0.25, resp.Data.Overrides["savingsRate"].(float64), 0.0001)
}

func TestParse_UpstreamUnavailable(t *testing.T) {
	provider := &cannedProvider{err: syscall.ECONNREFUSED}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "retire at 60")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUpstreamUnavailable, resp.Reason)
	assert.Nil(t, resp.Data)
	assert.NotEmpty(t, resp.Error)
}

func TestParse_PermanentProviderErrorStillUpstream(t *testing.T) {
	provider := &cannedProvider{err: errors.New("invalid api key")}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "retire at 60")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUpstreamUnavailable, resp.Reason)
}

func TestParse_UnparseableResponse(t *testing.T) {
	provider := &cannedProvider{response: "I could not determine any parameters, sorry!"}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "do something vague")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUnparseableResponse, resp.Reason)
}

func TestParse_NoRecognizedFields(t *testing.T) {
	provider := &cannedProvider{response: `{"fields": []}`}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "hello")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUnparseableResponse, resp.Reason)
}

func TestParse_LowConfidenceRejected(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [{"key": "savingsRate", "value": 0.1, "confidence": 0.2}]}`,
	}
	parser := newTestParser(provider, Config{ConfidenceThreshold: 0.5})

	resp := parser.Parse(context.Background(), "maybe save more?")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureLowConfidence, resp.Reason)
}

func TestParse_EmptyQuery(t *testing.T) {
	provider := &cannedProvider{response: `{"fields": []}`}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "   ")
	require.False(t, resp.Success)
	assert.Equal(t, model.FailureUnparseableResponse, resp.Reason)
	assert.Empty(t, provider.lastPrompt) // provider never called
}

func TestParse_PromptListsSchemaKeys(t *testing.T) {
	provider := &cannedProvider{
		response: `{"fields": [{"key": "savingsRate", "value": 0.1, "confidence": 0.9}]}`,
	}
	parser := newTestParser(provider, Config{})

	resp := parser.Parse(context.Background(), "save 10%")
	require.True(t, resp.Success)
	for _, key := range model.DefaultOverrideSchema().Keys() {
		assert.Contains(t, provider.lastPrompt, key)
	}
}

func TestCoerceValue_TextField(t *testing.T) {
	spec := model.DefaultOverrideSchema().ByKey("riskProfile")
	require.NotNil(t, spec)

	v, ok := coerceValue("  conservative ", spec)
	require.True(t, ok)
	assert.Equal(t, "conservative", v)

	_, ok = coerceValue(42, spec)
	assert.False(t, ok)
}

func TestFormatValue_Currency(t *testing.T) {
	spec := model.DefaultOverrideSchema().ByKey("annualIncome")
	require.NotNil(t, spec)
	assert.Equal(t, "$1,250,000", formatValue(1250000.0, spec))
	assert.Equal(t, "$900", formatValue(900.0, spec))
}

func TestCleanJSON_BraceWindow(t *testing.T) {
	out := cleanJSON(`The answer is {"fields": []} — hope that helps.`)
	assert.Equal(t, `{"fields": []}`, out)
}
