package fingerprint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planner-cli/internal/model"
)

func TestCacheKey_Deterministic(t *testing.T) {
	input := model.ProjectionInput{
		"annualIncome":  120000.0,
		"savingsRate":   0.15,
		"retirementAge": 65,
	}

	first, err := CacheKey(input)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := CacheKey(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCacheKey_TopLevelOrderIndependent(t *testing.T) {
	a := model.ProjectionInput{}
	a["savingsRate"] = 0.2
	a["retirementAge"] = 62
	a["annualIncome"] = 90000.0

	b := model.ProjectionInput{}
	b["annualIncome"] = 90000.0
	b["savingsRate"] = 0.2
	b["retirementAge"] = 62

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestCacheKey_DifferentValuesDiffer(t *testing.T) {
	a := model.ProjectionInput{"savingsRate": 0.2, "retirementAge": 62}
	b := model.ProjectionInput{"savingsRate": 0.2, "retirementAge": 63}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestCacheKey_DifferentKeysDiffer(t *testing.T) {
	a := model.ProjectionInput{"savingsRate": 0.2}
	b := model.ProjectionInput{"expectedReturn": 0.2}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestCacheKey_FixedLength(t *testing.T) {
	inputs := []model.ProjectionInput{
		{},
		{"a": 1},
		{"nested": map[string]any{"x": []any{1, 2, 3}}, "other": "text"},
	}
	for _, in := range inputs {
		key, err := CacheKey(in)
		require.NoError(t, err)
		assert.Len(t, key, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", key)
	}
}

func TestCacheKey_NestedValues(t *testing.T) {
	input := model.ProjectionInput{
		"accounts": []any{
			map[string]any{"type": "401k", "balance": 250000.0},
			map[string]any{"type": "roth", "balance": 40000.0},
		},
		"savingsRate": 0.18,
	}
	key, err := CacheKey(input)
	require.NoError(t, err)
	assert.Len(t, key, 64)
}

func TestCacheKey_NonSerializable(t *testing.T) {
	input := model.ProjectionInput{
		"savingsRate": 0.2,
		"callback":    func() {},
	}

	_, err := CacheKey(input)
	require.Error(t, err)

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "callback", serr.Key)
}

func TestCacheKey_CyclicReference(t *testing.T) {
	cycle := map[string]any{}
	cycle["self"] = cycle

	_, err := CacheKey(model.ProjectionInput{"loop": cycle})
	require.Error(t, err)

	var serr *SerializationError
	assert.True(t, errors.As(err, &serr))
}

func TestCacheKey_EmptyInput(t *testing.T) {
	key, err := CacheKey(model.ProjectionInput{})
	require.NoError(t, err)
	assert.Len(t, key, 64)
}
