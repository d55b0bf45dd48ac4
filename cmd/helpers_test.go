package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectionInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"savingsRate": 0.15, "retirementAge": 65}`), 0644))

	input, err := loadProjectionInput(path)
	require.NoError(t, err)
	assert.Equal(t, 0.15, input["savingsRate"])
	assert.Equal(t, 65.0, input["retirementAge"])
}

func TestLoadProjectionInput_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := loadProjectionInput(path)
	require.Error(t, err)
}

func TestLoadProjectionInput_MissingFile(t *testing.T) {
	_, err := loadProjectionInput(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadQueries_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.csv")
	csv := "query\nretire at 60\nbump savings to 20%\n\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	queries, err := loadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"retire at 60", "bump savings to 20%"}, queries)
}

func TestLoadQueries_CSVNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.csv")
	require.NoError(t, os.WriteFile(path, []byte("retire at 60\n"), 0644))

	queries, err := loadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"retire at 60"}, queries)
}

func TestLoadQueries_MissingFile(t *testing.T) {
	_, err := loadQueries(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
