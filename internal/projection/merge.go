// Package projection applies parsed scenario overrides onto projection
// inputs and renders them for prompt context.
package projection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/planwise/planner-cli/internal/model"
)

// Merge applies the scenario's overrides onto a copy of input. Override
// keys replace (or add) top-level keys; everything else is carried over
// untouched. The original input is never mutated. A nil scenario returns
// a plain copy.
func Merge(input model.ProjectionInput, scenario *model.ParsedScenario) model.ProjectionInput {
	out := input.Clone()
	if scenario == nil {
		return out
	}
	for k, v := range scenario.Overrides {
		out[k] = v
	}
	return out
}

// RenderContext renders a projection input as compact, deterministic
// key-value lines for injection into the narrative prompt. Keys are
// sorted so identical inputs always produce identical context.
func RenderContext(input model.ProjectionInput) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, renderValue(input[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", t)
	default:
		// Structured values render as JSON; map keys are sorted by
		// encoding/json, keeping the context deterministic.
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
