// Package compliance scans AI-generated narrative text for phrases the
// policy disallows before the text can reach an end user.
package compliance

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/planwise/planner-cli/internal/model"
)

// MissingSectionError reports a required narrative section that was absent
// from the input. It distinguishes "nothing to scan" from "scanned and
// clean" so missing content never passes validation by accident.
type MissingSectionError struct {
	Name string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("compliance: required section %q is missing", e.Name)
}

// Validator checks text against an immutable banned-phrase policy. The
// policy is injected at construction so tests can substitute alternates.
// A Validator performs no I/O and is safe for concurrent use.
type Validator struct {
	policy []string
	folded []string
}

// NewValidator builds a Validator for the given ordered phrase list. Empty
// phrases are ignored; the remaining order is preserved and determines the
// order of reported violations.
func NewValidator(policy []string) *Validator {
	v := &Validator{}
	for _, p := range policy {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v.policy = append(v.policy, p)
		v.folded = append(v.folded, fold(p))
	}
	return v
}

// Policy returns a copy of the active phrase list.
func (v *Validator) Policy() []string {
	out := make([]string, len(v.policy))
	copy(out, v.policy)
	return out
}

// ValidateText scans text for banned phrases. Matching is case-insensitive
// substring containment. Each violated phrase appears once in the result,
// in policy order, regardless of how often or where it occurs in the text.
func (v *Validator) ValidateText(text string) model.ValidationResult {
	foldedText := fold(text)

	var violations []string
	for i, phrase := range v.folded {
		if strings.Contains(foldedText, phrase) {
			violations = append(violations, v.policy[i])
		}
	}

	return model.ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// ValidateSections scans the concatenation of every non-exempt section, in
// the order given. Exempt sections (fixed templates such as the standard
// disclaimer) are never scanned, even if they contain a banned phrase.
// Every name in required must be present among sections, otherwise a
// MissingSectionError is returned and nothing is scanned.
func (v *Validator) ValidateSections(sections []model.Section, required []string) (model.ValidationResult, error) {
	present := make(map[string]bool, len(sections))
	for _, s := range sections {
		present[s.Name] = true
	}
	for _, name := range required {
		if !present[name] {
			return model.ValidationResult{}, &MissingSectionError{Name: name}
		}
	}

	var b strings.Builder
	for _, s := range sections {
		if s.Exempt {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.Text)
	}

	return v.ValidateText(b.String()), nil
}

// fold lowercases text for matching using Unicode case folding, so phrases
// match across casings that simple ASCII lowering misses.
func fold(s string) string {
	return cases.Fold().String(s)
}
