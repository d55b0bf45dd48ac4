package model

// ProjectionInput is the full structured input to the projection engine:
// a JSON-serializable record of top-level key/value pairs describing a
// user's financial situation. The planner core treats it as opaque; it
// only fingerprints, merges into, and renders it.
type ProjectionInput map[string]any

// Clone returns a shallow copy of the input. Top-level writes to the copy
// do not affect the original; nested values are shared.
func (p ProjectionInput) Clone() ProjectionInput {
	out := make(ProjectionInput, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// FieldType describes the value type of an override field.
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldText    FieldType = "text"
)

// FieldFormat controls how an override value is rendered for display.
type FieldFormat string

const (
	FormatPercent  FieldFormat = "percent"
	FormatCurrency FieldFormat = "currency"
	FormatYears    FieldFormat = "years"
	FormatPlain    FieldFormat = "plain"
)

// OverrideField declares one named, typed parameter a scenario query may set.
type OverrideField struct {
	Key    string      `json:"key"`
	Label  string      `json:"label"`
	Type   FieldType   `json:"type"`
	Format FieldFormat `json:"format"`
	Min    float64     `json:"min,omitempty"`
	Max    float64     `json:"max,omitempty"`
}

// OverrideSchema is the authoritative, fixed set of override fields. Parsed
// scenario fields must validate against it; unknown keys never pass through.
type OverrideSchema struct {
	Fields []OverrideField

	byKey map[string]*OverrideField
}

// NewOverrideSchema builds an OverrideSchema with indexed key lookup.
func NewOverrideSchema(fields []OverrideField) *OverrideSchema {
	s := &OverrideSchema{
		Fields: fields,
		byKey:  make(map[string]*OverrideField, len(fields)),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		s.byKey[f.Key] = f
	}
	return s
}

// ByKey returns the field for the given key, or nil if the key is not part
// of the schema.
func (s *OverrideSchema) ByKey(key string) *OverrideField {
	return s.byKey[key]
}

// Keys returns the schema's key set in declaration order.
func (s *OverrideSchema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// DefaultOverrideSchema returns the projection parameters recognized by the
// planner. Numeric rates are fractions in [0, 1], not percentage points.
func DefaultOverrideSchema() *OverrideSchema {
	return NewOverrideSchema([]OverrideField{
		{Key: "savingsRate", Label: "Savings rate", Type: FieldNumber, Format: FormatPercent, Min: 0, Max: 1},
		{Key: "retirementAge", Label: "Retirement age", Type: FieldInteger, Format: FormatYears, Min: 30, Max: 80},
		{Key: "annualIncome", Label: "Annual income", Type: FieldNumber, Format: FormatCurrency, Min: 0, Max: 100_000_000},
		{Key: "annualSpending", Label: "Annual spending", Type: FieldNumber, Format: FormatCurrency, Min: 0, Max: 100_000_000},
		{Key: "currentSavings", Label: "Current savings", Type: FieldNumber, Format: FormatCurrency, Min: 0, Max: 1_000_000_000},
		{Key: "monthlyContribution", Label: "Monthly contribution", Type: FieldNumber, Format: FormatCurrency, Min: 0, Max: 1_000_000},
		{Key: "expectedReturn", Label: "Expected annual return", Type: FieldNumber, Format: FormatPercent, Min: -0.5, Max: 0.5},
		{Key: "inflationRate", Label: "Inflation rate", Type: FieldNumber, Format: FormatPercent, Min: -0.1, Max: 0.5},
		{Key: "riskProfile", Label: "Risk profile", Type: FieldText, Format: FormatPlain},
	})
}
