package model

// ValidationResult reports the outcome of scanning narrative text against
// the banned-phrase policy. Violations lists each matched phrase once, in
// policy-list order.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// Section is one named block of narrative text. Exempt sections (fixed
// templates such as the standard disclaimer) are never scanned.
type Section struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Exempt bool   `json:"exempt"`
}
