// Package fingerprint derives deterministic cache keys from projection
// inputs so narrative summaries are never recomputed for identical inputs.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/planwise/planner-cli/internal/model"
)

// SerializationError reports an input that cannot be canonically
// serialized (cyclic references, channels, functions). The call is fatal;
// the caller must fix the input.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("fingerprint: value for %q is not serializable: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("fingerprint: input is not serializable: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// CacheKey returns the SHA-256 hex fingerprint of the input's semantic
// content. Top-level keys are serialized in sorted order, so two inputs
// holding the same key/value pairs always produce the same key regardless
// of construction order. Values below the top level are serialized by
// encoding/json as-is; ordered nested structures (slices, raw JSON) that
// differ only in element order hash differently.
//
// The result is a 64-character lowercase hex string, used verbatim as the
// narrative cache key.
func CacheKey(input model.ProjectionInput) (string, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", &SerializationError{Key: k, Err: err}
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(input[k])
		if err != nil {
			return "", &SerializationError{Key: k, Err: err}
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	h := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("%x", h), nil
}
