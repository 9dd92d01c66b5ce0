// Package contract validates completion output against the JSON shape a
// caller demanded. Model output is untrusted text: it may carry prose
// around the JSON, be cut off mid-object, or omit fields. Every failure
// mode maps to a typed ViolationError so callers can decide between a
// static fallback and a fail-closed retry, and never see a raw decode
// panic or a half-parsed value.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Violation kinds.
const (
	KindNoJSON       = "no-json"       // no {...} region in the output
	KindMalformed    = "malformed"     // extracted region is not valid JSON
	KindMissingField = "missing-field" // required field absent
)

// ViolationError describes how completion output broke its contract.
type ViolationError struct {
	Kind  string
	Field string // set for missing-field
	Err   error  // underlying decode error, if any
}

func (e *ViolationError) Error() string {
	switch e.Kind {
	case KindNoJSON:
		return "contract: completion output contains no JSON object"
	case KindMissingField:
		return fmt.Sprintf("contract: required field %q missing", e.Field)
	default:
		return fmt.Sprintf("contract: malformed JSON: %v", e.Err)
	}
}

func (e *ViolationError) Unwrap() error { return e.Err }

// Extract returns the substring from the first '{' to the last '}' of
// raw. Models routinely wrap their JSON in prose or code fences; the
// widest brace span survives both.
func Extract(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", &ViolationError{Kind: KindNoJSON}
	}
	return raw[start : end+1], nil
}

// Parse extracts and decodes the JSON object in raw and verifies every
// required field is present. Field values are returned undecoded so the
// caller's contract struct stays the single source of truth for types.
func Parse(raw string, required []string) (map[string]json.RawMessage, error) {
	extracted, err := Extract(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extracted), &fields); err != nil {
		return nil, &ViolationError{Kind: KindMalformed, Err: err}
	}

	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return nil, &ViolationError{Kind: KindMissingField, Field: name}
		}
	}
	return fields, nil
}

// Decode runs Parse and then unmarshals the object into v. Type
// mismatches between the JSON and v count as malformed output.
func Decode(raw string, required []string, v any) error {
	extracted, err := Extract(raw)
	if err != nil {
		return err
	}
	if _, err := Parse(raw, required); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return &ViolationError{Kind: KindMalformed, Err: err}
	}
	return nil
}
