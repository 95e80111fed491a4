package api

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// StepData is the opaque payload produced by a step. The engine never
// interprets it; only the owning step logic does. Queries for display or
// validation go through Get
type StepData []byte

// Payload marshals a value into a step payload
func Payload(v any) (StepData, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return StepData(data), nil
}

// Get evaluates a gjson path against the payload
func (d StepData) Get(path string) gjson.Result {
	return gjson.GetBytes(d, path)
}

// IsValid returns whether the payload is well-formed JSON
func (d StepData) IsValid() bool {
	return gjson.ValidBytes(d)
}

// Equal reports whether two payloads are byte-identical
func (d StepData) Equal(other StepData) bool {
	return bytes.Equal(d, other)
}

func (d StepData) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

func (d *StepData) UnmarshalJSON(data []byte) error {
	*d = append((*d)[0:0], data...)
	return nil
}
