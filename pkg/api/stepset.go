package api

import (
	"encoding/json"
	"maps"
	"slices"
)

// StepSet is the set of completed step numbers for an instance. It marshals
// as a sorted JSON array so the wire form is stable
type StepSet map[StepNumber]struct{}

// StepSetOf creates a new set containing the given step numbers
func StepSetOf(steps ...StepNumber) StepSet {
	s := make(StepSet, len(steps))
	for _, n := range steps {
		s.Add(n)
	}
	return s
}

// Add adds a step number to the set
func (s StepSet) Add(n StepNumber) {
	s[n] = struct{}{}
}

// Contains returns true if the step number is in the set
func (s StepSet) Contains(n StepNumber) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of steps in the set
func (s StepSet) Len() int {
	return len(s)
}

// IsEmpty returns true if no steps have been completed
func (s StepSet) IsEmpty() bool {
	return len(s) == 0
}

// Max returns the highest step number in the set, or zero when empty
func (s StepSet) Max() StepNumber {
	var res StepNumber
	for n := range s {
		res = max(res, n)
	}
	return res
}

// Clone returns an independent copy of the set
func (s StepSet) Clone() StepSet {
	if s == nil {
		return StepSet{}
	}
	return maps.Clone(s)
}

// Sorted returns the step numbers in ascending order
func (s StepSet) Sorted() []StepNumber {
	return slices.Sorted(maps.Keys(s))
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var steps []StepNumber
	if err := json.Unmarshal(data, &steps); err != nil {
		return err
	}
	*s = StepSetOf(steps...)
	return nil
}
