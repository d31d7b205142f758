package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Source names where a persisted slice's value came from at construction.
type Source string

const (
	// SourcePersisted means the slice was restored from storage.
	SourcePersisted Source = "persisted"
	// SourceInitial means the caller's initial value was kept.
	SourceInitial Source = "initial"
	// SourceAbsent means the slice is not present in state.
	SourceAbsent Source = "absent"
)

// Rehydration captures per-slice provenance for one store construction.
type Rehydration struct {
	Origin string            `json:"origin"`
	Slices []SliceProvenance `json:"slices"`
}

// SliceProvenance details how one persisted slice was resolved.
type SliceProvenance struct {
	Key     string `json:"key"`
	Source  Source `json:"source"`
	Version int    `json:"version,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

func (p *SliceProvenance) setErr(stage string, err error) {
	p.Stage = stage
	p.err = err
	if err != nil {
		p.Error = err.Error()
	}
}

// Err returns the failure recorded for the slice, if any.
func (p SliceProvenance) Err() error {
	if p.err != nil {
		return p.err
	}
	if p.Error != "" {
		return errors.New(p.Error)
	}
	return nil
}

// Lookup returns the provenance recorded for key.
func (r Rehydration) Lookup(key string) (SliceProvenance, bool) {
	for _, slice := range r.Slices {
		if slice.Key == key {
			return slice, true
		}
	}
	return SliceProvenance{}, false
}

// Err joins every per-slice failure. Nil when all records were readable.
func (r Rehydration) Err() error {
	var errs []error
	for _, slice := range r.Slices {
		if err := slice.Err(); err != nil {
			errs = append(errs, fmt.Errorf("store: rehydrate %q: %w", slice.Key, err))
		}
	}
	return errors.Join(errs...)
}

func (r Rehydration) clone() Rehydration {
	out := Rehydration{Origin: r.Origin}
	if r.Slices != nil {
		out.Slices = append([]SliceProvenance(nil), r.Slices...)
	}
	return out
}

// ToJSON serialises the report for logging or transport.
func (r Rehydration) ToJSON() ([]byte, error) {
	type alias Rehydration
	return json.Marshal(alias(r))
}

// RehydrationFromJSON parses a payload produced by ToJSON.
func RehydrationFromJSON(payload []byte) (Rehydration, error) {
	type alias Rehydration
	var report alias
	if err := json.Unmarshal(payload, &report); err != nil {
		return Rehydration{}, err
	}
	return Rehydration(report), nil
}
