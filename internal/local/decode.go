package local

import (
	"encoding/json"
	"fmt"
)

// Status says where a decoded value came from.
type Status int

const (
	// Found means the document existed and parsed.
	Found Status = iota
	// Missing means there was no document.
	Missing
	// Corrupt means the document existed but did not parse.
	Corrupt
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Result is the outcome of decoding one document.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// OK reports whether Value came from a stored document.
func (r Result[T]) OK() bool {
	return r.Status == Found
}

// OrDefault returns Value when found and def otherwise.
func (r Result[T]) OrDefault(def T) T {
	if r.Status == Found {
		return r.Value
	}
	return def
}

// Decode parses raw into T. A nil raw is Missing.
func Decode[T any](raw []byte, ok bool) Result[T] {
	var r Result[T]
	if !ok || len(raw) == 0 {
		r.Status = Missing
		return r
	}
	if err := json.Unmarshal(raw, &r.Value); err != nil {
		var zero T
		r.Value = zero
		r.Status = Corrupt
		r.Err = fmt.Errorf("failed to parse document: %w", err)
		return r
	}
	r.Status = Found
	return r
}

// Read decodes the document stored under key. Store read errors are folded
// into Corrupt so the caller's default path handles them.
func Read[T any](s *Store, key Key) Result[T] {
	raw, ok, err := s.Get(key)
	if err != nil {
		return Result[T]{Status: Corrupt, Err: err}
	}
	return Decode[T](raw, ok)
}

// Write encodes v and stores it under key.
func Write[T any](s *Store, key Key, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(key, raw)
}
