package network

import (
	"errors"
	"fmt"
)

// Spec errors
var (
	ErrInvalidSpec = errors.New("invalid network spec")
	ErrNotIPv4     = errors.New("base address must be an IPv4 address")
)

// Allocation errors
var (
	ErrInvalidPrefix  = errors.New("invalid prefix length")
	ErrSubnetTooSmall = errors.New("subnet too small")
)

// Key material errors
var (
	ErrProviderUnavailable = errors.New("key material provider unavailable")
	ErrEmptyKey            = errors.New("key material provider returned an empty key")
)

// Document errors
var (
	ErrWrite  = errors.New("write failed")
	ErrEncode = errors.New("encode failed")
)

// SpecError reports the spec field that failed validation.
type SpecError struct {
	Field string
	Value string
	Err   error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// AllocationError reports why the address plan could not be built.
// Err is ErrInvalidPrefix or ErrSubnetTooSmall.
type AllocationError struct {
	Field string
	Value string
	Hint  string
	Err   error
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("allocate %s=%s: %v", e.Field, e.Value, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *AllocationError) Unwrap() error { return e.Err }

// ProviderError identifies the party whose key material could not be obtained.
type ProviderError struct {
	Party Party
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("key material for %s (party %d): %v", e.Party, e.Party.Index, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Document stages
const (
	StageWrite  = "write"
	StageEncode = "encode"
)

// DocumentError is a non-fatal failure persisting or encoding one document.
type DocumentError struct {
	Party Party
	Stage string
	Path  string
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Stage, e.Party, e.Path, e.Err)
}

func (e *DocumentError) Unwrap() []error {
	stage := ErrWrite
	if e.Stage == StageEncode {
		stage = ErrEncode
	}
	return []error{stage, e.Err}
}
