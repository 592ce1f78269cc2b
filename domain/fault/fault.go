// Package fault defines the IVOA fault categories returned to SIA clients.
// Every error that reaches a client is classified as exactly one Kind and
// rendered as "<Kind>: <detail>".
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is an IVOA fault category.
type Kind int

const (
	// Default is the catch-all for errors not classified elsewhere.
	Default Kind = iota
	// Usage marks malformed or invalid caller input.
	Usage
	// Transient marks a backend that is temporarily unavailable.
	Transient
	// Fatal marks a service misconfiguration.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "UsageFault"
	case Transient:
		return "TransientFault"
	case Fatal:
		return "FatalFault"
	default:
		return "DefaultFault"
	}
}

// Fault is a classified error.
type Fault struct {
	Kind   Kind
	Detail string
	Err    error
}

func (f *Fault) Error() string {
	return f.Kind.String() + ": " + f.Detail
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// StatusCode is the HTTP status a fault is served with.
// SIA clients expect 400 for every category.
func (f *Fault) StatusCode() int {
	return http.StatusBadRequest
}

// New creates a fault with a literal detail.
func New(kind Kind, detail string) *Fault {
	return &Fault{Kind: kind, Detail: detail}
}

// Wrap classifies err, keeping its message as the detail.
func Wrap(kind Kind, err error) *Fault {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Detail: err.Error(), Err: err}
}

// Usagef creates a UsageFault.
func Usagef(format string, args ...any) *Fault {
	return newf(Usage, format, args...)
}

// Transientf creates a TransientFault.
func Transientf(format string, args ...any) *Fault {
	return newf(Transient, format, args...)
}

// Fatalf creates a FatalFault.
func Fatalf(format string, args ...any) *Fault {
	return newf(Fatal, format, args...)
}

// newf keeps a %w operand reachable through Unwrap.
func newf(kind Kind, format string, args ...any) *Fault {
	err := fmt.Errorf(format, args...)
	f := &Fault{Kind: kind, Detail: err.Error()}
	if errors.Unwrap(err) != nil {
		f.Err = errors.Unwrap(err)
	}
	return f
}

// From returns the Fault carried by err, or wraps err as a DefaultFault.
func From(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return Wrap(Default, err)
}

// KindOf classifies err. Unclassified errors are Default.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return Default
}

// Is reports whether err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}
