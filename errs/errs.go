// Package errs defines the error kinds propagated across the engine's
// API boundary.
package errs

import "errors"

// Kind tags an error with one of the categories the engine propagates
// to callers. Only NotFound is ever "normal" at the API boundary.
type Kind int

const (
	NotFound Kind = iota
	IO
	Checksum
	Compression
	Serialisation
	WAL
	Config
	InvalidData
	Pattern
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case IO:
		return "io"
	case Checksum:
		return "checksum"
	case Compression:
		return "compression"
	case Serialisation:
		return "serialisation"
	case WAL:
		return "wal"
	case Config:
		return "config"
	case InvalidData:
		return "invalid-data"
	case Pattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without parsing strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error tagged with kind, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrNotFound is returned by Get/point-lookups for an absent key.
var ErrNotFound = New(NotFound, "get", nil)
