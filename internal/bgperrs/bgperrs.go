// Package bgperrs defines the error taxonomy shared across archivist's
// packages. It plays the role the teacher's call sites use plain wrapped
// errors for, generalized to the Kind enum the original Rust BrokerError
// implementation (src/error.rs) distinguished by variant.
package bgperrs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by the subsystem that produced it.
type Kind int

const (
	// KindNetwork covers transport-level fetch failures: timeouts,
	// connection resets, non-2xx treated as fatal by a caller.
	KindNetwork Kind = iota
	// KindParse covers directory-listing or filename parsing failures.
	KindParse
	// KindConfig covers invalid or missing configuration.
	KindConfig
	// KindStorage covers catalog store failures, both sqlite and postgres.
	KindStorage
	// KindNotifier covers NATS publish/subscribe failures.
	KindNotifier
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	case KindStorage:
		return "storage"
	case KindNotifier:
		return "notifier"
	default:
		return "unknown"
	}
}

// Error wraps an inner error with a Kind, so callers can branch on failure
// class with errors.As without parsing message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, bgperrs.New(bgperrs.KindNetwork, "", nil)) style checks.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an Error for the given Kind, operation label, and
// underlying cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap is New with a formatted op label.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err}
}
