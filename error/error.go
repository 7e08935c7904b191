// Package error classifies the failures this module can produce into the
// five kinds the error-handling design distinguishes (configuration, I/O,
// network, protocol, invariant violation) and carries enough context for a
// single diagnostic line per failure. It is conventionally imported under
// the alias errorpkg, since its package name shadows the standard errors
// package.
package error

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind identifies which of the error-handling design's error kinds an
// Error belongs to.
type Kind int

const (
	// KindConfig is a missing or invalid CLI argument.
	KindConfig Kind = iota
	// KindIO is a failure to open, read, or write a file.
	KindIO
	// KindNetwork is a socket create/bind/listen/accept/connect/send/recv
	// failure.
	KindNetwork
	// KindProtocol is a malformed payload, e.g. a length that is not a
	// multiple of the record size.
	KindProtocol
	// KindInvariant marks a sort-invariant violation: a bug, not a runtime
	// condition, with no recovery path.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindIO:
		return "I/O error"
	case KindNetwork:
		return "network error"
	case KindProtocol:
		return "protocol error"
	case KindInvariant:
		return "invariant violation"
	default:
		return "error"
	}
}

// Error wraps an underlying failure with the job phase it occurred in and
// the Kind it belongs to, so the CLI layer can render one diagnostic line
// and choose the correct exit status.
type Error struct {
	// Op names the phase that failed, e.g. "produce-runs", "merge",
	// "accept", "send-shard".
	Op       string
	Kind     Kind
	Original error
}

// New wraps err as an Error of the given kind and operation. Returns nil if
// err is nil, so call sites can write `return error.New(..., err)`
// unconditionally.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Original: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Original)
}

func (e *Error) Unwrap() error {
	return e.Original
}

// ExitCode returns the process exit status this error should produce:
// 1 for every fatal error in this module, 0 only for a nil error. The
// module makes no distinction between error kinds at the process-exit
// level (spec: "non-zero exit status"); Kind exists for diagnostics, not
// for exit-code branching.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Each flattens a possibly-aggregated error (as produced by concurrent
// goroutines reporting into a *multierror.Error) into a slice of
// individual errors, so the caller can log one diagnostic line per
// underlying failure instead of one line for the whole batch.
func Each(err error) []error {
	if err == nil {
		return nil
	}
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	return []error{err}
}
