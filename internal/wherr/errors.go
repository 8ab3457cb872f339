// Package wherr defines the wormhole runtime's error kinds (spec §7).
package wherr

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime error so callers can branch on it with errors.As
// instead of string matching, per spec §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransportClosed
	KindDecodeFailure
	KindUnknownTarget
	KindUnknownName
	KindTimeout
	KindPeerClosed
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindTransportClosed:
		return "transport_closed"
	case KindDecodeFailure:
		return "decode_failure"
	case KindUnknownTarget:
		return "unknown_target"
	case KindUnknownName:
		return "unknown_name"
	case KindTimeout:
		return "timeout"
	case KindPeerClosed:
		return "peer_closed"
	case KindTypeMismatch:
		return "type_mismatch"
	default:
		return "unknown"
	}
}

// Error is the runtime's typed error. Op names the operation that failed
// (e.g. "portal.ask", "codec.decode"); Err, if present, wraps the underlying
// cause and is reachable through errors.Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given kind and operation, optionally wrapping
// a lower-level cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is (or wraps) a wherr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
