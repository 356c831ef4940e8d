package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the filter engine.
type ErrorKind int

const (
	// KindInvalidArgument covers malformed requests. Never retried.
	KindInvalidArgument ErrorKind = iota + 1
	// KindUpstreamUnavailable means the store call failed.
	KindUpstreamUnavailable
	// KindInternal means the engine itself failed.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified engine error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so sentinel
// values such as ErrLimitOutOfRange work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || e.Message == t.Message)
}

// With returns a copy of e carrying a formatted detail. The copy still
// matches e under errors.Is.
func (e *Error) With(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: fmt.Errorf(format, args...)}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// UpstreamUnavailable wraps a store failure.
func UpstreamUnavailable(err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: "upstream unavailable", Err: err}
}

// InternalError builds a KindInternal error carrying cause for operators.
func InternalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Sentinels for errors.Is checks.
var (
	ErrLimitOutOfRange      = &Error{Kind: KindInvalidArgument, Message: "limit out of range"}
	ErrUnsortableField      = &Error{Kind: KindInvalidArgument, Message: "unsortable field"}
	ErrInvalidSortDirection = &Error{Kind: KindInvalidArgument, Message: "invalid sort direction"}
	ErrUnfilterableField    = &Error{Kind: KindInvalidArgument, Message: "unfilterable field"}
	ErrInvalidFilter        = &Error{Kind: KindInvalidArgument, Message: "invalid filter"}
	ErrMalformedCursor      = &Error{Kind: KindInvalidArgument, Message: "malformed cursor"}
	ErrIncompatibleCursor   = &Error{Kind: KindInvalidArgument, Message: "cursor incompatible with query"}
	ErrSortFailed           = &Error{Kind: KindInternal, Message: "sort failed"}
)
