package scenario

import (
	"errors"
	"fmt"
)

// Kind is a stable error code for harness errors.
type Kind string

// Error kinds. Configuration and resolution errors surface from construction
// before any worker starts; invariant errors indicate a harness bug.
const (
	KindConfiguration Kind = "E_CONFIGURATION"
	KindResolution    Kind = "E_RESOLUTION"
	KindInvariant     Kind = "E_INVARIANT"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrResolution    = &Error{Kind: KindResolution}
	ErrInvariant     = &Error{Kind: KindInvariant}
)

// ErrUnknownAct is returned when a verdict is requested for an act the
// scenario does not contain.
var ErrUnknownAct = errors.New("unknown act")

// Error is the harness error type.
type Error struct {
	Kind  Kind
	Act   string
	Msg   string
	Cause error
}

// Error returns "CODE: act: message: cause" (act and cause omitted when
// empty).
func (e *Error) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Act != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Act, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func configErr(act, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Act: act, Msg: fmt.Sprintf(format, args...)}
}

func resolutionErr(act string, cause error, format string, args ...any) error {
	return &Error{Kind: KindResolution, Act: act, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func invariantErr(cause error, format string, args ...any) error {
	return &Error{Kind: KindInvariant, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// NewConfigurationError builds a configuration error for collaborators that
// validate input before a scenario is constructed.
func NewConfigurationError(msg string, cause error) error {
	return &Error{Kind: KindConfiguration, Msg: msg, Cause: cause}
}

// NewResolutionError builds a resolution error for collaborators that
// resolve names before a scenario is constructed.
func NewResolutionError(msg string, cause error) error {
	return &Error{Kind: KindResolution, Msg: msg, Cause: cause}
}

// KindOf extracts the error kind, or "" if err is not a harness error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
