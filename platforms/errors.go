package platforms

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is.
var (
	ErrConfigurationMissing   = errors.New("platform not configured")
	ErrAuthenticationMismatch = errors.New("oauth state mismatch")
	ErrUpstreamRejection      = errors.New("upstream rejected request")
	ErrNetworkFailure         = errors.New("network failure")
	ErrNotConnected           = errors.New("platform not connected")
	ErrInvalidPayload         = errors.New("invalid payload")
)

// Error carries a failure kind plus the platform's own message, which is what
// ends up on the post or in the callback redirect.
type Error struct {
	Kind     error
	Platform Platform
	Message  string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Platform == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Platform, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the failure kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func newError(kind error, p Platform, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Platform: p, Message: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether retrying the same call may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}

// KindOf names the failure kind of err for logs and metrics.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrAuthenticationMismatch):
		return "authentication_mismatch"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrNetworkFailure):
		return "network_failure"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrUpstreamRejection):
		return "upstream_rejection"
	default:
		return "unknown"
	}
}
