package scan

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying each failure kind. Match them with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTransport         = errors.New("transport error")
	ErrUpstream          = errors.New("upstream error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrValidation        = errors.New("validation error")
	ErrTimeout           = errors.New("timeout")
)

// Error describes why a scan failed.
type Error struct {
	// Kind is one of the sentinel errors above
	Kind error
	// StatusCode is set for upstream errors
	StatusCode int
	// Body is the response text for upstream and malformed response errors
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrConfiguration:
		return "API endpoint not configured. Run: doc-scanner config set <url>"
	case ErrUpstream:
		return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
	case ErrMalformedResponse:
		return fmt.Sprintf("invalid JSON in response: %v", e.Err)
	case ErrValidation:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "no image provided"
	case ErrTimeout:
		return fmt.Sprintf("request timed out: %v", e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}
