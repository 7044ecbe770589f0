package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork matches every transport failure and every non-2xx reply.
	ErrNetwork = errors.New("chat request failed")
	// ErrMalformedResponse matches a successful reply whose body lacks required fields.
	ErrMalformedResponse = errors.New("malformed chat response")
)

// NetworkError describes a failed chat call. StatusCode is zero when the
// request never got an HTTP reply.
type NetworkError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%d error for url %s: %s", e.StatusCode, e.URL, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%d error for url %s", e.StatusCode, e.URL)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
