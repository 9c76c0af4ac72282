// Package provider holds the error taxonomy shared by the results fetcher and
// the build locator, plus the user-facing wrapping used by the CLIs.
package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing build or result. Callers normally see a nil
	// result instead; it only surfaces where absence cannot be expressed.
	ErrNotFound = errors.New("not found")

	ErrAuthFailed   = errors.New("authentication failed")
	ErrDecode       = errors.New("decode error")
	ErrPrecondition = errors.New("precondition failed")
)

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts retrieval errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrAuthFailed):
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Run `luci-auth login` before trying again.",
			Err:     err,
		}
	case errors.Is(err, ErrNotFound):
		return &UserError{
			Message: "Build not found",
			Hint:    "Check that the builder name is correct and that it has finished at least one build.",
			Err:     err,
		}
	case errors.Is(err, ErrPrecondition):
		return &UserError{
			Message: "Invalid request",
			Hint:    "Build numbers must be integers, and step logs need a build id (use `latest` to look one up).",
			Err:     err,
		}
	case errors.Is(err, ErrDecode):
		return &UserError{
			Message: "Unexpected response format",
			Hint:    "The server or the bb tool returned data that is not valid JSON.",
			Err:     err,
		}
	}

	return err
}
