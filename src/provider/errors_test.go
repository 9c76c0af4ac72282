package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapError_Sentinels(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantHint    string
		sentinel    error
	}{
		{
			name:        "auth failure",
			err:         fmt.Errorf("luci-auth token: %w", ErrAuthFailed),
			wantMessage: "Authentication failed",
			wantHint:    "luci-auth login",
			sentinel:    ErrAuthFailed,
		},
		{
			name:        "not found",
			err:         ErrNotFound,
			wantMessage: "Build not found",
			wantHint:    "builder name is correct",
			sentinel:    ErrNotFound,
		},
		{
			name:        "precondition",
			err:         fmt.Errorf("expected numeric build number: %w", ErrPrecondition),
			wantMessage: "Invalid request",
			wantHint:    "Build numbers must be integers",
			sentinel:    ErrPrecondition,
		},
		{
			name:        "decode",
			err:         fmt.Errorf("bb ls: %w", ErrDecode),
			wantMessage: "Unexpected response format",
			wantHint:    "not valid JSON",
			sentinel:    ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err)

			userErr, ok := wrapped.(*UserError)
			if !ok {
				t.Fatalf("WrapError() returned %T, want *UserError", wrapped)
			}
			if userErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", userErr.Message, tt.wantMessage)
			}
			if !strings.Contains(userErr.Hint, tt.wantHint) {
				t.Errorf("Hint should contain %q, got %q", tt.wantHint, userErr.Hint)
			}
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(wrapped, %v) = false, want true", tt.sentinel)
			}
		})
	}
}

func TestWrapError_OtherErrors(t *testing.T) {
	err := errors.New("500 Internal Server Error")
	if got := WrapError(err); got != err {
		t.Errorf("WrapError() = %v, want original error %v", got, err)
	}
}

func TestWrapError_NilError(t *testing.T) {
	if wrapped := WrapError(nil); wrapped != nil {
		t.Errorf("WrapError(nil) = %v, want nil", wrapped)
	}
}

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name    string
		userErr *UserError
		want    string
	}{
		{
			name:    "message only",
			userErr: &UserError{Message: "Something went wrong"},
			want:    "Something went wrong",
		},
		{
			name:    "message with hint",
			userErr: &UserError{Message: "Something went wrong", Hint: "Try again"},
			want:    "Something went wrong\n\nHint: Try again",
		},
		{
			name: "message with hint and error",
			userErr: &UserError{
				Message: "Something went wrong",
				Hint:    "Try again",
				Err:     errors.New("original error"),
			},
			want: "Something went wrong\n\nHint: Try again\n\nDetails: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.userErr.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserError_Unwrap(t *testing.T) {
	userErr := &UserError{Message: "Something went wrong", Err: ErrAuthFailed}
	if got := userErr.Unwrap(); got != ErrAuthFailed {
		t.Errorf("Unwrap() = %v, want %v", got, ErrAuthFailed)
	}
	if !errors.Is(userErr, ErrAuthFailed) {
		t.Error("errors.Is(userErr, ErrAuthFailed) = false, want true")
	}
}
