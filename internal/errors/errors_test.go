package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUserErrorFormatting(t *testing.T) {
	err := UserError{
		Message:    "Rotation failed",
		Details:    "login returned 401",
		Suggestion: "Check the stored credential is still valid",
	}

	msg := err.Error()
	if !strings.Contains(msg, "Rotation failed") {
		t.Errorf("missing message: %q", msg)
	}
	if !strings.Contains(msg, "Details: login returned 401") {
		t.Errorf("missing details: %q", msg)
	}
	if !strings.Contains(msg, "💡 Try: Check the stored credential") {
		t.Errorf("missing suggestion: %q", msg)
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := AuthError{KeyID: "abc-123", Message: "login failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("AuthError should unwrap to inner error")
	}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("AuthError should name the key: %q", err.Error())
	}
}

func TestAPIErrorIncludesStatus(t *testing.T) {
	err := APIError{Operation: "createKey", StatusCode: 403, Message: "forbidden"}
	got := err.Error()
	for _, want := range []string{"createKey", "status 403", "forbidden"} {
		if !strings.Contains(got, want) {
			t.Errorf("APIError missing %q: %q", want, got)
		}
	}
}

func TestVerificationErrorReportsOrphan(t *testing.T) {
	err := VerificationError{
		NewKeyID:      "new-key-1",
		OrphanedKeyID: "new-key-1",
		Err:           errors.New("401 unauthorized"),
	}

	got := err.Error()
	if !strings.Contains(got, "delete orphaned key new-key-1") {
		t.Errorf("expected orphan remediation hint, got %q", got)
	}

	// Without an orphan the hint must not appear.
	clean := VerificationError{NewKeyID: "new-key-2", Err: errors.New("401")}
	if strings.Contains(clean.Error(), "orphaned") {
		t.Errorf("unexpected orphan hint: %q", clean.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	base := NotFoundError{Store: "vault-prod", Path: "secret/data/x"}
	wrapped := fmt.Errorf("reading credential: %w", base)

	if !IsNotFound(base) {
		t.Error("IsNotFound(NotFoundError) = false")
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("IsNotFound matched unrelated error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("request timeout exceeded"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"permission", errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
