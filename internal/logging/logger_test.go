package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "sk-live-9f8e7d6c",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
		{
			name:     "complex secret is redacted",
			input:    "Xq+/z9!@#==",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Secret(tt.input).String()
			if result != tt.expected {
				t.Errorf("Secret(%q).String() = %q, want %q", tt.input, result, tt.expected)
			}
			if gs := Secret(tt.input).GoString(); gs != tt.expected {
				t.Errorf("Secret(%q).GoString() = %q, want %q", tt.input, gs, tt.expected)
			}
		})
	}
}

func TestLoggerSecretNeverWritten(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	secretKey := "super-secret-access-key"
	logger.Info("created access key %s", Secret(secretKey))
	logger.Debug("verify login with %s", Secret(secretKey))

	out := buf.String()
	if strings.Contains(out, secretKey) {
		t.Fatalf("log output leaked secret material: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker in output, got %q", out)
	}
}

func TestLoggerDebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("debug output written with debug disabled: %q", buf.String())
	}

	logger.Warn("old key %s still active", "abc123")
	if !strings.Contains(buf.String(), "⚠ old key abc123 still active") {
		t.Errorf("unexpected warn output: %q", buf.String())
	}
}

func TestRedactReplacesKnownSecrets(t *testing.T) {
	msg := "login failed for key-id-1234 with secret deadbeefcafe"
	got := Redact(msg, []string{"deadbeefcafe", ""})
	if strings.Contains(got, "deadbeefcafe") {
		t.Errorf("Redact left secret in place: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("Redact did not insert marker: %q", got)
	}
}
