// Package errors defines the error taxonomy for credential rotation.
//
// Every terminal rotation failure is one of the typed errors below; the
// batch runner converts them into per-task results and the CLI renders
// their Suggestion text so an operator knows whether manual remediation
// is required.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError marks a task as unrunnable: bad or missing configuration,
// or a secret-store read that could not produce a usable credential.
// Fatal to the task it belongs to, never to sibling tasks.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in field '" + e.Field + "'"
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// AuthError means a login with a credential failed. For the current
// credential this is fatal to the task; for a newly created one it is the
// verification signal that triggers rollback.
type AuthError struct {
	KeyID   string
	Message string
	Err     error
}

func (e AuthError) Error() string {
	msg := "authentication failed"
	if e.KeyID != "" {
		msg += " for access key " + e.KeyID
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// APIError is a non-login identity service call failure. Fatal except in
// the cleanup and deactivate steps, where the rotator downgrades it to a
// warning.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e APIError) Error() string {
	msg := "identity API error"
	if e.Operation != "" {
		msg += " during " + e.Operation
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e APIError) Unwrap() error {
	return e.Err
}

// VerificationError means the newly created key failed to authenticate.
// The rotator rolls the new key back; OrphanedKeyID is set when that
// rollback also failed and the key is left behind at the provider.
type VerificationError struct {
	NewKeyID      string
	OrphanedKeyID string
	Err           error
}

func (e VerificationError) Error() string {
	msg := "new access key " + e.NewKeyID + " failed verification"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.OrphanedKeyID != "" {
		msg += "\n  💡 Rollback also failed: delete orphaned key " + e.OrphanedKeyID + " manually"
	}
	return msg
}

func (e VerificationError) Unwrap() error {
	return e.Err
}

// StoreError is a secret store failure. When raised after a verified key
// exists (commit step) both old and new keys stay active and the store
// still holds the old credential: degraded but safe, operator must re-run.
type StoreError struct {
	Store      string
	Path       string
	Message    string
	Suggestion string
	Err        error
}

func (e StoreError) Error() string {
	msg := "secret store error"
	if e.Store != "" {
		msg += " (" + e.Store + ")"
	}
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

func (e StoreError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates a secret does not exist at the requested path.
type NotFoundError struct {
	Store string
	Path  string
}

func (e NotFoundError) Error() string {
	return "secret not found at " + e.Path + " in store " + e.Store
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsRetryable checks if an error is retryable at the network-call level.
// State machine transitions are never retried; this only gates the
// per-request retry loop inside the HTTP clients.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}
