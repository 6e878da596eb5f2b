// Package secretstore defines the secret store contract the rotator
// writes through, plus the backends that implement it. A store holds one
// credential envelope per path; a write replaces the stored mapping
// wholesale and makes the written material the credential of record.
package secretstore

import (
	"context"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/identity"
)

// Envelope field names, matching what consumers of the stored secret read.
const (
	FieldAccessKeyID = "access_key_id"
	FieldSecretKey   = "secret_key"
)

// Store is a key-value secret backend holding credential envelopes.
// Implementations must be safe for concurrent use; independent rotation
// tasks may touch different paths of the same store at once.
type Store interface {
	// Name returns the store's configured name.
	Name() string

	// ReadCredential fetches the stored mapping at path. A missing
	// secret is reported as errors.NotFoundError.
	ReadCredential(ctx context.Context, path string) (map[string]string, error)

	// WriteCredential replaces the stored mapping at path wholesale.
	// Must only be called with verified credential material.
	WriteCredential(ctx context.Context, path string, data map[string]string) error

	// Validate checks the store is reachable and authenticated.
	Validate(ctx context.Context) error
}

// CredentialFromData extracts the access key pair from a stored mapping.
func CredentialFromData(store, path string, data map[string]string) (identity.Credential, error) {
	cred := identity.Credential{
		AccessKeyID: data[FieldAccessKeyID],
		SecretKey:   data[FieldSecretKey],
	}
	if cred.AccessKeyID == "" || cred.SecretKey == "" {
		return identity.Credential{}, kerrors.ConfigError{
			Field:      path,
			Message:    "stored secret is missing '" + FieldAccessKeyID + "' or '" + FieldSecretKey + "'",
			Suggestion: "Seed the secret with the service account's current credential before rotating",
		}
	}
	return cred, nil
}

// DataWithCredential returns a copy of data with the credential fields
// replaced. Unrelated fields in the envelope are carried over untouched.
func DataWithCredential(data map[string]string, cred identity.Credential) map[string]string {
	out := make(map[string]string, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out[FieldAccessKeyID] = cred.AccessKeyID
	out[FieldSecretKey] = cred.SecretKey
	return out
}
