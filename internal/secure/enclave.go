// Package secure provides memory-safe handling of credential material.
//
// A freshly created access key's secret exists only in process memory
// between the create and commit steps of a rotation. This package wraps
// memguard so that window keeps the plaintext encrypted at rest in memory
// and protected from swapping via mlock, with graceful degradation when
// mlock is unavailable.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// KeyMaterial holds one secret key inside a memguard enclave. The
// plaintext is only reachable through WithString, which wipes the
// decrypted buffer before returning.
type KeyMaterial struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() and blocks use-after-destroy
	destroyed bool
}

// NewKeyMaterial seals the given secret into a protected buffer. The
// caller should not retain other copies of the input.
func NewKeyMaterial(secret string) *KeyMaterial {
	return &KeyMaterial{
		enclave: memguard.NewEnclave([]byte(secret)),
	}
}

// WithString decrypts the key material, passes it to fn, and wipes the
// plaintext buffer before returning. fn must not retain the string beyond
// its own scope.
func (k *KeyMaterial) WithString(fn func(secret string) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed || k.enclave == nil {
		return fn("")
	}

	locked, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.String())
}

// Destroy marks the key material as destroyed and prevents further use.
// The encrypted enclave data is safe even without explicit destruction;
// call memguard.Purge() at process exit for full cleanup. Idempotent.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}

	k.enclave = nil
	k.destroyed = true
}
