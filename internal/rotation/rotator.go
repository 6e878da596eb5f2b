package rotation

import (
	"context"
	"time"

	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/identity"
	"github.com/systmms/keyrotor/internal/logging"
	"github.com/systmms/keyrotor/internal/secretstore"
	"github.com/systmms/keyrotor/internal/secure"
)

// IdentityClient is the surface of the identity API the rotator needs.
// *identity.Client satisfies it.
type IdentityClient interface {
	Login(ctx context.Context, accessKeyID, secretKey string) (identity.Session, error)
	ListKeys(ctx context.Context, session identity.Session) ([]identity.AccessKey, error)
	CreateKey(ctx context.Context, session identity.Session, name string) (identity.AccessKey, error)
	SetKeyStatus(ctx context.Context, session identity.Session, keyID string, status identity.Status) error
	DeleteKey(ctx context.Context, session identity.Session, keyID string) error
	DeleteKeys(ctx context.Context, session identity.Session, keyIDs []string) error
}

// ClientFactory builds an identity client for a task's API endpoint.
type ClientFactory func(apiURL string, timeout time.Duration) IdentityClient

// DefaultClientFactory returns the real HTTP client.
func DefaultClientFactory(logger *logging.Logger) ClientFactory {
	return func(apiURL string, timeout time.Duration) IdentityClient {
		return identity.NewClient(apiURL, logger, identity.WithTimeout(timeout))
	}
}

// Rotator runs the rotation state machine for a single task.
type Rotator struct {
	factory ClientFactory
	logger  *logging.Logger
	now     func() time.Time
}

func NewRotator(factory ClientFactory, logger *logging.Logger) *Rotator {
	return &Rotator{factory: factory, logger: logger, now: time.Now}
}

// keyNamePrefix marks keys created by this tool so operators can tell
// rotated keys apart from hand-made ones.
const keyNamePrefix = "keyrotor-"

func (r *Rotator) newKeyName() string {
	return keyNamePrefix + r.now().UTC().Format("20060102-150405")
}

// Rotate drives one task through fetch, auth, cleanup, create, verify,
// commit and deactivate. The account is never left without an active,
// verified credential: the new key becomes credential-of-record only
// after it has authenticated, and the old key stays active until the
// store write has succeeded.
func (r *Rotator) Rotate(ctx context.Context, task config.TaskConfig, store secretstore.Store) Result {
	started := r.now()
	observeStarted(task.Name)
	timeout := task.Timeout()
	st := newRun()

	result := Result{Task: task, StartedAt: started}
	failAt := func(failedAt State, err error) Result {
		observeStepFailure(task.Name, failedAt)
		st.advance(StateFailed, "", err)
		result.Outcome = OutcomeFailed
		result.FailedAt = failedAt
		result.Err = err
		result.Detail = err.Error()
		result.CompletedAt = r.now()
		result.Transitions = st.transitions
		observeCompleted(task.Name, OutcomeFailed, r.now().Sub(started))
		return result
	}
	fail := func(err error) Result { return failAt(st.current, err) }

	// FETCH: the credential of record for this task.
	r.logger.Debug("task %s: reading credential from %s path %s", task.Name, store.Name(), task.SecretPath)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	data, err := store.ReadCredential(callCtx, task.SecretPath)
	cancel()
	if err != nil {
		if errors.IsNotFound(err) {
			return fail(errors.ConfigError{
				Field:      "secret_path",
				Value:      task.SecretPath,
				Message:    "no credential found at the configured path",
				Suggestion: "seed the secret with access_key_id and secret_key before the first rotation",
				Err:        err,
			})
		}
		return fail(err)
	}
	cred, err := secretstore.CredentialFromData(store.Name(), task.SecretPath, data)
	if err != nil {
		return fail(err)
	}
	result.OldKeyID = cred.AccessKeyID

	// AUTH_OLD: prove the stored credential still works before touching
	// anything.
	if err := st.advance(StateAuthOld, "", nil); err != nil {
		return fail(err)
	}
	client := r.factory(task.IdentityAPIURL, timeout)
	callCtx, cancel = context.WithTimeout(ctx, timeout)
	sessionA, err := client.Login(callCtx, cred.AccessKeyID, cred.SecretKey)
	cancel()
	if err != nil {
		return fail(err)
	}
	r.logger.Debug("task %s: authenticated with stored key %s", task.Name, cred.AccessKeyID)

	// CLEANUP: delete inactive leftovers so the account's key quota has
	// room for the new key. Failures here never abort the rotation.
	st.advance(StateCleanup, "", nil)
	oldKeyListed := true
	callCtx, cancel = context.WithTimeout(ctx, timeout)
	keys, err := client.ListKeys(callCtx, sessionA)
	cancel()
	if err != nil {
		warn := "could not list access keys for cleanup: " + err.Error()
		r.logger.Warn("task %s: %s", task.Name, warn)
		result.Warnings = append(result.Warnings, warn)
	} else {
		oldKeyListed = false
		var stale []string
		for _, k := range keys {
			if k.ID == cred.AccessKeyID {
				oldKeyListed = true
				continue
			}
			if k.Status == identity.StatusInactive {
				stale = append(stale, k.ID)
			}
		}
		if len(stale) > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			err = client.DeleteKeys(callCtx, sessionA, stale)
			cancel()
			if err != nil {
				warn := "could not delete inactive access keys: " + err.Error()
				r.logger.Warn("task %s: %s", task.Name, warn)
				result.Warnings = append(result.Warnings, warn)
			} else {
				r.logger.Debug("task %s: deleted %d inactive keys", task.Name, len(stale))
			}
		}
	}

	// CREATE: mint the replacement key. This is the point of no return
	// for cancellation; once the key exists we must finish or roll back,
	// so the remaining steps run detached from the caller's cancel.
	if err := st.advance(StateCreate, "", nil); err != nil {
		return fail(err)
	}
	callCtx, cancel = context.WithTimeout(ctx, timeout)
	newKey, err := client.CreateKey(callCtx, sessionA, r.newKeyName())
	cancel()
	if err != nil {
		return fail(err)
	}
	detached := context.WithoutCancel(ctx)
	material := secure.NewKeyMaterial(newKey.SecretKey)
	defer material.Destroy()
	newKey.SecretKey = ""
	result.NewKeyID = newKey.ID
	r.logger.Debug("task %s: created access key %s", task.Name, newKey.ID)

	// VERIFY: the new key must authenticate on its own before it can
	// become the credential of record.
	if err := st.advance(StateVerify, "", nil); err != nil {
		return fail(err)
	}
	var sessionB identity.Session
	verifyErr := material.WithString(func(secret string) error {
		vctx, vcancel := context.WithTimeout(detached, timeout)
		defer vcancel()
		s, err := client.Login(vctx, newKey.ID, secret)
		if err != nil {
			return err
		}
		sessionB = s
		return nil
	})
	if verifyErr != nil {
		// ROLLBACK: remove the unusable key so it does not burn quota.
		// The stored credential is untouched and still works.
		st.advance(StateRollback, "new key failed verification", verifyErr)
		callCtx, cancel = context.WithTimeout(detached, timeout)
		rbErr := client.DeleteKey(callCtx, sessionA, newKey.ID)
		cancel()
		verr := errors.VerificationError{NewKeyID: newKey.ID, Err: verifyErr}
		if rbErr != nil {
			verr.OrphanedKeyID = newKey.ID
			result.OrphanedKey = newKey.ID
			r.logger.Error("task %s: rollback failed, key %s is orphaned: %v", task.Name, newKey.ID, rbErr)
			return failAt(StateRollback, verr)
		}
		r.logger.Debug("task %s: rolled back key %s", task.Name, newKey.ID)
		return failAt(StateVerify, verr)
	}

	// COMMIT: the store write makes the new key the credential of
	// record. On failure both keys stay active; rolling back here would
	// risk deleting the only credential a consumer can still read.
	if err := st.advance(StateCommit, "", nil); err != nil {
		return fail(err)
	}
	commitErr := material.WithString(func(secret string) error {
		wctx, wcancel := context.WithTimeout(detached, timeout)
		defer wcancel()
		updated := secretstore.DataWithCredential(data, identity.Credential{
			AccessKeyID: newKey.ID,
			SecretKey:   secret,
		})
		return store.WriteCredential(wctx, task.SecretPath, updated)
	})
	if commitErr != nil {
		result.DualActive = true
		r.logger.Error("task %s: store write failed, keys %s and %s are both active", task.Name, cred.AccessKeyID, newKey.ID)
		return fail(commitErr)
	}
	r.logger.Debug("task %s: wrote new credential to %s path %s", task.Name, store.Name(), task.SecretPath)

	// DEACTIVATE: retire the old key using the new session, which also
	// re-proves the committed credential. Best effort; the rotation has
	// already succeeded.
	st.advance(StateDeactivate, "", nil)
	if !oldKeyListed {
		r.logger.Debug("task %s: old key %s no longer exists, skipping deactivation", task.Name, cred.AccessKeyID)
	} else {
		callCtx, cancel = context.WithTimeout(detached, timeout)
		err = client.SetKeyStatus(callCtx, sessionB, cred.AccessKeyID, identity.StatusInactive)
		cancel()
		if err != nil {
			warn := "could not deactivate old key " + cred.AccessKeyID + ": " + err.Error()
			r.logger.Warn("task %s: %s", task.Name, warn)
			result.Warnings = append(result.Warnings, warn)
		}
	}

	st.advance(StateDone, "", nil)
	result.Outcome = OutcomeSuccess
	result.CompletedAt = r.now()
	result.Transitions = st.transitions
	observeCompleted(task.Name, OutcomeSuccess, result.CompletedAt.Sub(started))
	r.logger.Info("task %s: rotated %s -> %s", task.Name, cred.AccessKeyID, newKey.ID)
	return result
}
