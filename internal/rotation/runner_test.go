package rotation

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/identity"
	"github.com/systmms/keyrotor/internal/logging"
	"github.com/systmms/keyrotor/internal/secretstore"
)

func batchTask(name string) config.TaskConfig {
	return config.TaskConfig{
		Name:           name,
		Store:          "mem",
		SecretPath:     "secret/" + name,
		IdentityAPIURL: "https://identity.example.com",
		TimeoutMs:      2000,
	}
}

func newBatchRig(t *testing.T, taskNames []string) (*fakeIdentity, *memStore, *Runner) {
	t.Helper()
	fake := newFakeIdentity()
	store := newMemStore()
	for _, name := range taskNames {
		id := "AK-" + name
		fake.addKey(id, "secret-"+name, identity.StatusActive)
		store.data["secret/"+name] = map[string]string{
			secretstore.FieldAccessKeyID: id,
			secretstore.FieldSecretKey:   "secret-" + name,
		}
	}

	logger := logging.NewWithWriter(io.Discard, false, true)
	factory := func(apiURL string, timeout time.Duration) IdentityClient { return fake }
	rotator := NewRotator(factory, logger)
	runner := NewRunner(rotator, map[string]secretstore.Store{"mem": store}, logger, 2)
	return fake, store, runner
}

func TestRunnerPreservesTaskOrder(t *testing.T) {
	names := []string{"alpha", "bravo", "charlie", "delta"}
	_, store, runner := newBatchRig(t, names)

	tasks := make([]config.TaskConfig, len(names))
	for i, name := range names {
		tasks[i] = batchTask(name)
	}

	results := runner.Run(context.Background(), tasks)

	require.Len(t, results, len(names))
	for i, name := range names {
		assert.Equal(t, name, results[i].Task.Name)
		assert.Equal(t, OutcomeSuccess, results[i].Outcome, "task %s: %s", name, results[i].Detail)
		data := store.credential("secret/" + name)
		assert.Equal(t, results[i].NewKeyID, data[secretstore.FieldAccessKeyID])
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	names := []string{"good", "bad"}
	_, store, runner := newBatchRig(t, names)
	store.data["secret/bad"][secretstore.FieldSecretKey] = "wrong"

	results := runner.Run(context.Background(), []config.TaskConfig{
		batchTask("good"), batchTask("bad"),
	})

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.Equal(t, StateAuthOld, results[1].FailedAt)
}

func TestRunnerUnknownStore(t *testing.T) {
	_, _, runner := newBatchRig(t, []string{"alpha"})

	task := batchTask("alpha")
	task.Store = "nope"
	results := runner.Run(context.Background(), []config.TaskConfig{task})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Detail, `unknown store "nope"`)
}

type panicStore struct{ memStore }

func (s *panicStore) ReadCredential(ctx context.Context, path string) (map[string]string, error) {
	panic("store exploded")
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	fake := newFakeIdentity()
	logger := logging.NewWithWriter(io.Discard, false, true)
	factory := func(apiURL string, timeout time.Duration) IdentityClient { return fake }
	runner := NewRunner(NewRotator(factory, logger), map[string]secretstore.Store{
		"mem": &panicStore{},
	}, logger, 1)

	results := runner.Run(context.Background(), []config.TaskConfig{batchTask("alpha")})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Detail, "panic during rotation")
}
