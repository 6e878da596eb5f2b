package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveHelpersAreNoOpsBeforeInit(t *testing.T) {
	// Must not panic when metrics were never initialized.
	observeStarted("payments")
	observeCompleted("payments", OutcomeSuccess, time.Second)
	observeStepFailure("payments", StateCommit)
}

func TestInitMetrics(t *testing.T) {
	// InitMetrics uses sync.Once, so later calls are no-ops.
	InitMetrics()
	InitMetrics()

	assert.True(t, metricsRegistered)
	assert.NotNil(t, startedTotal)
	assert.NotNil(t, completedTotal)
	assert.NotNil(t, rotationDuration)
	assert.NotNil(t, stepFailureTotal)

	// Recording after init must not panic.
	observeStarted("payments")
	observeCompleted("payments", OutcomeFailed, 3*time.Second)
	observeStepFailure("payments", StateVerify)
}
