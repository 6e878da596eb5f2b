package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/logging"
	"github.com/systmms/keyrotor/internal/secretstore"
)

// DefaultConcurrency bounds how many tasks rotate at once. Identity APIs
// rate limit aggressively, so the default stays modest.
const DefaultConcurrency = 4

// Runner executes a batch of rotation tasks against their stores.
type Runner struct {
	rotator     *Rotator
	stores      map[string]secretstore.Store
	logger      *logging.Logger
	concurrency int
}

func NewRunner(rotator *Rotator, stores map[string]secretstore.Store, logger *logging.Logger, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Runner{rotator: rotator, stores: stores, logger: logger, concurrency: concurrency}
}

// Run rotates every task and returns one result per task in the input
// order, regardless of completion order. A panicking task is reported as
// a failed result; it never takes down the batch.
func (r *Runner) Run(ctx context.Context, tasks []config.TaskConfig) []Result {
	results := make([]Result, len(tasks))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task config.TaskConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.runOne(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, task config.TaskConfig) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task %s: panic during rotation: %v", task.Name, rec)
			result = Result{
				Task:        task,
				Outcome:     OutcomeFailed,
				Detail:      fmt.Sprintf("panic during rotation: %v", rec),
				Err:         fmt.Errorf("panic during rotation: %v", rec),
				StartedAt:   time.Now(),
				CompletedAt: time.Now(),
			}
		}
	}()

	store, ok := r.stores[task.Store]
	if !ok {
		err := fmt.Errorf("task %s references unknown store %q", task.Name, task.Store)
		now := time.Now()
		return Result{Task: task, Outcome: OutcomeFailed, Detail: err.Error(), Err: err, StartedAt: now, CompletedAt: now}
	}

	return r.rotator.Rotate(ctx, task, store)
}
