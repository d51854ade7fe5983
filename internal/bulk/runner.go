package bulk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Status tracks a single task through one bulk run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFulfilled  Status = "fulfilled"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Task pairs an opaque identifier with the operation to run.
type Task struct {
	ID  string
	Run func(ctx context.Context) (any, error)
}

// Result records the outcome of one task. The results slice returned by the
// runner is always index-aligned with the submitted tasks.
type Result struct {
	TaskID string
	Status Status
	Value  any
	Err    error
}

// ProgressFunc observes per-item status transitions. Invocations are
// serialized; the callback must not call back into the runner.
type ProgressFunc func(index int, result Result)

// Runner applies the same operation to many items with a bounded worker pool.
// One task's failure never aborts its siblings; every outcome is reported.
// A Runner is scoped to a single batch: Start once, then optionally Retry.
type Runner struct {
	concurrency int
	onProgress  ProgressFunc
	retry       RetryPolicy
	logger      *zerolog.Logger

	mu      sync.Mutex
	tasks   []Task
	results []Result
	attempt int

	cancelled atomic.Bool
}

// NewRunner builds a runner with sane defaults. onProgress and logger may be
// nil.
func NewRunner(concurrency int, onProgress ProgressFunc, logger *zerolog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		concurrency: concurrency,
		onProgress:  onProgress,
		retry:       RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffFactor: 2},
		logger:      logger,
	}
}

// Run executes tasks and returns index-aligned results. Convenience wrapper
// for one-shot callers that do not need Cancel or Retry.
func Run(ctx context.Context, tasks []Task, concurrency int, onProgress ProgressFunc) []Result {
	return NewRunner(concurrency, onProgress, nil).Start(ctx, tasks)
}

// Start runs all tasks and blocks until every result is final. Completion
// order is unspecified; result order matches task order.
func (r *Runner) Start(ctx context.Context, tasks []Task) []Result {
	r.mu.Lock()
	r.tasks = tasks
	r.results = make([]Result, len(tasks))
	for i, t := range tasks {
		r.results[i] = Result{TaskID: t.ID, Status: StatusPending}
	}
	r.mu.Unlock()

	indices := make([]int, len(tasks))
	for i := range indices {
		indices[i] = i
	}
	r.dispatch(ctx, indices)
	return r.Results()
}

// Cancel stops dispatch of not-yet-started tasks. Tasks already processing
// run to completion; callers must still await the result list.
func (r *Runner) Cancel() {
	r.cancelled.Store(true)
}

// Retry re-runs only the given indices whose last outcome was rejected.
// Fulfilled and cancelled items are never re-run. Returns the full
// index-aligned result list.
func (r *Runner) Retry(ctx context.Context, indices []int) []Result {
	r.cancelled.Store(false)

	r.mu.Lock()
	attempt := r.attempt + 1
	r.attempt = attempt
	var eligible []int
	for _, idx := range indices {
		if idx < 0 || idx >= len(r.results) {
			continue
		}
		if r.results[idx].Status != StatusRejected {
			continue
		}
		r.results[idx] = Result{TaskID: r.tasks[idx].ID, Status: StatusPending}
		eligible = append(eligible, idx)
	}
	r.mu.Unlock()

	if len(eligible) == 0 {
		return r.Results()
	}

	if delay := r.retry.NextDelay(attempt); delay > 0 && attempt > 1 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	r.dispatch(ctx, eligible)
	return r.Results()
}

// Results returns a copy of the current result list.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) dispatch(ctx context.Context, indices []int) {
	queue := make(chan int)
	workers := r.concurrency
	if workers > len(indices) {
		workers = len(indices)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				r.runOne(ctx, idx)
			}
		}()
	}

	for _, idx := range indices {
		queue <- idx
	}
	close(queue)
	wg.Wait()
}

func (r *Runner) runOne(ctx context.Context, idx int) {
	if r.cancelled.Load() || ctx.Err() != nil {
		r.setResult(idx, Result{TaskID: r.tasks[idx].ID, Status: StatusCancelled})
		return
	}

	r.setResult(idx, Result{TaskID: r.tasks[idx].ID, Status: StatusProcessing})

	value, err := r.execute(ctx, r.tasks[idx])
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("task_id", r.tasks[idx].ID).Int("index", idx).Msg("bulk task failed")
		}
		r.setResult(idx, Result{TaskID: r.tasks[idx].ID, Status: StatusRejected, Err: err})
		return
	}
	r.setResult(idx, Result{TaskID: r.tasks[idx].ID, Status: StatusFulfilled, Value: value})
}

// execute isolates panics so a misbehaving task cannot take down the pool.
func (r *Runner) execute(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	if task.Run == nil {
		return nil, fmt.Errorf("task %s has no operation", task.ID)
	}
	return task.Run(ctx)
}

func (r *Runner) setResult(idx int, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[idx] = res
	if r.onProgress != nil {
		r.onProgress(idx, res)
	}
}
