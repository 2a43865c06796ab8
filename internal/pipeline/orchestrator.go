package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// Job is one entity's independent Fetch, Extract and Merge chain.
type Job struct {
	ID  string
	Run func(ctx context.Context) (*model.Record, error)
}

// Outcome is the result of one job: a Record or a classified error.
type Outcome struct {
	ID     string
	Record *model.Record
	Err    error
}

// Failed reports whether the job ended in error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// OrchestratorOptions configures the worker pool.
type OrchestratorOptions struct {
	// Workers caps concurrent jobs. Zero means DefaultWorkers().
	Workers int
	// Retry is applied to whole jobs; the zero value runs each job once.
	Retry resilience.RetryPolicy
	// OnComplete runs inside the worker right after a job finishes, so
	// each result can be persisted immediately. An error it returns marks
	// a successful outcome as a persist failure.
	OnComplete func(ctx context.Context, o Outcome) error
	// Progress is called after every finished job.
	Progress func(done, total int, o Outcome)
}

// Orchestrator fans jobs out over a fixed worker budget. A failing job
// never cancels its siblings.
type Orchestrator struct {
	opts OrchestratorOptions
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = resilience.NoRetry()
	}
	return &Orchestrator{opts: opts}
}

// Workers returns the worker budget.
func (o *Orchestrator) Workers() int {
	return o.opts.Workers
}

// DefaultWorkers is half the logical CPUs, at least one.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, n/2)
}

// Run executes jobs and returns one Outcome per job ID. The returned error
// is reserved for run-level failures: a non-positive worker budget,
// duplicate job IDs, or ctx ending before every job was dispatched. In the
// last case undispatched jobs are present in the map with a classified
// error.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (map[string]Outcome, error) {
	if o.opts.Workers < 1 {
		return nil, eris.Errorf("pipeline: worker budget must be positive, got %d", o.opts.Workers)
	}
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if _, ok := seen[j.ID]; ok {
			return nil, eris.Errorf("pipeline: duplicate job id %q", j.ID)
		}
		seen[j.ID] = struct{}{}
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Outcome, len(jobs))
		done    atomic.Int32
	)

	// errgroup.Group without a derived context: one job's error must not
	// cancel the others.
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	dispatched := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			out := o.runJob(ctx, job)
			mu.Lock()
			results[job.ID] = out
			mu.Unlock()
			if o.opts.Progress != nil {
				o.opts.Progress(int(done.Add(1)), len(jobs), out)
			}
			return nil
		})
	}
	_ = g.Wait()

	if dispatched < len(jobs) {
		cause := ctx.Err()
		for _, job := range jobs[dispatched:] {
			results[job.ID] = Outcome{
				ID:  job.ID,
				Err: resilience.New(resilience.KindInternal, resilience.ReasonNotDispatched, cause).WithEntity(job.ID),
			}
		}
		return results, eris.Wrapf(cause, "pipeline: run cancelled after dispatching %d of %d jobs", dispatched, len(jobs))
	}
	return results, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) (out Outcome) {
	out.ID = job.ID
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: job panicked", zap.String("job", job.ID), zap.Any("panic", r))
			out.Record = nil
			out.Err = resilience.New(resilience.KindInternal, "panic", fmt.Errorf("panic: %v", r)).WithEntity(job.ID)
		}
		o.complete(ctx, &out)
	}()

	rec, err := resilience.Retry(ctx, o.opts.Retry, job.ID, job.Run)
	if err != nil {
		out.Err = classify(job.ID, err)
		zap.L().Warn("pipeline: job failed",
			zap.String("job", job.ID),
			zap.String("kind", string(resilience.KindOf(out.Err))),
			zap.Error(err),
		)
		return out
	}
	if rec == nil {
		out.Err = resilience.New(resilience.KindInternal, "", eris.New("job returned no record")).WithEntity(job.ID)
		return out
	}
	out.Record = rec
	return out
}

func (o *Orchestrator) complete(ctx context.Context, out *Outcome) {
	if o.opts.OnComplete == nil {
		return
	}
	if err := o.opts.OnComplete(ctx, *out); err != nil && out.Err == nil {
		out.Err = resilience.New(resilience.KindPersist, "", err).WithEntity(out.ID)
	}
}

// classify tags err with the job's entity, keeping its kind when it has one.
func classify(id string, err error) error {
	var e *resilience.Error
	if errors.As(err, &e) {
		if err == error(e) {
			return e.WithEntity(id)
		}
		return &resilience.Error{Kind: e.Kind, Reason: e.Reason, Entity: id, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Transport(resilience.ReasonTimeout, err).WithEntity(id)
	}
	return resilience.New(resilience.KindInternal, "", err).WithEntity(id)
}
