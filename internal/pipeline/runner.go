package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
	"github.com/sells-group/islamic-data/internal/store"
)

// RecordWriter persists one merged record.
type RecordWriter interface {
	WriteRecord(rec model.Record) error
}

// RunLedger is the bookkeeping the Runner keeps per run.
type RunLedger interface {
	CreateRun(ctx context.Context, category string) (*model.Run, error)
	RecordOutcome(ctx context.Context, o model.EntityOutcome) error
	FinishRun(ctx context.Context, runID string, res store.RunResult) error
}

// Summary reports one category run.
type Summary struct {
	RunID     string
	Category  string
	Total     int
	Succeeded int
	Failed    int
	// Partial counts succeeded records that are not complete.
	Partial  int
	Duration time.Duration
	Outcomes map[string]Outcome
}

// Runner drives a Source through both phases and persists every finished
// record as soon as its job completes.
type Runner struct {
	Records RecordWriter
	// Ledger is optional.
	Ledger RunLedger
	Opts   OrchestratorOptions
}

// Run plans src, runs its jobs and records the outcome of each. The error
// is non-nil only when planning fails or the run is cancelled; individual
// job failures are reported in the Summary.
func (r *Runner) Run(ctx context.Context, src Source) (*Summary, error) {
	start := time.Now()
	category := src.Category()
	log := zap.L().With(zap.String("category", category))

	sum := &Summary{Category: category}
	if r.Ledger != nil {
		run, err := r.Ledger.CreateRun(ctx, category)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		sum.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	log.Info("pipeline: planning")
	jobs, err := src.Plan(ctx)
	if err != nil {
		r.finish(ctx, sum, err)
		return sum, eris.Wrapf(err, "pipeline: plan %s", category)
	}
	sum.Total = len(jobs)

	opts := r.Opts
	userHook := opts.OnComplete
	opts.OnComplete = func(ctx context.Context, o Outcome) error {
		var persistErr error
		if o.Record != nil {
			persistErr = r.Records.WriteRecord(*o.Record)
		}
		if userHook != nil && persistErr == nil {
			persistErr = userHook(ctx, o)
		}
		r.recordOutcome(ctx, sum.RunID, o, persistErr)
		return persistErr
	}

	log.Info("pipeline: running", zap.Int("jobs", len(jobs)))
	outcomes, runErr := NewOrchestrator(opts).Run(ctx, jobs)
	sum.Outcomes = outcomes
	for _, o := range outcomes {
		if o.Failed() {
			sum.Failed++
			// Undispatched jobs never reach OnComplete.
			if resilience.ReasonOf(o.Err) == resilience.ReasonNotDispatched {
				r.recordOutcome(ctx, sum.RunID, o, nil)
			}
			continue
		}
		sum.Succeeded++
		if o.Record.Status != model.StatusComplete {
			sum.Partial++
		}
	}
	sum.Duration = time.Since(start)

	r.finish(ctx, sum, runErr)
	log.Info("pipeline: run finished",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("partial", sum.Partial),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", sum.Duration),
	)
	if runErr != nil {
		return sum, runErr
	}
	return sum, nil
}

func (r *Runner) recordOutcome(ctx context.Context, runID string, o Outcome, persistErr error) {
	if r.Ledger == nil {
		return
	}
	entry := model.EntityOutcome{RunID: runID, EntityID: o.ID}
	err := o.Err
	if err == nil && persistErr != nil {
		err = resilience.New(resilience.KindPersist, "", persistErr)
	}
	if err != nil {
		entry.ErrorKind = string(resilience.KindOf(err))
		entry.ErrorReason = resilience.ReasonOf(err)
		entry.Error = err.Error()
	} else {
		entry.Status = o.Record.Status
	}
	if lerr := r.Ledger.RecordOutcome(context.WithoutCancel(ctx), entry); lerr != nil {
		zap.L().Warn("pipeline: record outcome", zap.String("entity", o.ID), zap.Error(lerr))
	}
}

func (r *Runner) finish(ctx context.Context, sum *Summary, runErr error) {
	if r.Ledger == nil {
		return
	}
	err := r.Ledger.FinishRun(context.WithoutCancel(ctx), sum.RunID, store.RunResult{
		Total:     sum.Total,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Err:       runErr,
	})
	if err != nil {
		zap.L().Warn("pipeline: finish run", zap.String("run_id", sum.RunID), zap.Error(err))
	}
}
