package pipeline

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// OutcomeReader reads back a finished run from the ledger.
type OutcomeReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error)
}

// Replay names the entities of an earlier run worth running again.
type Replay struct {
	RunID    string
	Category string
	IDs      []string
	// Skipped counts failures that would fail the same way again.
	Skipped int
}

// PlanReplay selects the failed entities of runID whose failure was
// transient. Complete and partial outcomes are never replayed.
func PlanReplay(ctx context.Context, r OutcomeReader, runID string) (*Replay, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: replay run %s", runID)
	}
	outcomes, err := r.ListOutcomes(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: replay run %s", runID)
	}

	rp := &Replay{RunID: runID, Category: run.Category}
	for _, o := range outcomes {
		if o.ErrorKind == "" {
			continue
		}
		if resilience.Replayable(resilience.Kind(o.ErrorKind), o.ErrorReason) {
			rp.IDs = append(rp.IDs, o.EntityID)
			continue
		}
		rp.Skipped++
	}
	return rp, nil
}

// OnlyJobs restricts src to the jobs whose ID is in ids. The full plan is
// still built since job IDs come from the upstream listing.
func OnlyJobs(src Source, ids []string) Source {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	return &filteredSource{Source: src, keep: keep}
}

type filteredSource struct {
	Source
	keep map[string]struct{}
}

func (s *filteredSource) Plan(ctx context.Context) ([]Job, error) {
	jobs, err := s.Source.Plan(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(s.keep))
	out := jobs[:0:0]
	for _, j := range jobs {
		if _, ok := s.keep[j.ID]; ok {
			out = append(out, j)
			seen[j.ID] = struct{}{}
		}
	}

	var gone []string
	for id := range s.keep {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		slices.Sort(gone)
		zap.L().Warn("pipeline: replayed entities no longer planned",
			zap.String("category", s.Category()),
			zap.Strings("ids", gone),
		)
	}
	return out, nil
}
