package registry

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Accumulation defaults. The public facts generator serves a small fixed
// pool, so the idle-round bound is what usually ends a run.
const (
	DefaultTargetSize    = 18
	DefaultMaxIdleRounds = 5
	DefaultBatchSize     = 1
)

// FetchOne fetches and extracts a single item.
type FetchOne func(ctx context.Context) (string, error)

// AccumulateOptions bounds an accumulation run.
type AccumulateOptions struct {
	TargetSize    int
	MaxIdleRounds int
	// BatchSize is the number of fetches per round. They run concurrently.
	BatchSize int
}

func (o AccumulateOptions) withDefaults() AccumulateOptions {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.MaxIdleRounds <= 0 {
		o.MaxIdleRounds = DefaultMaxIdleRounds
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// StopReason says why Accumulate returned.
type StopReason string

const (
	StopTarget StopReason = "target"
	StopIdle   StopReason = "idle"
)

// Stats summarizes an accumulation run.
type Stats struct {
	Rounds   int        `json:"rounds"`
	Fetches  int        `json:"fetches"`
	Added    int        `json:"added"`
	Failures int        `json:"failures"`
	Idle     int        `json:"idle_rounds"`
	Reason   StopReason `json:"reason"`
}

// Accumulate repeatedly calls fetchOne and adds each result to reg until
// reg holds TargetSize entries or MaxIdleRounds consecutive rounds add
// nothing. Failed and empty fetches count as no addition. The only error
// returned is ctx's.
func Accumulate(ctx context.Context, reg *Registry, fetchOne FetchOne, opts AccumulateOptions) (*Registry, Stats, error) {
	opts = opts.withDefaults()
	var stats Stats

	if reg.Len() >= opts.TargetSize {
		stats.Reason = StopTarget
		return reg, stats, nil
	}

	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return reg, stats, err
		}

		added, failures := runRound(ctx, reg, fetchOne, opts.BatchSize)
		stats.Rounds++
		stats.Fetches += opts.BatchSize
		stats.Added += added
		stats.Failures += failures

		if err := ctx.Err(); err != nil {
			return reg, stats, err
		}

		if added == 0 {
			idle++
		} else {
			idle = 0
		}
		stats.Idle = idle

		zap.L().Debug("registry: accumulate round",
			zap.Int("round", stats.Rounds),
			zap.Int("added", added),
			zap.Int("size", reg.Len()),
			zap.Int("idle", idle),
		)

		if reg.Len() >= opts.TargetSize {
			stats.Reason = StopTarget
			return reg, stats, nil
		}
		if idle >= opts.MaxIdleRounds {
			stats.Reason = StopIdle
			zap.L().Info("registry: source exhausted before target",
				zap.Int("size", reg.Len()),
				zap.Int("target", opts.TargetSize),
			)
			return reg, stats, nil
		}
	}
}

func runRound(ctx context.Context, reg *Registry, fetchOne FetchOne, batch int) (added, failures int) {
	results := make([]bool, batch)
	failed := make([]bool, batch)

	var g errgroup.Group
	for i := range batch {
		g.Go(func() error {
			item, err := fetchOne(ctx)
			if err != nil {
				failed[i] = true
				zap.L().Debug("registry: fetch failed", zap.Error(err))
				return nil
			}
			results[i] = reg.Add(item)
			return nil
		})
	}
	_ = g.Wait()

	for i := range batch {
		if results[i] {
			added++
		}
		if failed[i] {
			failures++
		}
	}
	return added, failures
}
