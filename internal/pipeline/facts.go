package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/registry"
)

// FactsResult is the outcome of one facts accumulation.
type FactsResult struct {
	// Registry is the union of the persisted and newly fetched facts.
	Registry *registry.Registry
	Stats    registry.Stats
	// Random is one fact drawn from the union, empty when it has none.
	Random string
}

// CollectFacts fetches factsURL until this run has gathered the target
// number of distinct facts or the source stops yielding new ones, then
// unions them into the persisted facts. The target counts this run's
// facts only, so a full stored registry still grows.
func CollectFacts(ctx context.Context, f fetcher.Fetcher, factsURL string, st registry.Storage, opts registry.AccumulateOptions) (*FactsResult, error) {
	stored, err := registry.Load(st, registry.FactsCategory, registry.FactsName)
	if err != nil {
		return nil, err
	}
	before := stored.Len()

	fetchOne := func(ctx context.Context) (string, error) {
		res, err := fetchDocument(ctx, f, fetcher.Request{BaseURL: factsURL})
		if err != nil {
			return "", err
		}
		doc, err := res.Document()
		if err != nil {
			return "", err
		}
		return extract.Fact(doc)
	}

	reg, stats, err := registry.Accumulate(ctx, registry.New(), fetchOne, opts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: accumulate facts")
	}

	union, err := registry.Save(st, registry.FactsCategory, registry.FactsName, reg)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: facts collected",
		zap.Int("before", before),
		zap.Int("after", union.Len()),
		zap.Int("rounds", stats.Rounds),
		zap.String("reason", string(stats.Reason)),
	)

	out := &FactsResult{Registry: union, Stats: stats}
	out.Random, _ = union.Random()
	return out, nil
}
