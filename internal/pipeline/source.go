package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/fetcher"
	"github.com/sells-group/islamic-data/internal/merge"
	"github.com/sells-group/islamic-data/internal/model"
)

// Categories produced by the sources.
const (
	CategorySurahs   = "surahs"
	CategoryNames    = "names"
	CategoryProphets = "prophets"
	CategoryQibla    = "qibla"
	CategoryManners  = "manners"
	CategoryHadith   = "hadith"
	CategoryFacts    = "facts"
)

// Source enumerates the jobs of one category. Plan is phase one: it runs
// synchronously and performs any listing fetch the jobs depend on.
type Source interface {
	Category() string
	Plan(ctx context.Context) ([]Job, error)
}

// DocumentWriter persists a named JSON document.
type DocumentWriter interface {
	Write(category, name string, v any) error
}

func fetchDocument(ctx context.Context, f fetcher.Fetcher, req fetcher.Request) (*fetcher.Result, error) {
	if req.Expect == fetcher.ExpectAny {
		req.Expect = fetcher.ExpectHTML
	}
	return f.Fetch(ctx, req)
}

// mergeRecord merges fragments under plan and logs dropped variants. Merge
// errors never fail the job; they leave the record partial.
func mergeRecord(plan merge.Plan, id string, frags ...model.Fragment) *model.Record {
	rec, errs := merge.Merge(plan, id, frags)
	for _, err := range errs {
		zap.L().Warn("pipeline: variant omitted",
			zap.String("category", plan.Category),
			zap.String("entity", id),
			zap.Error(err),
		)
	}
	return &rec
}
