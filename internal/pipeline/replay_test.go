package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
	"github.com/sells-group/islamic-data/internal/store"
)

func categoryJob(category, id string) Job {
	return Job{ID: id, Run: func(context.Context) (*model.Record, error) {
		return &model.Record{ID: id, Category: category, Status: model.StatusComplete}, nil
	}}
}

func failingJob(id string, err error) Job {
	return Job{ID: id, Run: func(context.Context) (*model.Record, error) { return nil, err }}
}

func TestPlanReplay_SelectsTransientFailures(t *testing.T) {
	ctx := context.Background()
	ledger := newRunnerLedger(t)
	fs := store.NewFileStore(afero.NewMemMapFs(), "data")
	r := &Runner{Records: fs, Ledger: ledger, Opts: OrchestratorOptions{Workers: 2}}

	jobs := []Job{
		categoryJob("hadith", "1"),
		failingJob("2", resilience.Transport(resilience.ReasonTimeout, eris.New("deadline"))),
		failingJob("3", resilience.Transport(resilience.ReasonNotFound, eris.New("404"))),
		failingJob("4", resilience.Format(resilience.ReasonMalformed, eris.New("bad json"))),
		failingJob("5", resilience.Transport(resilience.ReasonCircuitOpen, eris.New("host open"))),
	}
	sum, err := r.Run(ctx, staticSource{category: "hadith", jobs: jobs})
	require.NoError(t, err)

	rp, err := PlanReplay(ctx, ledger, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, "hadith", rp.Category)
	assert.Equal(t, []string{"2", "5"}, rp.IDs)
	assert.Equal(t, 2, rp.Skipped)
}

type cancellingSource struct {
	staticSource
	cancel context.CancelFunc
}

func (s cancellingSource) Plan(ctx context.Context) ([]Job, error) {
	s.cancel()
	return s.staticSource.Plan(ctx)
}

func TestPlanReplay_ResumesCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger := newRunnerLedger(t)
	r := &Runner{Records: store.NewFileStore(afero.NewMemMapFs(), "data"), Ledger: ledger, Opts: OrchestratorOptions{Workers: 1}}

	src := cancellingSource{
		staticSource: staticSource{category: "names", jobs: []Job{categoryJob("names", "a"), categoryJob("names", "b")}},
		cancel:       cancel,
	}
	sum, err := r.Run(ctx, src)
	require.Error(t, err)

	rp, err := PlanReplay(context.Background(), ledger, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rp.IDs)
	assert.Zero(t, rp.Skipped)
}

func TestPlanReplay_UnknownRun(t *testing.T) {
	_, err := PlanReplay(context.Background(), newRunnerLedger(t), "nope")
	require.Error(t, err)
}

func TestOnlyJobs_FiltersPlan(t *testing.T) {
	src := OnlyJobs(staticSource{category: "manners", jobs: fiveJobsThirdFails()}, []string{"2", "4", "9"})
	assert.Equal(t, "manners", src.Category())

	jobs, err := src.Plan(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"2", "4"}, ids)
}

func TestOnlyJobs_PlanErrorPassesThrough(t *testing.T) {
	src := OnlyJobs(staticSource{category: "c", err: eris.New("listing moved")}, []string{"1"})
	_, err := src.Plan(context.Background())
	require.Error(t, err)
}

func TestReplay_RerunRecoversTransientFailure(t *testing.T) {
	ctx := context.Background()
	ledger := newRunnerLedger(t)
	fs := store.NewFileStore(afero.NewMemMapFs(), "data")
	r := &Runner{Records: fs, Ledger: ledger, Opts: OrchestratorOptions{Workers: 1}}

	first, err := r.Run(ctx, staticSource{category: "manners", jobs: fiveJobsThirdFails()})
	require.NoError(t, err)

	rp, err := PlanReplay(ctx, ledger, first.RunID)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, rp.IDs)

	var healed []Job
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		healed = append(healed, categoryJob("manners", id))
	}
	second, err := r.Run(ctx, OnlyJobs(staticSource{category: "manners", jobs: healed}, rp.IDs))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, 1, second.Succeeded)
	assert.NotEqual(t, first.RunID, second.RunID)

	names, err := fs.List("manners")
	require.NoError(t, err)
	assert.Contains(t, names, "3")
}
