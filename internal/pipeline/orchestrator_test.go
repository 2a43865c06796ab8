package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

func recordJob(id string) Job {
	return Job{
		ID: id,
		Run: func(context.Context) (*model.Record, error) {
			return &model.Record{ID: id, Status: model.StatusComplete}, nil
		},
	}
}

func TestOrchestrator_IsolatesFailedJob(t *testing.T) {
	jobs := make([]Job, 0, 5)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprint(i)
		if i == 3 {
			jobs = append(jobs, Job{
				ID: id,
				Run: func(context.Context) (*model.Record, error) {
					return nil, resilience.Transport(resilience.ReasonDisconnected, eris.New("server closed connection"))
				},
			})
			continue
		}
		jobs = append(jobs, recordJob(id))
	}

	out, err := NewOrchestrator(OrchestratorOptions{Workers: 2}).Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, 5)

	var records, failures int
	for id, o := range out {
		if o.Failed() {
			failures++
			assert.Equal(t, "3", id)
			assert.Equal(t, resilience.KindTransport, resilience.KindOf(o.Err))
			assert.Equal(t, resilience.ReasonDisconnected, resilience.ReasonOf(o.Err))

			var re *resilience.Error
			require.True(t, errors.As(o.Err, &re))
			assert.Equal(t, "3", re.Entity)
			continue
		}
		records++
		assert.Equal(t, id, o.Record.ID)
	}
	assert.Equal(t, 4, records)
	assert.Equal(t, 1, failures)
}

func TestOrchestrator_RecoversPanic(t *testing.T) {
	jobs := []Job{
		recordJob("ok"),
		{ID: "boom", Run: func(context.Context) (*model.Record, error) { panic("nil map") }},
	}

	out, err := NewOrchestrator(OrchestratorOptions{Workers: 2}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.False(t, out["ok"].Failed())
	require.True(t, out["boom"].Failed())
	assert.Equal(t, resilience.KindInternal, resilience.KindOf(out["boom"].Err))
	assert.Equal(t, "panic", resilience.ReasonOf(out["boom"].Err))
}

func TestOrchestrator_NilRecordIsInternal(t *testing.T) {
	jobs := []Job{{ID: "a", Run: func(context.Context) (*model.Record, error) { return nil, nil }}}
	out, err := NewOrchestrator(OrchestratorOptions{Workers: 1}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, resilience.KindInternal, resilience.KindOf(out["a"].Err))
}

func TestOrchestrator_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	jobs := []Job{{
		ID: "flaky",
		Run: func(context.Context) (*model.Record, error) {
			if calls.Add(1) < 3 {
				return nil, resilience.Transport(resilience.ReasonTimeout, eris.New("deadline"))
			}
			return &model.Record{ID: "flaky"}, nil
		},
	}}

	o := NewOrchestrator(OrchestratorOptions{
		Workers: 1,
		Retry:   resilience.RetryPolicy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	out, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.False(t, out["flaky"].Failed())
	assert.Equal(t, int32(3), calls.Load())
}

func TestOrchestrator_DoesNotRetryFormatErrors(t *testing.T) {
	var calls atomic.Int32
	jobs := []Job{{
		ID: "bad",
		Run: func(context.Context) (*model.Record, error) {
			calls.Add(1)
			return nil, resilience.Format(resilience.ReasonMalformed, eris.New("not json"))
		},
	}}

	o := NewOrchestrator(OrchestratorOptions{
		Workers: 1,
		Retry:   resilience.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	})
	out, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, resilience.KindFormat, resilience.KindOf(out["bad"].Err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOrchestrator_RejectsBadInput(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorOptions{Workers: -1}).Run(context.Background(), []Job{recordJob("a")})
	require.Error(t, err)

	_, err = NewOrchestrator(OrchestratorOptions{Workers: 1}).Run(context.Background(), []Job{recordJob("a"), recordJob("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestOrchestrator_CancelledBeforeDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewOrchestrator(OrchestratorOptions{Workers: 1}).Run(ctx, []Job{recordJob("a"), recordJob("b")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, out, 2)
	for _, o := range out {
		assert.Equal(t, resilience.KindInternal, resilience.KindOf(o.Err))
		assert.Equal(t, "not-dispatched", resilience.ReasonOf(o.Err))
	}
}

func TestOrchestrator_OnCompleteRunsPerJob(t *testing.T) {
	var mu sync.Mutex
	var persisted []string
	var progress atomic.Int32

	o := NewOrchestrator(OrchestratorOptions{
		Workers: 3,
		OnComplete: func(_ context.Context, out Outcome) error {
			if out.ID == "c" {
				return eris.New("disk full")
			}
			mu.Lock()
			persisted = append(persisted, out.ID)
			mu.Unlock()
			return nil
		},
		Progress: func(done, total int, _ Outcome) {
			progress.Add(1)
			assert.LessOrEqual(t, done, total)
		},
	})

	out, err := o.Run(context.Background(), []Job{recordJob("a"), recordJob("b"), recordJob("c")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, persisted)
	assert.Equal(t, resilience.KindPersist, resilience.KindOf(out["c"].Err))
	assert.Equal(t, int32(3), progress.Load())
}

func TestOrchestrator_RespectsWorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	jobs := make([]Job, 8)
	for i := range jobs {
		id := fmt.Sprint(i)
		jobs[i] = Job{ID: id, Run: func(context.Context) (*model.Record, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return &model.Record{ID: id}, nil
		}}
	}

	_, err := NewOrchestrator(OrchestratorOptions{Workers: 2}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
	assert.Equal(t, DefaultWorkers(), NewOrchestrator(OrchestratorOptions{}).Workers())
}
