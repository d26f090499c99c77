package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32
	runs     atomic.Int32
	block    chan struct{}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func newScheduler() *Scheduler {
	return New(logger.Nop()).WithRetry(2, time.Millisecond)
}

func waitHistory(t *testing.T, s *Scheduler, name string) JobHistory {
	t.Helper()
	var h JobHistory
	require.Eventually(t, func() bool {
		var err error
		h, err = s.GetJobHistory(name)
		return err == nil && len(h.Results) == 1
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func TestAddJob(t *testing.T) {
	s := newScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 2 * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "*/30 * * * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	h := waitHistory(t, s, "flaky")

	assert.True(t, h.Results[0].Success)
	assert.Equal(t, 3, h.Results[0].Attempts)
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := newScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "broken", schedule: "@daily", failures: 100}))

	require.NoError(t, s.RunJob("broken"))
	h := waitHistory(t, s, "broken")

	assert.False(t, h.Results[0].Success)
	assert.Equal(t, "transient", h.Results[0].Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_Unknown(t *testing.T) {
	assert.Error(t, newScheduler().RunJob("nope"))
}

func TestRemoveJob(t *testing.T) {
	s := newScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RunJob("a"))
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "slow", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("slow"))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	h, err := s.GetJobHistory("slow")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
	assert.Equal(t, 1, h.Results[0].Attempts)
}

func TestJobHistory(t *testing.T) {
	var h JobHistory
	for i := 0; i < historyLimit+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Empty(t, h.GetLatestResults(0))
	assert.Len(t, h.GetFailedResults(), historyLimit/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.001)
}
