package cron

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestService(t *testing.T, onJob JobHandler) *Service {
	t.Helper()
	s := NewService(filepath.Join(t.TempDir(), "cron.json"), onJob)
	s.startTime = time.Now()
	return s
}

func TestTickOnceFiresAtJobOnceThenStaysDisabled(t *testing.T) {
	var runs int32
	s := newTestService(t, func(ctx context.Context, job *Job) (RunResult, error) {
		atomic.AddInt32(&runs, 1)
		return RunResult{}, nil
	})
	s.jobs = []*Job{{
		ID:       "j1",
		Enabled:  true,
		Schedule: Schedule{Kind: "at", AtMs: time.Now().Add(-time.Minute).UnixMilli()},
	}}

	s.tickOnce(context.Background())
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected the at-job to run once, ran %d times", got)
	}
	if s.jobs[0].Enabled {
		t.Fatal("an at-job must disable itself after firing")
	}

	s.tickOnce(context.Background())
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected tickOnce to be idempotent for a disabled at-job, ran %d times", got)
	}
}

func TestTickOnceEveryJobDoesNotRefireBeforeItsInterval(t *testing.T) {
	var runs int32
	s := newTestService(t, func(ctx context.Context, job *Job) (RunResult, error) {
		atomic.AddInt32(&runs, 1)
		return RunResult{}, nil
	})
	s.jobs = []*Job{{
		ID:       "j1",
		Enabled:  true,
		Schedule: Schedule{Kind: "every", EveryMs: int64(time.Hour / time.Millisecond)},
	}}

	s.tickOnce(context.Background())
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected the every-job's first tick to fire, ran %d times", got)
	}

	s.tickOnce(context.Background())
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected the every-job to stay quiet until its interval elapses, ran %d times", got)
	}
}

func TestTickOnceSkipsDisabledJobs(t *testing.T) {
	var runs int32
	s := newTestService(t, func(ctx context.Context, job *Job) (RunResult, error) {
		atomic.AddInt32(&runs, 1)
		return RunResult{}, nil
	})
	s.jobs = []*Job{{
		ID:       "j1",
		Enabled:  false,
		Schedule: Schedule{Kind: "at", AtMs: time.Now().Add(-time.Minute).UnixMilli()},
	}}

	s.tickOnce(context.Background())
	if got := atomic.LoadInt32(&runs); got != 0 {
		t.Fatalf("expected a disabled job never to run, ran %d times", got)
	}
}
