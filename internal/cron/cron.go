// Package cron implements the scheduled-job subsystem: cron,
// every, and at schedules ticking once a second, persisted as JSON between
// restarts. Grounded on pyclaw cron.py — the Go rewrite keeps its exact
// due-computation and post-run state-update ordering, swapping croniter for
// gronx's next-tick evaluation.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// Schedule describes when a job fires.
type Schedule struct {
	Kind    string `json:"kind"` // cron, every, at
	Expr    string `json:"expr,omitempty"`
	EveryMs int64 `json:"every_ms,omitempty"`
	AtMs    int64 `json:"at_ms,omitempty"`
}

// Payload is what a fired job delivers.
type Payload struct {
	Message string `json:"message"`
	Deliver bool `json:"deliver,omitempty"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// JobState records the outcome of the most recent run.
type JobState struct {
	LastRunAtMs int64 `json:"last_run_at_ms,omitempty"`
	LastStatus  string `json:"last_status,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Job is one scheduled entry.
type Job struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Enabled        bool `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload `json:"payload"`
	DeleteAfterRun bool `json:"delete_after_run,omitempty"`
	State          JobState `json:"state"`
}

// RunResult is what the handler returns for a fired job.
type RunResult struct {
	Content string
}

// JobHandler executes one fired job and returns its result.
type JobHandler func(ctx context.Context, job *Job) (RunResult, error)

// Service is the single-process cron/every/at scheduler. It ticks once a
// second, matching pyclaw's 1-second poll loop exactly.
type Service struct {
	storePath string
	onJob     JobHandler
	startTime time.Time

	mu        sync.Mutex
	jobs      []*Job

	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewService constructs a scheduler persisting to storePath.
func NewService(storePath string, onJob JobHandler) *Service {
	return &Service{
		storePath: storePath,
		onJob:     onJob,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start loads persisted jobs and begins the tick loop. It returns once
// loading completes; the tick loop runs in the background until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.startTime = time.Now()
	if err := s.load(); err != nil {
		return fmt.Errorf("cron: load: %w", err)
	}
	go s.tickLoop(ctx)
	return nil
}

// Stop signals the tick loop to exit and waits for it.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// AddJob appends a new job and persists immediately.
func (s *Service) AddJob(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.saveLocked()
}

// ListJobs returns a snapshot copy of the job list.
func (s *Service) ListJobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// RemoveJob deletes a job by id, persisting on success.
func (s *Service) RemoveJob(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, job := range s.jobs {
		if job.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return true, s.saveLocked()
		}
	}
	return false, nil
}

// EnableJob toggles a job's enabled flag, persisting on success.
func (s *Service) EnableJob(id string, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			job.Enabled = enabled
			return true, s.saveLocked()
		}
	}
	return false, nil
}

func (s *Service) tickLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *Service) tickOnce(ctx context.Context) {
	nowMs := time.Now().UnixMilli()

	s.mu.Lock()
	due := make([]*Job, 0)
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		switch job.Schedule.Kind {
		case "cron":
			if s.cronDue(job, nowMs) {
				due = append(due, job)
			}
		case "every":
			if job.Schedule.EveryMs > 0 && nowMs >= job.State.LastRunAtMs+job.Schedule.EveryMs {
				due = append(due, job)
			}
		case "at":
			if job.Schedule.AtMs > 0 && nowMs >= job.Schedule.AtMs {
				job.Enabled = false
				due = append(due, job)
			}
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.runJob(ctx, job)
	}
}

// cronDue mirrors pyclaw's croniter-based computation: the reference point
// is the job's last run time, or the service start time if it has never
// run, and the job is due once now has passed that reference's next tick.
func (s *Service) cronDue(job *Job, nowMs int64) bool {
	if job.Schedule.Expr == "" {
		return false
	}
	var base time.Time
	if job.State.LastRunAtMs > 0 {
		base = time.UnixMilli(job.State.LastRunAtMs)
	} else {
		base = s.startTime
	}
	next, err := gronx.NextTickAfter(job.Schedule.Expr, base, false)
	if err != nil {
		slog.Warn("cron.expr_invalid", "job", job.ID, "expr", job.Schedule.Expr, "error", err)
		return false
	}
	return nowMs >= next.UnixMilli()
}

func (s *Service) runJob(ctx context.Context, job *Job) {
	if s.onJob == nil {
		return
	}

	result, err := s.onJob(ctx, job)

	s.mu.Lock()
	if err != nil {
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
	} else {
		job.State.LastStatus = "ok"
		job.State.LastError = ""
	}
	job.State.LastRunAtMs = time.Now().UnixMilli()

	if job.DeleteAfterRun {
		for i, j := range s.jobs {
			if j.ID == job.ID {
				s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
				break
			}
		}
	}
	saveErr := s.saveLocked()
	s.mu.Unlock()

	if saveErr != nil {
		slog.Warn("cron.persist_failed", "job", job.ID, "error", saveErr)
	}
	_ = result
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return nil
}

// saveLocked writes the job list via a temp-file-then-rename so a crash
// mid-write never leaves a truncated store file. Caller must hold s.mu.
func (s *Service) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", " ")
	if err != nil {
		return err
	}
	tmp := s.storePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.storePath)
}
