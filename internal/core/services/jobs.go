// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package services contains the business logic behind the REST surface. This
// file defines the JobService, which owns the lifecycle of summary jobs:
// admission, the background worker, progress tracking in the live cache and
// the terminal writes to the durable store.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
)

var (
	// ErrJobNotFound covers both unknown jobs and jobs owned by someone else.
	ErrJobNotFound     = store.ErrJobNotFound
	ErrJobNotCompleted = errors.New("job not completed yet")
	ErrShuttingDown    = errors.New("service is shutting down")
)

// Job lifecycle event types published to the job events topic.
const (
	EventJobQueued = "job.queued"
	EventJobDone   = "job.done"
	EventJobFailed = "job.failed"
)

// Summarizer runs the pipeline for one job.
type Summarizer interface {
	Summarize(ctx context.Context, job model.Job) (*model.JobResult, error)
}

// JobService is safe for concurrent use. Each job is worked on by exactly one
// goroutine, which is the only writer of its cache entry.
type JobService struct {
	Store     *store.SQLStore
	Cache     store.LiveCache
	Events    *cloud.PubSubPublisher // optional
	Signer    *cloud.URLSigner       // optional, signs gs:// video URLs
	summarize Summarizer

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{} // nil when admission is unbounded

	// mu orders worker registration against Shutdown so wg.Add never races
	// wg.Wait.
	mu sync.Mutex
	wg sync.WaitGroup
}

// NewJobService creates the service. maxConcurrent bounds the number of jobs
// processed at once; 0 means every job gets its own worker immediately.
func NewJobService(parent context.Context, jobStore *store.SQLStore, cache store.LiveCache, maxConcurrent int) *JobService {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	s := &JobService{Store: jobStore, Cache: cache, ctx: ctx, cancel: cancel}
	if maxConcurrent > 0 {
		s.slots = make(chan struct{}, maxConcurrent)
	}
	return s
}

// SetSummarizer attaches the pipeline. It is separate from the constructor
// because the pipeline reports progress back to this service.
func (s *JobService) SetSummarizer(summarizer Summarizer) {
	s.summarize = summarizer
}

// Submit records a queued job and starts its worker. The returned id can be
// polled immediately.
func (s *JobService) Submit(ctx context.Context, userID string, params model.JobParams) (string, error) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if params.Metadata == nil {
		params.Metadata = map[string]any{}
	}
	job := model.NewJob(uuid.NewString(), userID, params, time.Now().UTC())
	if err := s.Store.CreateJob(ctx, job); err != nil {
		s.wg.Done()
		return "", err
	}
	s.Cache.Upsert(*job)
	s.publish(ctx, EventJobQueued, job)
	slog.InfoContext(ctx, "job queued", "job", job.ID, "user", userID, "frames", params.NumFrames, "style", params.Style)

	go s.run(*job)
	return job.ID, nil
}

// Advance records a stage transition in the live cache.
func (s *JobService) Advance(ctx context.Context, jobID string, progress int, step string) {
	job, ok := s.Cache.Get(jobID)
	if !ok {
		return
	}
	if job.Advance(progress, step, time.Now().UTC()) {
		s.Cache.Upsert(job)
		slog.DebugContext(ctx, "job progress", "job", jobID, "progress", job.Progress, "step", step)
	}
}

func (s *JobService) run(job model.Job) {
	defer s.wg.Done()
	ctx := s.ctx

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		case <-ctx.Done():
			s.fail(job.ID, model.StepInterrupted, false)
			return
		}
	}

	if s.summarize == nil {
		s.fail(job.ID, "no summary pipeline configured", false)
		return
	}
	result, err := s.summarize.Summarize(ctx, job)
	if err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = model.StepInterrupted
		}
		slog.ErrorContext(ctx, "job failed", "job", job.ID, "error", err)
		s.fail(job.ID, reason, false)
		return
	}
	s.complete(job, result)
}

// complete persists the result, then drops the cache entry, then deletes the
// source media. If the durable write fails the job is failed instead and the
// cache keeps the failed entry so status polls still see it.
func (s *JobService) complete(job model.Job, result *model.JobResult) {
	ctx := context.WithoutCancel(s.ctx)
	now := time.Now().UTC()

	if err := s.Store.CompleteJob(ctx, job.ID, result, now); err != nil {
		slog.ErrorContext(ctx, "failed to persist job result", "job", job.ID, "error", err)
		s.fail(job.ID, "failed to save result", true)
		return
	}
	s.Cache.Remove(job.ID)

	if path := job.Params.SourcePath; path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove media", "job", job.ID, "path", path, "error", err)
		}
	}

	job.Complete(result, now)
	s.publish(ctx, EventJobDone, &job)
	slog.InfoContext(ctx, "job complete", "job", job.ID, "provider", result.SummaryProvider)
}

// fail records the failure durably and drops the cache entry. The entry is
// kept when keepCached is set or when the durable write fails, so polls keep
// seeing the failure. The source media is kept.
func (s *JobService) fail(jobID string, reason string, keepCached bool) {
	ctx := context.WithoutCancel(s.ctx)
	now := time.Now().UTC()

	job, cached := s.Cache.Get(jobID)
	if !cached {
		return
	}
	job.Fail(reason, now)

	if err := s.Store.FailJob(ctx, jobID, job.Progress, job.Step, now); err != nil {
		slog.ErrorContext(ctx, "failed to persist job failure", "job", jobID, "error", err)
		keepCached = true
	}
	if keepCached {
		s.Cache.Upsert(job)
	} else {
		s.Cache.Remove(jobID)
	}
	s.publish(ctx, EventJobFailed, &job)
}

// Status returns the live view of a job when it is in flight and the
// durable one otherwise.
func (s *JobService) Status(ctx context.Context, jobID string, userID string) (*model.JobStatusView, error) {
	if job, ok := s.Cache.Get(jobID); ok {
		if job.UserID != userID {
			return nil, ErrJobNotFound
		}
		return job.StatusView(), nil
	}
	job, err := s.Store.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	return job.StatusView(), nil
}

// Result returns a done job with its result. The video URL is computed per
// call: signed for gs:// sources, the original for web sources, empty for
// uploads.
func (s *JobService) Result(ctx context.Context, jobID string, userID string) (*model.Job, error) {
	if job, ok := s.Cache.Get(jobID); ok {
		if job.UserID != userID {
			return nil, ErrJobNotFound
		}
		if job.Status != model.JobStatusDone {
			return nil, ErrJobNotCompleted
		}
	}
	job, err := s.Store.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusDone || job.Result == nil {
		return nil, ErrJobNotCompleted
	}
	job.Result.VideoURL = s.videoURL(ctx, job)
	return job, nil
}

func (s *JobService) videoURL(ctx context.Context, job *model.Job) string {
	source := job.Params.SourceURL
	if !strings.HasPrefix(source, "gs://") {
		return source
	}
	if s.Signer == nil {
		return ""
	}
	signed, err := s.Signer.SignURL(ctx, source)
	if err != nil {
		slog.WarnContext(ctx, "failed to sign video url", "job", job.ID, "error", err)
		return ""
	}
	return signed
}

// List returns the user's jobs newest first. Jobs still in flight show their
// live progress.
func (s *JobService) List(ctx context.Context, userID string, limit int) ([]model.JobSummary, error) {
	jobs, err := s.Store.ListJobs(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if live, ok := s.Cache.Get(jobs[i].ID); ok {
			jobs[i].Status = live.Status
			jobs[i].Progress = live.Progress
			jobs[i].Step = live.Step
		}
	}
	return jobs, nil
}

// Recover fails every job a previous process left unfinished. Queues are not
// persisted, so those jobs can never complete.
func (s *JobService) Recover(ctx context.Context) error {
	n, err := s.Store.MarkInterrupted(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if n > 0 {
		slog.WarnContext(ctx, "marked interrupted jobs as failed", "count", n)
	}
	return nil
}

// Shutdown stops all workers and waits for them to record their final state,
// or for ctx to end.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has finished.
func (s *JobService) Wait() {
	s.wg.Wait()
}

type jobEvent struct {
	Event    string          `json:"event"`
	JobID    string          `json:"jobId"`
	UserID   string          `json:"userId"`
	Status   model.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Step     string          `json:"step"`
	At       time.Time       `json:"at"`
}

func (s *JobService) publish(ctx context.Context, event string, job *model.Job) {
	if s.Events == nil {
		return
	}
	data, err := json.Marshal(jobEvent{
		Event:    event,
		JobID:    job.ID,
		UserID:   job.UserID,
		Status:   job.Status,
		Progress: job.Progress,
		Step:     job.Step,
		At:       job.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := s.Events.Publish(ctx, data, map[string]string{"event": event, "jobId": job.ID}); err != nil {
		slog.WarnContext(ctx, "failed to publish job event", "event", event, "job", job.ID, "error", err)
	}
}
