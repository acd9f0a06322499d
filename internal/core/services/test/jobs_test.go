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

package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/composer"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/services"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
	test "github.com/jaycherian/gcp-go-video-summary/internal/testutil"
	"github.com/zeebo/assert"
)

type fixedCaption struct{ text string }

func (f fixedCaption) DescribeImage(context.Context, []byte, string) (string, error) {
	return f.text, nil
}

type fixedSpeech struct{ text string }

func (f fixedSpeech) Transcribe(context.Context, string) (string, error) {
	return f.text, nil
}

type harness struct {
	jobs  *services.JobService
	store *store.SQLStore
	cache *store.MemoryCache
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "jobs.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.NoError(t, s.Migrate(ctx))
	return s
}

func newHarness(t *testing.T, runner *test.FakeRunner, maxConcurrent int, generators ...composer.Generator) *harness {
	t.Helper()
	h := &harness{store: openStore(t), cache: store.NewMemoryCache()}
	h.jobs = services.NewJobService(ctx, h.store, h.cache, maxConcurrent)

	styles, err := composer.NewStyles(nil)
	assert.NoError(t, err)
	toolkit := &workflow.SummaryToolkit{
		Extractor:   media.NewExtractor(runner, "ffmpeg", "ffprobe"),
		Transcriber: analyzers.NewTranscriber(fixedSpeech{text: "hello from the video"}),
		Captioner:   analyzers.NewCaptioner(fixedCaption{text: "a cat on a sofa"}),
		TextReader:  analyzers.NewTextExtractor(nil),
		Composer:    composer.NewComposer(styles, generators...),
		ScratchDir:  t.TempDir(),
	}
	h.jobs.SetSummarizer(workflow.NewVideoSummaryWorkflow(toolkit, h.jobs))
	t.Cleanup(func() { _ = h.jobs.Shutdown(context.Background()) })
	return h
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	assert.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o600))
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSubmitShortVideoEndToEnd(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(2, true), AudioSamples: 16000}
	h := newHarness(t, runner, 0)
	video := writeVideo(t)

	id, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: video, NumFrames: 10, Style: "default", Format: "paragraph"})
	assert.NoError(t, err)
	h.jobs.Wait()

	status, err := h.jobs.Status(ctx, id, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, model.StepComplete, status.Step)
	assert.Equal(t, 0, status.EtaSeconds)

	job, err := h.jobs.Result(ctx, id, "u1")
	assert.NoError(t, err)
	assert.DeepEqual(t, []string{"Frame 1: a cat on a sofa", "Frame 2: a cat on a sofa"}, job.Result.VisualAnalysis.FrameCaptions)
	assert.Equal(t, "hello from the video", job.Result.AudioTranscription)
	assert.Equal(t, composer.FallbackProvider, job.Result.SummaryProvider)
	assert.That(t, job.Result.FinalSummary != "")
	assert.Equal(t, "", job.Result.VideoURL)

	assert.Equal(t, 0, h.cache.Len())
	assert.That(t, !fileExists(video))
}

func TestNoAudioTrackStillCompletes(t *testing.T) {
	h := newHarness(t, &test.FakeRunner{Probe: test.ProbeJSON(30, false)}, 0)

	id, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: writeVideo(t), NumFrames: 3})
	assert.NoError(t, err)
	h.jobs.Wait()

	job, err := h.jobs.Result(ctx, id, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.TranscriptNoAudioTrack, job.Result.AudioTranscription)
	assert.Equal(t, 3, len(job.Result.VisualAnalysis.Frames))
	assert.Equal(t, "default", job.Result.SummaryStyle)
	assert.Equal(t, "paragraph", job.Result.SummaryFormat)
}

type staticGenerator struct{ text string }

func (g staticGenerator) Name() string { return "static" }

func (g staticGenerator) Generate(context.Context, composer.GenerationRequest) (string, error) {
	return g.text, nil
}

func TestSummaryTruncatedToTarget(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 500))
	h := newHarness(t, &test.FakeRunner{Probe: test.ProbeJSON(10, false)}, 0, staticGenerator{text: long})

	id, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: writeVideo(t), NumFrames: 2, TargetWords: 50})
	assert.NoError(t, err)
	h.jobs.Wait()

	job, err := h.jobs.Result(ctx, id, "u1")
	assert.NoError(t, err)
	assert.Equal(t, "static", job.Result.SummaryProvider)
	assert.Equal(t, 50, len(strings.Fields(strings.TrimSuffix(job.Result.FinalSummary, "..."))))
}

func TestForeignOwnerSeesNotFound(t *testing.T) {
	h := newHarness(t, &test.FakeRunner{Probe: test.ProbeJSON(5, false)}, 0)

	id, err := h.jobs.Submit(ctx, "owner", model.JobParams{SourcePath: writeVideo(t), NumFrames: 2})
	assert.NoError(t, err)

	_, err = h.jobs.Status(ctx, id, "intruder")
	assert.That(t, errors.Is(err, services.ErrJobNotFound))

	h.jobs.Wait()
	_, err = h.jobs.Status(ctx, id, "intruder")
	assert.That(t, errors.Is(err, services.ErrJobNotFound))
	_, err = h.jobs.Result(ctx, id, "intruder")
	assert.That(t, errors.Is(err, services.ErrJobNotFound))
	_, err = h.jobs.Status(ctx, "no-such-job", "owner")
	assert.That(t, errors.Is(err, services.ErrJobNotFound))
}

func TestFailedJobKeepsMedia(t *testing.T) {
	h := newHarness(t, &test.FakeRunner{ProbeErr: errors.New("corrupt container")}, 0)
	video := writeVideo(t)

	id, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: video, NumFrames: 5})
	assert.NoError(t, err)
	h.jobs.Wait()

	status, err := h.jobs.Status(ctx, id, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	assert.That(t, strings.HasPrefix(status.Step, "Error: "))
	assert.Equal(t, 10, status.Progress)
	assert.Equal(t, 0, status.EtaSeconds)

	_, err = h.jobs.Result(ctx, id, "u1")
	assert.That(t, errors.Is(err, services.ErrJobNotCompleted))
	assert.That(t, fileExists(video))
	assert.Equal(t, 0, h.cache.Len())
}

func TestListShowsNewestFirst(t *testing.T) {
	h := newHarness(t, &test.FakeRunner{Probe: test.ProbeJSON(5, false)}, 0)

	first, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: writeVideo(t), NumFrames: 1, Style: "casual"})
	assert.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := h.jobs.Submit(ctx, "u1", model.JobParams{SourcePath: writeVideo(t), NumFrames: 1, Style: "technical"})
	assert.NoError(t, err)
	h.jobs.Wait()

	jobs, err := h.jobs.List(ctx, "u1", 20)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(jobs))
	assert.Equal(t, second, jobs[0].ID)
	assert.Equal(t, first, jobs[1].ID)
	assert.Equal(t, "technical", jobs[0].SummaryStyle)
	assert.Equal(t, model.JobStatusDone, jobs[1].Status)

	none, err := h.jobs.List(ctx, "u2", 20)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(none))
}

func TestRecoverMarksInterruptedJobs(t *testing.T) {
	h := newHarness(t, &test.FakeRunner{}, 0)
	leftover := model.NewJob("left-over", "u1", model.JobParams{SourcePath: "/tmp/x.mp4"}, time.Now().UTC())
	assert.NoError(t, h.store.CreateJob(ctx, leftover))

	assert.NoError(t, h.jobs.Recover(ctx))

	status, err := h.jobs.Status(ctx, "left-over", "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	assert.Equal(t, "Error: interrupted by server restart", status.Step)
}

// blockingSummarizer holds every job until released or cancelled.
type blockingSummarizer struct {
	started chan string
	release chan struct{}
}

func (b *blockingSummarizer) Summarize(ctx context.Context, job model.Job) (*model.JobResult, error) {
	b.started <- job.ID
	select {
	case <-b.release:
		return &model.JobResult{FinalSummary: "done", SummaryStyle: "default", SummaryFormat: "paragraph"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestBoundedAdmission(t *testing.T) {
	s := openStore(t)
	jobs := services.NewJobService(ctx, s, store.NewMemoryCache(), 1)
	blocker := &blockingSummarizer{started: make(chan string, 2), release: make(chan struct{})}
	jobs.SetSummarizer(blocker)

	first, err := jobs.Submit(ctx, "u1", model.JobParams{})
	assert.NoError(t, err)
	assert.Equal(t, first, <-blocker.started)

	second, err := jobs.Submit(ctx, "u1", model.JobParams{})
	assert.NoError(t, err)
	status, err := jobs.Status(ctx, second, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status.Status)
	assert.Equal(t, 0, status.Progress)

	close(blocker.release)
	assert.Equal(t, second, <-blocker.started)
	jobs.Wait()

	status, err = jobs.Status(ctx, second, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, status.Status)
}

func TestShutdownInterruptsRunningJobs(t *testing.T) {
	s := openStore(t)
	jobs := services.NewJobService(ctx, s, store.NewMemoryCache(), 0)
	blocker := &blockingSummarizer{started: make(chan string, 1), release: make(chan struct{})}
	jobs.SetSummarizer(blocker)

	id, err := jobs.Submit(ctx, "u1", model.JobParams{})
	assert.NoError(t, err)
	<-blocker.started

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, jobs.Shutdown(shutdownCtx))

	status, err := jobs.Status(ctx, id, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	assert.Equal(t, "Error: interrupted by server restart", status.Step)

	_, err = jobs.Submit(ctx, "u1", model.JobParams{})
	assert.That(t, errors.Is(err, services.ErrShuttingDown))
}

func TestShutdownWaitsForConcurrentSubmits(t *testing.T) {
	const submitters = 16
	s := openStore(t)
	jobs := services.NewJobService(ctx, s, store.NewMemoryCache(), 0)
	jobs.SetSummarizer(&blockingSummarizer{started: make(chan string, submitters), release: make(chan struct{})})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []string
	)
	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := jobs.Submit(ctx, "u1", model.JobParams{})
			if err != nil {
				assert.That(t, errors.Is(err, services.ErrShuttingDown))
				return
			}
			mu.Lock()
			accepted = append(accepted, id)
			mu.Unlock()
		}()
	}

	close(start)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, jobs.Shutdown(shutdownCtx))
	wg.Wait()

	// Every job admitted before shutdown was waited for and left terminal.
	for _, id := range accepted {
		status, err := jobs.Status(ctx, id, "u1")
		assert.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, status.Status)
	}
}

// recordingTracker wraps the service to observe stage updates.
type recordingTracker struct {
	mu     sync.Mutex
	inner  *services.JobService
	stages []int
}

func (r *recordingTracker) Advance(ctx context.Context, jobID string, progress int, step string) {
	r.mu.Lock()
	r.stages = append(r.stages, progress)
	r.mu.Unlock()
	r.inner.Advance(ctx, jobID, progress, step)
}

func TestStageProgression(t *testing.T) {
	s := openStore(t)
	jobs := services.NewJobService(ctx, s, store.NewMemoryCache(), 0)
	tracker := &recordingTracker{inner: jobs}

	styles, err := composer.NewStyles(nil)
	assert.NoError(t, err)
	runner := &test.FakeRunner{Probe: test.ProbeJSON(4, true), AudioSamples: 100}
	jobs.SetSummarizer(workflow.NewVideoSummaryWorkflow(&workflow.SummaryToolkit{
		Extractor:   media.NewExtractor(runner, "ffmpeg", "ffprobe"),
		Transcriber: analyzers.NewTranscriber(fixedSpeech{text: "hi"}),
		Captioner:   analyzers.NewCaptioner(fixedCaption{text: "x"}),
		TextReader:  analyzers.NewTextExtractor(nil),
		Composer:    composer.NewComposer(styles),
		ScratchDir:  t.TempDir(),
	}, tracker))

	_, err = jobs.Submit(ctx, "u1", model.JobParams{SourcePath: writeVideo(t), NumFrames: 2})
	assert.NoError(t, err)
	jobs.Wait()

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.DeepEqual(t, []int{10, 25, 35, 50, 80}, tracker.stages)
}
