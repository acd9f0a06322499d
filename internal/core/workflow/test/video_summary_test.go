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

package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/composer"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
	test "github.com/jaycherian/gcp-go-video-summary/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

type update struct {
	progress int
	step     string
}

type recordingTracker struct {
	mu      sync.Mutex
	updates map[string][]update
}

func (r *recordingTracker) Advance(_ context.Context, jobID string, progress int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates == nil {
		r.updates = make(map[string][]update)
	}
	r.updates[jobID] = append(r.updates[jobID], update{progress, step})
}

type captionModel struct{}

func (captionModel) DescribeImage(context.Context, []byte, string) (string, error) {
	return "people at a whiteboard", nil
}

type textModel struct{}

func (textModel) Detect(context.Context, string) ([]analyzers.Detection, error) {
	return []analyzers.Detection{{Text: "Q3 PLAN", Confidence: 0.9}}, nil
}

func newToolkit(t *testing.T, runner *test.FakeRunner, scratch string) *workflow.SummaryToolkit {
	t.Helper()
	styles, err := composer.NewStyles(nil)
	require.NoError(t, err)
	return &workflow.SummaryToolkit{
		Extractor:   media.NewExtractor(runner, "ffmpeg", "ffprobe"),
		Transcriber: analyzers.NewTranscriber(nil),
		Captioner:   analyzers.NewCaptioner(captionModel{}),
		TextReader:  analyzers.NewTextExtractor(textModel{}),
		Composer:    composer.NewComposer(styles),
		ScratchDir:  scratch,
	}
}

func TestVideoSummaryWorkflow(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "video-summary-test")
	defer span.End()

	scratch := t.TempDir()
	runner := &test.FakeRunner{Probe: test.ProbeJSON(100, true), AudioSamples: 16000}
	tracker := &recordingTracker{}
	pipeline := workflow.NewVideoSummaryWorkflow(newToolkit(t, runner, scratch), tracker)

	job := model.NewJob("job-1", "u1", model.JobParams{SourcePath: "/videos/meeting.mp4", NumFrames: 4, Style: "professional", Format: "bullet"}, time.Now())
	result, err := pipeline.Summarize(traceCtx, *job)
	require.NoError(t, err)
	span.SetStatus(codes.Ok, "passed - video summary test")

	assert.Len(t, result.VisualAnalysis.Frames, 4)
	assert.Equal(t, "Frame 1: people at a whiteboard | On-screen text: Q3 PLAN", result.VisualAnalysis.FrameCaptions[0])
	assert.Equal(t, []string{"Q3 PLAN"}, result.VisualAnalysis.OCRTexts)
	assert.Equal(t, model.TranscriptFailed, result.AudioTranscription)
	assert.Equal(t, "professional", result.SummaryStyle)
	assert.Equal(t, "bullet", result.SummaryFormat)
	assert.Equal(t, composer.FallbackProvider, result.SummaryProvider)
	assert.Equal(t, "This video contains: Audio transcription failed.. Key scenes include: "+
		"people at a whiteboard, people at a whiteboard, people at a whiteboard.", result.FinalSummary)

	assert.Equal(t, []update{
		{10, model.StepExtractFrames},
		{25, model.StepExtractAudio},
		{35, model.StepTranscribe},
		{50, model.StepAnalyzeVisual},
		{80, model.StepGenerateSummary},
	}, tracker.updates["job-1"])

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files must be removed")
}

func TestVideoSummaryWorkflowCleansUpOnFailure(t *testing.T) {
	scratch := t.TempDir()
	runner := &test.FakeRunner{Probe: test.ProbeJSON(100, true), FrameErr: errors.New("decoder crashed")}
	tracker := &recordingTracker{}
	pipeline := workflow.NewVideoSummaryWorkflow(newToolkit(t, runner, scratch), tracker)

	job := model.NewJob("job-2", "u1", model.JobParams{SourcePath: "/videos/broken.mp4", NumFrames: 4}, time.Now())
	_, err := pipeline.Summarize(ctx, *job)

	var mediaErr *media.MediaError
	require.ErrorAs(t, err, &mediaErr)
	assert.Len(t, tracker.updates["job-2"], 1)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVideoSummaryWorkflowCancelled(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(100, true)}
	pipeline := workflow.NewVideoSummaryWorkflow(newToolkit(t, runner, t.TempDir()), nil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	job := model.NewJob("job-3", "u1", model.JobParams{SourcePath: "/videos/a.mp4"}, time.Now())
	_, err := pipeline.Summarize(cancelled, *job)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSummaryToolkitWithoutModels(t *testing.T) {
	clients := &cloud.ServiceClients{
		GeminiModels: map[string]*cloud.QuotaAwareGenerativeAIModel{},
		ChatModels:   map[string]*cloud.QuotaAwareChatModel{},
		SpeechModels: map[string]*cloud.QuotaAwareChatModel{},
	}
	toolkit, err := workflow.NewSummaryToolkit(config, clients, &test.FakeRunner{})
	require.NoError(t, err)
	assert.Empty(t, toolkit.Composer.Providers())
	assert.Nil(t, toolkit.Archive)

	clients.ChatModels[cloud.PrimarySummaryModel] = cloud.NewQuotaAwareChatModel("key", "http://localhost:1", "llama", 0.7, 1)
	toolkit, err = workflow.NewSummaryToolkit(config, clients, &test.FakeRunner{})
	require.NoError(t, err)
	assert.Len(t, toolkit.Composer.Providers(), 1)
	assert.Equal(t, filepath.Clean(config.Media.ScratchDir), filepath.Clean(toolkit.ScratchDir))
}
