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

// Package workflow assembles commands into the pipelines the service runs:
// the per-job summary pipeline, the bucket ingest pipeline, and the janitor
// that sweeps the media of old failed jobs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/composer"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// ErrNoResult is returned when the chain ends without errors but also
// without a result, which only happens if a stage was skipped.
var ErrNoResult = errors.New("pipeline produced no result")

// ProgressTracker receives the stage updates of a running job.
type ProgressTracker interface {
	Advance(ctx context.Context, jobID string, progress int, step string)
}

type stage struct {
	progress int
	step     string
}

// summaryStages is reported right before the named command runs.
var summaryStages = map[string]stage{
	commands.SampleFramesName:   {10, model.StepExtractFrames},
	commands.ExtractAudioName:   {25, model.StepExtractAudio},
	commands.TranscribeName:     {35, model.StepTranscribe},
	commands.AnalyzeVisualName:  {50, model.StepAnalyzeVisual},
	commands.ComposeSummaryName: {80, model.StepGenerateSummary},
}

// SummaryToolkit holds the collaborators of the summary pipeline.
type SummaryToolkit struct {
	Extractor   *media.Extractor
	Transcriber *analyzers.Transcriber
	Captioner   *analyzers.Captioner
	TextReader  *analyzers.TextExtractor
	Composer    *composer.Composer
	Archive     *commands.ArchiveResult // nil disables the archive step
	ScratchDir  string
}

// NewSummaryToolkit builds the toolkit from configuration. Models that are
// not configured are left out; the analyzers then fall back to their
// placeholders and the composer to its deterministic summary.
func NewSummaryToolkit(config *cloud.Config, clients *cloud.ServiceClients, runner media.CommandRunner) (*SummaryToolkit, error) {
	styles, err := composer.NewStyles(config.PromptTemplates.Styles)
	if err != nil {
		return nil, err
	}

	var generators []composer.Generator
	if m, ok := clients.ChatModels[cloud.PrimarySummaryModel]; ok {
		name := config.ChatModels[cloud.PrimarySummaryModel].Name
		if name == "" {
			name = cloud.PrimarySummaryModel
		}
		generators = append(generators, composer.NewChatGenerator(name, m))
	}
	if m, ok := clients.GeminiModels[cloud.SecondarySummaryModel]; ok {
		generators = append(generators, composer.NewGeminiGenerator(m.ModelName, m))
	}

	var captionModel analyzers.CaptionModel
	if m, ok := clients.GeminiModels[cloud.CaptionModel]; ok {
		captionModel = analyzers.NewGeminiCaptionModel(m, config.PromptTemplates.Caption)
	}
	var speechModel analyzers.SpeechModel
	if m, ok := clients.SpeechModels[cloud.TranscriptionModel]; ok {
		speechModel = analyzers.NewWhisperModel(m, config.SpeechModels[cloud.TranscriptionModel].Language)
	}
	var textModel analyzers.TextModel
	if config.Media.TesseractCommand != "" {
		textModel = analyzers.NewTesseractModel(runner, config.Media.TesseractCommand, config.Media.TesseractLanguage)
	}

	toolkit := &SummaryToolkit{
		Extractor:   media.NewExtractor(runner, config.Media.FFmpegCommand, config.Media.FFprobeCommand),
		Transcriber: analyzers.NewTranscriber(speechModel),
		Captioner:   analyzers.NewCaptioner(captionModel),
		TextReader:  analyzers.NewTextExtractor(textModel),
		Composer:    composer.NewComposer(styles, generators...),
		ScratchDir:  config.Media.ScratchDir,
	}
	if clients.BiqQueryClient != nil && config.BigQueryDataSource.ResultsTable != "" {
		toolkit.Archive = commands.NewArchiveResult(clients.BiqQueryClient,
			config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.ResultsTable)
	}
	slog.Info("summary pipeline configured", "providers", toolkit.Composer.Providers(),
		"captioning", captionModel != nil, "transcription", speechModel != nil, "ocr", textModel != nil)
	return toolkit, nil
}

// VideoSummaryWorkflow runs one job through every stage:
//
//	sample-frames -> extract-audio -> transcribe-audio -> analyze-visual
//	  -> compose-summary [-> archive-result]
//
// The same workflow value serves all jobs concurrently; per-job state lives
// in the cor.Context.
type VideoSummaryWorkflow struct {
	cor.BaseCommand
	toolkit *SummaryToolkit
	tracker ProgressTracker
	chain   cor.Chain
}

func NewVideoSummaryWorkflow(toolkit *SummaryToolkit, tracker ProgressTracker) *VideoSummaryWorkflow {
	w := &VideoSummaryWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-summary-workflow"),
		toolkit:     toolkit,
		tracker:     tracker,
	}
	w.InputParamName = commands.ParamVideoPath
	w.initializeChain()
	return w
}

func (w *VideoSummaryWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewSampleFrames(w.toolkit.Extractor, w.toolkit.ScratchDir))
	out.AddCommand(commands.NewExtractAudio(w.toolkit.Extractor))
	out.AddCommand(commands.NewTranscribeAudio(w.toolkit.Transcriber))
	out.AddCommand(commands.NewAnalyzeVisual(w.toolkit.Captioner, w.toolkit.TextReader))
	out.AddCommand(commands.NewComposeSummary(w.toolkit.Composer))
	if w.toolkit.Archive != nil {
		out.AddCommand(w.toolkit.Archive)
	}
	out.OnStage(w.reportStage)
	w.chain = out
}

func (w *VideoSummaryWorkflow) reportStage(context cor.Context, command cor.Command) {
	s, ok := summaryStages[command.GetName()]
	if !ok || w.tracker == nil {
		return
	}
	job, ok := context.Get(commands.ParamJob).(model.Job)
	if !ok {
		return
	}
	w.tracker.Advance(context.GetContext(), job.ID, s.progress, s.step)
}

func (w *VideoSummaryWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Summarize runs the pipeline for job and returns its result. Scratch files
// are gone by the time it returns.
func (w *VideoSummaryWorkflow) Summarize(ctx context.Context, job model.Job) (*model.JobResult, error) {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamJob, job)
	chainCtx.Add(commands.ParamVideoPath, job.Params.SourcePath)

	w.Execute(chainCtx)

	if chainCtx.HasErrors() {
		return nil, cor.FirstError(chainCtx, commands.SampleFramesName)
	}
	result, ok := chainCtx.Get(commands.ParamResult).(*model.JobResult)
	if !ok || result == nil {
		return nil, fmt.Errorf("%w for job %s", ErrNoResult, job.ID)
	}
	return result, nil
}
