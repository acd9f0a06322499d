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

// This file defines the command that archives finished results to BigQuery
// for reporting. The archive is best effort: a failed insert is logged and
// counted but does not fail the job, whose result is already complete.
package commands

import (
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// ResultRow is the BigQuery row written for every completed job.
type ResultRow struct {
	JobID        string    `bigquery:"job_id"`
	UserID       string    `bigquery:"user_id"`
	Summary      string    `bigquery:"summary"`
	Transcript   string    `bigquery:"transcript"`
	Captions     []string  `bigquery:"captions"`
	OnScreenText []string  `bigquery:"on_screen_text"`
	Style        string    `bigquery:"summary_style"`
	Format       string    `bigquery:"summary_format"`
	Provider     string    `bigquery:"summary_provider"`
	NumFrames    int       `bigquery:"num_frames"`
	SourceURL    string    `bigquery:"source_url"`
	CreatedAt    time.Time `bigquery:"created_at"`
}

// NewResultRow flattens a job and its result into an archive row.
func NewResultRow(job model.Job, result *model.JobResult, now time.Time) *ResultRow {
	return &ResultRow{
		JobID:        job.ID,
		UserID:       job.UserID,
		Summary:      result.FinalSummary,
		Transcript:   result.AudioTranscription,
		Captions:     result.VisualAnalysis.FrameCaptions,
		OnScreenText: result.VisualAnalysis.OCRTexts,
		Style:        result.SummaryStyle,
		Format:       result.SummaryFormat,
		Provider:     result.SummaryProvider,
		NumFrames:    len(result.VisualAnalysis.Frames),
		SourceURL:    job.Params.SourceURL,
		CreatedAt:    now,
	}
}

// ArchiveResult streams the result row into dataset.table.
type ArchiveResult struct {
	cor.BaseCommand
	client  *bigquery.Client
	dataset string
	table   string
}

func NewArchiveResult(client *bigquery.Client, dataset string, table string) *ArchiveResult {
	out := &ArchiveResult{BaseCommand: *cor.NewBaseCommand(ArchiveResultName), client: client, dataset: dataset, table: table}
	out.InputParamName = ParamResult
	return out
}

// IsExecutable skips the archive when BigQuery is not configured.
func (c *ArchiveResult) IsExecutable(context cor.Context) bool {
	return c.client != nil && c.table != "" && c.BaseCommand.IsExecutable(context)
}

func (c *ArchiveResult) Execute(context cor.Context) {
	ctx := context.GetContext()
	result := context.Get(c.GetInputParam()).(*model.JobResult)
	job, _ := context.Get(ParamJob).(model.Job)

	inserter := c.client.Dataset(c.dataset).Table(c.table).Inserter()
	if err := inserter.Put(ctx, NewResultRow(job, result, time.Now().UTC())); err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		slog.ErrorContext(ctx, "failed to archive result to bigquery", "job", job.ID, "table", c.table, "error", err)
		return
	}
	c.Succeed(context)
}
