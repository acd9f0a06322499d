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

// Package model defines the data structures shared by the summary pipeline,
// the job store and the API layer.
//
// A Job moves through a small state machine:
//
//	queued -> processing -> done
//	                     -> failed
//
// There is no retry edge. A failed job is terminal and must be resubmitted.
package model

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave this state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransition enforces the allowed edges of the job state machine.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusProcessing || to == JobStatusDone || to == JobStatusFailed
	default:
		return false
	}
}

// Step labels shown to clients while a job runs. They are display text only.
const (
	StepQueued          = "Queued"
	StepExtractFrames   = "Extracting frames"
	StepExtractAudio    = "Extracting audio"
	StepTranscribe      = "Transcribing audio"
	StepAnalyzeVisual   = "Analyzing visual content"
	StepGenerateSummary = "Generating summary"
	StepComplete        = "Complete"
	StepInterrupted     = "interrupted by server restart"
)

// ErrorStep builds the step label recorded for a failed job.
func ErrorStep(reason string) string {
	return fmt.Sprintf("Error: %s", reason)
}

// SecondsPerPercent is the advisory duration used to estimate time remaining.
const SecondsPerPercent = 2

// EstimateEtaSeconds returns the advisory remaining time for a job. Only a
// processing job has a non-zero estimate.
func EstimateEtaSeconds(status JobStatus, progress int) int {
	if status != JobStatusProcessing {
		return 0
	}
	remaining := 100 - progress
	if remaining < 0 {
		remaining = 0
	}
	return remaining * SecondsPerPercent
}

// JobParams are fixed at submission time and never change afterwards.
type JobParams struct {
	SourcePath   string         `json:"video_path"`
	SourceURL    string         `json:"source_url,omitempty"`
	NumFrames    int            `json:"num_frames"`
	Style        string         `json:"summary_style"`
	Format       string         `json:"summary_format"`
	TargetWords  int            `json:"summary_length_words,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	Profile      *UserProfile   `json:"user_profile,omitempty"`
	OriginalName string         `json:"original_name,omitempty"`
}

// Job is one video summarization unit of work.
type Job struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    JobStatus  `json:"status"`
	Progress  int        `json:"progress"`
	Step      string     `json:"step"`
	Params    JobParams  `json:"params"`
	Result    *JobResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewJob creates a queued job with zero progress.
func NewJob(id string, userID string, params JobParams, now time.Time) *Job {
	return &Job{
		ID:        id,
		UserID:    userID,
		Status:    JobStatusQueued,
		Progress:  0,
		Step:      StepQueued,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves a processing job forward. Progress never goes backwards and
// the call is ignored for states that cannot transition to processing.
func (j *Job) Advance(progress int, step string, now time.Time) bool {
	if !j.Status.CanTransition(JobStatusProcessing) {
		return false
	}
	j.Status = JobStatusProcessing
	if progress > j.Progress {
		j.Progress = min(progress, 99)
	}
	j.Step = step
	j.UpdatedAt = now
	return true
}

// Complete pins the job at 100% with the given result attached.
func (j *Job) Complete(result *JobResult, now time.Time) {
	j.Status = JobStatusDone
	j.Progress = 100
	j.Step = StepComplete
	j.Result = result
	j.UpdatedAt = now
}

// Fail marks the job failed with a reason in the step label. Progress is kept
// where the failing stage left it.
func (j *Job) Fail(reason string, now time.Time) {
	j.Status = JobStatusFailed
	j.Step = ErrorStep(reason)
	j.UpdatedAt = now
}

// JobStatusView is the polling response for a single job.
type JobStatusView struct {
	JobID      string    `json:"jobId"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Step       string    `json:"step"`
	EtaSeconds int       `json:"etaSeconds"`
}

// StatusView renders the job for a status query. The ETA is always computed
// fresh from the current progress.
func (j *Job) StatusView() *JobStatusView {
	return &JobStatusView{
		JobID:      j.ID,
		Status:     j.Status,
		Progress:   j.Progress,
		Step:       j.Step,
		EtaSeconds: EstimateEtaSeconds(j.Status, j.Progress),
	}
}

// JobSummary is a row in the job listing.
type JobSummary struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	Step         string    `json:"step"`
	CreatedAt    time.Time `json:"createdAt"`
	SummaryStyle string    `json:"summaryStyle"`
}
