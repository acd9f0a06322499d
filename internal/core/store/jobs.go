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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

const jobColumns = `id, user_id, status, progress, step, video_path, num_frames, summary_style,
	summary_format, summary_length_words, metadata, user_profile, source_url, original_name,
	result, created_at, updated_at`

// MediaRef points at a media file still held for a job.
type MediaRef struct {
	JobID string
	Path  string
}

// CreateJob inserts a freshly queued job.
func (s *SQLStore) CreateJob(ctx context.Context, job *model.Job) error {
	metadata, err := marshalNullable(job.Params.Metadata)
	if err != nil {
		return err
	}
	profile, err := marshalNullable(job.Params.Profile)
	if err != nil {
		return err
	}
	var target sql.NullInt64
	if job.Params.TargetWords > 0 {
		target = sql.NullInt64{Int64: int64(job.Params.TargetWords), Valid: true}
	}
	_, err = s.exec(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Status), job.Progress, job.Step,
		job.Params.SourcePath, job.Params.NumFrames, job.Params.Style, job.Params.Format,
		target, metadata, profile, job.Params.SourceURL, job.Params.OriginalName,
		nil, formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the job only if it belongs to owner. A job owned by someone
// else is reported exactly like a missing one.
func (s *SQLStore) GetJob(ctx context.Context, id string, owner string) (*model.Job, error) {
	row := s.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, owner)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// ListJobs returns the owner's jobs newest first.
func (s *SQLStore) ListJobs(ctx context.Context, owner string, limit int) ([]model.JobSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT id, status, progress, step, created_at, summary_style
		FROM jobs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]model.JobSummary, 0)
	for rows.Next() {
		var (
			j       model.JobSummary
			status  string
			created string
		)
		if err := rows.Scan(&j.ID, &status, &j.Progress, &j.Step, &created, &j.SummaryStyle); err != nil {
			return nil, err
		}
		j.Status = model.JobStatus(status)
		j.CreatedAt = parseTime(created)
		out = append(out, j)
	}
	return out, rows.Err()
}

// CompleteJob writes the terminal done state and the result in one statement.
func (s *SQLStore) CompleteJob(ctx context.Context, id string, result *model.JobResult, now time.Time) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, progress = 100, step = ?, result = ?, updated_at = ?
		WHERE id = ?`, string(model.JobStatusDone), model.StepComplete, string(blob), formatTime(now), id)
	return checkUpdated(res, err, id)
}

// FailJob writes the terminal failed state. The progress reached by the
// failing stage is kept.
func (s *SQLStore) FailJob(ctx context.Context, id string, progress int, step string, now time.Time) error {
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, progress = ?, step = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), progress, step, formatTime(now), id)
	return checkUpdated(res, err, id)
}

// MarkInterrupted fails every job a previous process left unfinished and
// returns how many were affected.
func (s *SQLStore) MarkInterrupted(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, step = ?, updated_at = ? WHERE status IN (?, ?)`,
		string(model.JobStatusFailed), model.ErrorStep(model.StepInterrupted), formatTime(now),
		string(model.JobStatusQueued), string(model.JobStatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// FindFailedMediaOlderThan lists media files still held by jobs that failed
// before cutoff.
func (s *SQLStore) FindFailedMediaOlderThan(ctx context.Context, cutoff time.Time) ([]MediaRef, error) {
	rows, err := s.query(ctx, `SELECT id, video_path FROM jobs
		WHERE status = ? AND video_path <> '' AND updated_at < ?`,
		string(model.JobStatusFailed), formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query failed media: %w", err)
	}
	defer rows.Close()
	var out []MediaRef
	for rows.Next() {
		var ref MediaRef
		if err := rows.Scan(&ref.JobID, &ref.Path); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ClearVideoPath forgets the media file of a job once it has been removed.
func (s *SQLStore) ClearVideoPath(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `UPDATE jobs SET video_path = '' WHERE id = ?`, id)
	return checkUpdated(res, err, id)
}

func checkUpdated(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job                         model.Job
		status, created, updated    string
		target                      sql.NullInt64
		metadata, profile, result   sql.NullString
		format, sourceURL, origName sql.NullString
	)
	err := row.Scan(&job.ID, &job.UserID, &status, &job.Progress, &job.Step,
		&job.Params.SourcePath, &job.Params.NumFrames, &job.Params.Style, &format,
		&target, &metadata, &profile, &sourceURL, &origName,
		&result, &created, &updated)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	job.Params.Format = format.String
	job.Params.TargetWords = int(target.Int64)
	job.Params.SourceURL = sourceURL.String
	job.Params.OriginalName = origName.String
	job.CreatedAt = parseTime(created)
	job.UpdatedAt = parseTime(updated)

	job.Params.Metadata = map[string]any{}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &job.Params.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata on job %s: %w", job.ID, err)
		}
	}
	if profile.Valid && profile.String != "" {
		job.Params.Profile = &model.UserProfile{}
		if err := json.Unmarshal([]byte(profile.String), job.Params.Profile); err != nil {
			return nil, fmt.Errorf("corrupt profile on job %s: %w", job.ID, err)
		}
	}
	if result.Valid && result.String != "" {
		job.Result = &model.JobResult{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("corrupt result on job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case map[string]any:
		if t == nil {
			return sql.NullString{String: "{}", Valid: true}, nil
		}
	case *model.UserProfile:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
