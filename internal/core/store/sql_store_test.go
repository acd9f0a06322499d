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

package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func newJob(id, owner string, created time.Time) *model.Job {
	return model.NewJob(id, owner, model.JobParams{
		SourcePath: "/tmp/" + id + ".mp4",
		NumFrames:  10,
		Style:      "default",
		Format:     "paragraph",
		Metadata:   map[string]any{"title": "demo"},
		Profile:    &model.UserProfile{ID: owner, Expertise: []string{"go"}},
	}, created)
}

func TestMigrateTwice(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.CreateJob(ctx, newJob("job-1", "u1", time.Now())))
	require.NoError(t, s.Migrate(ctx))

	job, err := s.GetJob(ctx, "job-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "paragraph", job.Params.Format)
	assert.Equal(t, []string{"go"}, job.Params.Profile.Expertise)
}

func TestGetJobOwnership(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.CreateJob(ctx, newJob("job-1", "u1", time.Now())))

	_, err := s.GetJob(ctx, "job-1", "u2")
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	_, err = s.GetJob(ctx, "missing", "u1")
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	job, err := s.GetJob(ctx, "job-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Equal(t, model.StepQueued, job.Step)
	assert.Equal(t, "demo", job.Params.Metadata["title"])
	assert.Nil(t, job.Result)
}

func TestCompleteAndFailJob(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	now := time.Now()
	require.NoError(t, s.CreateJob(ctx, newJob("done-job", "u1", now)))
	require.NoError(t, s.CreateJob(ctx, newJob("failed-job", "u1", now)))

	result := &model.JobResult{
		AudioTranscription: model.TranscriptNoAudioTrack,
		FinalSummary:       "A short summary.",
		SummaryStyle:       "default",
		SummaryFormat:      "paragraph",
		VisualAnalysis: model.VisualAnalysis{
			FrameCaptions: []string{"Frame 1: a cat"},
		},
	}
	require.NoError(t, s.CompleteJob(ctx, "done-job", result, now))
	require.NoError(t, s.FailJob(ctx, "failed-job", 35, model.ErrorStep("boom"), now))

	done, err := s.GetJob(ctx, "done-job", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, model.StepComplete, done.Step)
	require.NotNil(t, done.Result)
	assert.Equal(t, "A short summary.", done.Result.FinalSummary)
	assert.Equal(t, 0, done.StatusView().EtaSeconds)

	failed, err := s.GetJob(ctx, "failed-job", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Equal(t, 35, failed.Progress)
	assert.Equal(t, "Error: boom", failed.Step)

	assert.ErrorIs(t, s.FailJob(ctx, "missing", 0, "Error: x", now), store.ErrJobNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateJob(ctx, newJob("old", "u1", base)))
	require.NoError(t, s.CreateJob(ctx, newJob("new", "u1", base.Add(time.Minute))))
	require.NoError(t, s.CreateJob(ctx, newJob("other", "u2", base.Add(2*time.Minute))))

	jobs, err := s.ListJobs(ctx, "u1", 20)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "old", jobs[1].ID)

	jobs, err = s.ListJobs(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestMarkInterruptedAndFailedMedia(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.CreateJob(ctx, newJob("stuck", "u1", past)))
	require.NoError(t, s.CreateJob(ctx, newJob("finished", "u1", past)))
	require.NoError(t, s.CompleteJob(ctx, "finished", &model.JobResult{FinalSummary: "x"}, past))

	n, err := s.MarkInterrupted(ctx, past)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stuck, err := s.GetJob(ctx, "stuck", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, stuck.Status)
	assert.Equal(t, "Error: interrupted by server restart", stuck.Step)

	refs, err := s.FindFailedMediaOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "stuck", refs[0].JobID)

	require.NoError(t, s.ClearVideoPath(ctx, "stuck"))
	refs, err = s.FindFailedMediaOlderThan(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	user := &model.User{
		ID:                 "u1",
		Name:               "Ada",
		Email:              "ada@example.com",
		PasswordHash:       "hash",
		Role:               model.DefaultRole,
		Expertise:          []string{"math"},
		SummaryPreferences: model.DefaultSummaryPreferences(),
		Language:           model.DefaultLanguage,
		CreatedAt:          time.Now(),
	}
	require.NoError(t, s.CreateUser(ctx, user))

	dup := *user
	dup.ID = "u2"
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrUserExists)

	got, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, []string{"math"}, got.Expertise)
	assert.Equal(t, "medium", got.SummaryPreferences.Length)

	bio := "mathematician"
	require.NoError(t, s.UpdateUser(ctx, "u1", model.UserUpdate{
		Bio:          &bio,
		Expertise:    []string{"math", "engines"},
		SetExpertise: true,
	}))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "mathematician", got.Bio)
	assert.Equal(t, []string{"math", "engines"}, got.Expertise)
	assert.Equal(t, "Ada", got.Name)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestMemoryCache(t *testing.T) {
	cache := store.NewMemoryCache()
	job := newJob("job-1", "u1", time.Now())
	cache.Upsert(*job)

	got, ok := cache.Get("job-1")
	require.True(t, ok)
	got.Progress = 50
	again, _ := cache.Get("job-1")
	assert.Equal(t, 0, again.Progress)

	cache.Remove("job-1")
	_, ok = cache.Get("job-1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}
