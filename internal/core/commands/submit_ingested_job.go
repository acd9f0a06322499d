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

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// JobSubmitter queues a summary job for a user.
type JobSubmitter interface {
	Submit(ctx context.Context, userID string, params model.JobParams) (string, error)
}

// OwnerLookup resolves the account that owns ingested videos.
type OwnerLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// IngestDefaults are the summary options applied to ingested videos.
type IngestDefaults struct {
	OwnerEmail string
	NumFrames  int
	Style      string
	Format     string
}

// SubmitIngestedJob queues a job for the local file found under its input
// key. The output is the new job id.
type SubmitIngestedJob struct {
	cor.BaseCommand
	jobs     JobSubmitter
	owners   OwnerLookup
	defaults IngestDefaults
}

func NewSubmitIngestedJob(name string, jobs JobSubmitter, owners OwnerLookup, defaults IngestDefaults) *SubmitIngestedJob {
	return &SubmitIngestedJob{BaseCommand: *cor.NewBaseCommand(name), jobs: jobs, owners: owners, defaults: defaults}
}

func (c *SubmitIngestedJob) Execute(context cor.Context) {
	ctx := context.GetContext()
	local := context.Get(c.GetInputParam()).(string)

	owner, err := c.owners.GetUserByEmail(ctx, c.defaults.OwnerEmail)
	if err != nil {
		c.discard(ctx, local)
		c.Fail(context, fmt.Errorf("ingest owner %q: %w", c.defaults.OwnerEmail, err))
		return
	}

	params := model.JobParams{
		SourcePath: local,
		NumFrames:  c.defaults.NumFrames,
		Style:      c.defaults.Style,
		Format:     c.defaults.Format,
		Metadata:   map[string]any{},
		Profile:    owner.Profile(),
	}
	if obj, ok := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject); ok {
		params.SourceURL = obj.URI()
		params.OriginalName = path.Base(obj.Name)
		for k, v := range obj.MetaData {
			params.Metadata[k] = v
		}
	}

	id, err := c.jobs.Submit(ctx, owner.ID, params)
	if err != nil {
		c.discard(ctx, local)
		c.Fail(context, fmt.Errorf("failed to submit ingested job: %w", err))
		return
	}
	slog.InfoContext(ctx, "ingested video queued", "job", id, "source", params.SourceURL)
	context.Add(c.GetOutputParam(), id)
	c.Succeed(context)
}

func (c *SubmitIngestedJob) discard(ctx context.Context, local string) {
	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to remove ingested file", "file", local, "error", err)
	}
}
