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

package workflow

import (
	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// BucketIngestWorkflow turns a Cloud Storage object notification into a
// queued summary job. It is attached to the ingest Pub/Sub listener, which
// acks the message only when the chain records no errors.
type BucketIngestWorkflow struct {
	cor.BaseCommand
	fetcher   *media.Fetcher
	jobs      commands.JobSubmitter
	owners    commands.OwnerLookup
	uploadDir string
	defaults  commands.IngestDefaults
	chain     cor.Chain
}

func (b *BucketIngestWorkflow) Execute(context cor.Context) {
	b.chain.Execute(context)
}

func (b *BucketIngestWorkflow) initializeChain() {
	out := cor.NewBaseChain(b.GetName())
	out.AddCommand(commands.NewMediaTriggerToGCSObject("media-trigger-to-gcs-object"))
	out.AddCommand(commands.NewGCSToLocalFile("gcs-to-local-file", b.fetcher, b.uploadDir))
	out.AddCommand(commands.NewSubmitIngestedJob("submit-ingested-job", b.jobs, b.owners, b.defaults))
	b.chain = out
}

// NewBucketIngestWorkflow wires the ingest chain with the configured owner
// and summary defaults.
func NewBucketIngestWorkflow(
	config *cloud.Config,
	fetcher *media.Fetcher,
	jobs commands.JobSubmitter,
	owners commands.OwnerLookup) *BucketIngestWorkflow {

	w := &BucketIngestWorkflow{
		BaseCommand: *cor.NewBaseCommand("bucket-ingest-workflow"),
		fetcher:     fetcher,
		jobs:        jobs,
		owners:      owners,
		uploadDir:   config.Server.UploadDir,
		defaults: commands.IngestDefaults{
			OwnerEmail: config.Ingest.OwnerEmail,
			NumFrames:  config.Ingest.NumFrames,
			Style:      config.Ingest.Style,
			Format:     config.Ingest.Format,
		},
	}
	w.initializeChain()
	return w
}
