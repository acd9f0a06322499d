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

// Package main contains the setup of the Pub/Sub listeners. A listener turns
// a Cloud Storage notification into a summary job for the configured owner.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/workflow"
)

// SetupListeners attaches the ingest workflow to the ingest subscription, if
// one is configured, and starts receiving.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) {
	listener, ok := cloudClients.PubSubListeners[cloud.IngestSubscription]
	if !ok {
		return
	}
	if config.Ingest.OwnerEmail == "" {
		slog.WarnContext(ctx, "ingest subscription configured without ingest.owner_email, not listening")
		return
	}
	ingest := workflow.NewBucketIngestWorkflow(config, state.fetcher, state.jobs, state.store)
	listener.SetCommand(ingest)
	listener.Listen(ctx)
}
