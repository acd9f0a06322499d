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
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
)

// MediaJanitor removes the source media of failed jobs once they are older
// than the retention period. Media of failed jobs is otherwise kept for
// inspection.
type MediaJanitor struct {
	store     *store.SQLStore
	retention time.Duration
	interval  time.Duration
}

func NewMediaJanitor(store *store.SQLStore, retention time.Duration, interval time.Duration) *MediaJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MediaJanitor{store: store, retention: retention, interval: interval}
}

// Enabled reports whether a retention period is configured.
func (j *MediaJanitor) Enabled() bool {
	return j.retention > 0
}

// Run sweeps on every tick until ctx ends.
func (j *MediaJanitor) Run(ctx context.Context) {
	if !j.Enabled() {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "media sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes eligible media once and returns how many files were cleared.
func (j *MediaJanitor) Sweep(ctx context.Context) (int, error) {
	refs, err := j.store.FindFailedMediaOlderThan(ctx, time.Now().Add(-j.retention))
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, ref := range refs {
		if err := os.Remove(ref.Path); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove media", "job", ref.JobID, "path", ref.Path, "error", err)
			continue
		}
		if err := j.store.ClearVideoPath(ctx, ref.JobID); err != nil {
			return cleared, err
		}
		cleared++
	}
	if cleared > 0 {
		slog.InfoContext(ctx, "removed media of failed jobs", "count", cleared)
	}
	return cleared, nil
}
