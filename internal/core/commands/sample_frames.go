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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// DefaultNumFrames is used when a job does not ask for a frame count.
const DefaultNumFrames = 10

// SampleFrames creates the job's scratch directory and decodes the requested
// number of evenly spaced frames into it. The scratch directory is registered
// with the context so it is removed whatever the outcome of the job.
type SampleFrames struct {
	cor.BaseCommand
	extractor  *media.Extractor
	scratchDir string
}

// NewSampleFrames creates the command. scratchDir is the parent of the
// per-job directories; empty means the OS temp directory.
func NewSampleFrames(extractor *media.Extractor, scratchDir string) *SampleFrames {
	out := &SampleFrames{BaseCommand: *cor.NewBaseCommand(SampleFramesName), extractor: extractor, scratchDir: scratchDir}
	out.InputParamName = ParamVideoPath
	out.OutputParamName = ParamFrames
	return out
}

func (c *SampleFrames) Execute(context cor.Context) {
	ctx := context.GetContext()
	video := context.Get(c.GetInputParam()).(string)

	numFrames := DefaultNumFrames
	if job, ok := context.Get(ParamJob).(model.Job); ok && job.Params.NumFrames > 0 {
		numFrames = job.Params.NumFrames
	}

	if c.scratchDir != "" {
		if err := os.MkdirAll(c.scratchDir, 0o755); err != nil {
			c.Fail(context, fmt.Errorf("failed to create scratch root: %w", err))
			return
		}
	}
	dir, err := os.MkdirTemp(c.scratchDir, "job-")
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to create scratch directory: %w", err))
		return
	}
	context.AddTempDir(dir)
	context.Add(ParamScratchDir, dir)

	frames, err := c.extractor.SampleFrames(ctx, video, filepath.Join(dir, "frames"), numFrames)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(ctx, "frames sampled", "requested", numFrames, "extracted", len(frames))
	context.Add(c.GetOutputParam(), frames)
	c.Succeed(context)
}
