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

// This file defines the command that copies an ingested Cloud Storage object
// into the upload directory, where it becomes the media of a new job.
package commands

import (
	"log/slog"
	"path"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// GCSToLocalFile downloads the *cloud.GCSObject from its input and outputs
// the local path. The file is not registered as a temp file: it is owned by
// the job submitted next.
type GCSToLocalFile struct {
	cor.BaseCommand
	fetcher   *media.Fetcher
	uploadDir string
}

func NewGCSToLocalFile(name string, fetcher *media.Fetcher, uploadDir string) *GCSToLocalFile {
	return &GCSToLocalFile{BaseCommand: *cor.NewBaseCommand(name), fetcher: fetcher, uploadDir: uploadDir}
}

func (c *GCSToLocalFile) Execute(context cor.Context) {
	ctx := context.GetContext()
	msg := context.Get(c.GetInputParam()).(*cloud.GCSObject)

	local, err := c.fetcher.Fetch(ctx, msg.URI(), c.uploadDir)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(ctx, "downloaded object", "object", msg.URI(), "file", local, "name", path.Base(msg.Name))
	context.Add(c.GetOutputParam(), local)
	c.Succeed(context)
}
