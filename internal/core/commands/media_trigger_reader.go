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

// This file defines the first command of the bucket ingest workflow. Cloud
// Storage publishes a notification for every finalized object; the command
// reduces it to a GCSObject. Objects that are not videos produce no output,
// so the rest of the chain is skipped and the message is still acked.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
)

// MediaTriggerToGCSObject parses the notification JSON found under the input
// key.
type MediaTriggerToGCSObject struct {
	cor.BaseCommand
}

func NewMediaTriggerToGCSObject(name string) *MediaTriggerToGCSObject {
	return &MediaTriggerToGCSObject{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *MediaTriggerToGCSObject) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var out cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		c.Fail(context, fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}
	if out.Bucket == "" || out.Name == "" {
		c.Fail(context, errors.New("GCS notification has no bucket or object name"))
		return
	}
	if out.ContentType != "" && !strings.HasPrefix(out.ContentType, "video/") {
		slog.InfoContext(context.GetContext(), "ignoring non-video object", "object", out.Name, "content_type", out.ContentType)
		c.Succeed(context)
		return
	}

	msg := &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType, MetaData: out.MetaData}
	context.Add(cloud.GetGCSObjectName(), msg)
	context.Add(c.GetOutputParam(), msg)
	c.Succeed(context)
}
