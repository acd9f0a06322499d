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
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// ExtractAudio decodes the audio track into the scratch directory. A video
// without usable audio leaves ParamAudio unset; that is never an error.
type ExtractAudio struct {
	cor.BaseCommand
	extractor *media.Extractor
}

func NewExtractAudio(extractor *media.Extractor) *ExtractAudio {
	out := &ExtractAudio{BaseCommand: *cor.NewBaseCommand(ExtractAudioName), extractor: extractor}
	out.InputParamName = ParamVideoPath
	out.OutputParamName = ParamAudio
	return out
}

func (c *ExtractAudio) Execute(context cor.Context) {
	video := context.Get(c.GetInputParam()).(string)
	dir, _ := context.Get(ParamScratchDir).(string)

	if audio := c.extractor.ExtractAudio(context.GetContext(), video, dir); audio != nil {
		context.AddTempFile(audio.Path)
		context.Add(c.GetOutputParam(), audio)
	}
	c.Succeed(context)
}
