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
	"log/slog"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// TranscribeAudio writes the transcript, or one of the transcript
// placeholders, to ParamTranscript. It always succeeds.
type TranscribeAudio struct {
	cor.BaseCommand
	transcriber *analyzers.Transcriber
}

func NewTranscribeAudio(transcriber *analyzers.Transcriber) *TranscribeAudio {
	out := &TranscribeAudio{BaseCommand: *cor.NewBaseCommand(TranscribeName), transcriber: transcriber}
	out.InputParamName = ParamAudio
	out.OutputParamName = ParamTranscript
	return out
}

// IsExecutable does not require audio: a missing track still produces the
// "no audio track" placeholder.
func (c *TranscribeAudio) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil
}

func (c *TranscribeAudio) Execute(context cor.Context) {
	audio, ok := context.Get(c.GetInputParam()).(*model.Audio)
	if !ok || audio == nil {
		context.Add(c.GetOutputParam(), model.TranscriptNoAudioTrack)
		c.Succeed(context)
		return
	}
	transcript := c.transcriber.Transcribe(context.GetContext(), audio)
	slog.InfoContext(context.GetContext(), "audio transcribed", "characters", len(transcript))
	context.Add(c.GetOutputParam(), transcript)
	c.Succeed(context)
}
