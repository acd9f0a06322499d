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

package analyzers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/sashabaranov/go-openai"
)

// SpeechModel turns a WAV file into text.
type SpeechModel interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Transcriber always returns text: either the transcript or one of the
// placeholder constants in the model package.
type Transcriber struct {
	model SpeechModel
}

func NewTranscriber(model SpeechModel) *Transcriber {
	return &Transcriber{model: model}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio *model.Audio) string {
	if audio.IsEmpty() {
		return model.TranscriptNoContent
	}
	if t == nil || t.model == nil {
		return model.TranscriptFailed
	}
	text, err := t.model.Transcribe(ctx, audio.Path)
	if err != nil {
		slog.WarnContext(ctx, "error in transcription", "error", err)
		return model.TranscriptFailed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.TranscriptNoSpeech
	}
	return text
}

// WhisperModel transcribes through an OpenAI-compatible audio endpoint.
type WhisperModel struct {
	client   *cloud.QuotaAwareChatModel
	language string
}

func NewWhisperModel(client *cloud.QuotaAwareChatModel, language string) *WhisperModel {
	return &WhisperModel{client: client, language: language}
}

func (w *WhisperModel) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		FilePath: audioPath,
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
