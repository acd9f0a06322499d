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

// Package analyzers turns decoded media into text: a caption per frame, the
// on-screen text of each frame and a transcript of the audio. The wrappers in
// this package never fail a job; model errors degrade to fixed placeholder
// strings that downstream prompt building recognises.
package analyzers

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// DefaultCaptionPrompt asks for the short, literal description a captioning
// model would give.
const DefaultCaptionPrompt = "Describe this video frame in one short, factual sentence. " +
	"Mention the main subjects and what they are doing. Do not speculate."

// CaptionModel describes a single image.
type CaptionModel interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Captioner produces a caption for every frame, whatever happens.
type Captioner struct {
	model CaptionModel
}

func NewCaptioner(model CaptionModel) *Captioner {
	return &Captioner{model: model}
}

// Caption returns the model's description of the frame, or
// model.CaptionUnavailable.
func (c *Captioner) Caption(ctx context.Context, frame model.Frame) string {
	if c == nil || c.model == nil {
		return model.CaptionUnavailable
	}
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		slog.WarnContext(ctx, "failed to read frame", "path", frame.Path, "error", err)
		return model.CaptionUnavailable
	}
	text, err := c.model.DescribeImage(ctx, data, media.FrameMIME(frame.Path))
	if err != nil {
		slog.WarnContext(ctx, "error captioning frame", "frame", frame.Index, "error", err)
		return model.CaptionUnavailable
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return model.CaptionUnavailable
	}
	return text
}

// GeminiCaptionModel captions frames with a Gemini multimodal model.
type GeminiCaptionModel struct {
	model         *cloud.QuotaAwareGenerativeAIModel
	prompt        string
	inputCounter  metric.Int64Counter
	outputCounter metric.Int64Counter
	retryCounter  metric.Int64Counter
}

func NewGeminiCaptionModel(genModel *cloud.QuotaAwareGenerativeAIModel, prompt string) *GeminiCaptionModel {
	if prompt == "" {
		prompt = DefaultCaptionPrompt
	}
	meter := otel.Meter(cor.MeterName)
	in, _ := meter.Int64Counter("caption.token.input")
	out, _ := meter.Int64Counter("caption.token.output")
	retry, _ := meter.Int64Counter("caption.retry")
	return &GeminiCaptionModel{model: genModel, prompt: prompt, inputCounter: in, outputCounter: out, retryCounter: retry}
}

func (g *GeminiCaptionModel) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(g.prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}
	return cloud.GenerateMultiModalResponse(ctx, g.inputCounter, g.outputCounter, g.retryCounter, 0, g.model, contents)
}
