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

package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// GenerationRequest is what a provider receives.
type GenerationRequest struct {
	Style            string
	StyleDescription string
	Prompt           string
	TargetWords      int
}

// Generator is one summary provider.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

const (
	DefaultChatModel   = "llama-3.3-70b-versatile"
	DefaultChatBaseURL = "https://api.groq.com/openai/v1"
	DefaultTemperature = 0.7
)

// ChatGenerator calls an OpenAI-compatible chat completion endpoint.
type ChatGenerator struct {
	name   string
	client *cloud.QuotaAwareChatModel
}

func NewChatGenerator(name string, client *cloud.QuotaAwareChatModel) *ChatGenerator {
	return &ChatGenerator{name: name, client: client}
}

func (g *ChatGenerator) Name() string {
	return g.name
}

func (g *ChatGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	maxTokens := 1000
	if req.TargetWords > 0 {
		maxTokens = 2000
	}
	temperature := g.client.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You are an expert video summarizer. Write clear, comprehensive summaries "+
					"in paragraph form according to the %s style.", req.StyleDescription),
			},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GeminiGenerator sends the prompt to Gemini as a single user turn.
type GeminiGenerator struct {
	name          string
	model         *cloud.QuotaAwareGenerativeAIModel
	inputCounter  metric.Int64Counter
	outputCounter metric.Int64Counter
	retryCounter  metric.Int64Counter
}

func NewGeminiGenerator(name string, model *cloud.QuotaAwareGenerativeAIModel) *GeminiGenerator {
	meter := otel.Meter(cor.MeterName)
	in, _ := meter.Int64Counter("summary.gemini.token.input")
	out, _ := meter.Int64Counter("summary.gemini.token.output")
	retry, _ := meter.Int64Counter("summary.gemini.retry")
	return &GeminiGenerator{name: name, model: model, inputCounter: in, outputCounter: out, retryCounter: retry}
}

func (g *GeminiGenerator) Name() string {
	return g.name
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	return cloud.GenerateMultiModalResponse(ctx, g.inputCounter, g.outputCounter, g.retryCounter,
		0, g.model, []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)})
}
