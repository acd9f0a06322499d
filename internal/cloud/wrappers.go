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

// This file wraps the model clients with a token bucket so the service stays
// inside provider quotas. Callers block until a token is available or their
// context ends.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: a Gemini model bound to a request config.
//   - QuotaAwareChatModel: an OpenAI-compatible client (Groq, OpenAI) used
//     for chat completions and transcriptions.
package cloud

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

func newLimiter(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond)
}

// QuotaAwareGenerativeAIModel is a Gemini model with a rate limit.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
}

func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               newLimiter(requestsPerSecond),
	}
}

// GenerateContent waits for quota and then calls the model once. Retries are
// the caller's business (see GenerateMultiModalResponse).
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// QuotaAwareChatModel is an OpenAI-compatible client with a rate limit.
type QuotaAwareChatModel struct {
	Client      *openai.Client
	ModelName   string
	Temperature float32
	RateLimit   *rate.Limiter
}

// NewQuotaAwareChatModel points go-openai at baseURL when one is given, which
// is how Groq and other compatible endpoints are reached.
func NewQuotaAwareChatModel(apiKey string, baseURL string, model string, temperature float32, requestsPerSecond int) *QuotaAwareChatModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &QuotaAwareChatModel{
		Client:      openai.NewClientWithConfig(cfg),
		ModelName:   model,
		Temperature: temperature,
		RateLimit:   newLimiter(requestsPerSecond),
	}
}

func (q *QuotaAwareChatModel) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if req.Model == "" {
		req.Model = q.ModelName
	}
	return q.Client.CreateChatCompletion(ctx, req)
}

func (q *QuotaAwareChatModel) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return openai.AudioResponse{}, err
	}
	if req.Model == "" {
		req.Model = q.ModelName
	}
	return q.Client.CreateTranscription(ctx, req)
}
