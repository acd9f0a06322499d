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

// This file builds every external client from the configuration and keeps
// them in one ServiceClients value shared by the workflows and the API.
//
// Google Cloud clients (Storage, Pub/Sub, BigQuery, IAM) are only created
// when application.google_project_id is set. Model clients are only created
// when a key is available for them. Anything left nil is treated as "not
// configured" by its consumers, which then fall back or skip.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients is the container for all external connections.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BiqQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient
	PubSubListeners map[string]*PubSubListener
	EventPublisher  *PubSubPublisher
	URLSigner       *URLSigner

	GeminiModels map[string]*QuotaAwareGenerativeAIModel
	ChatModels   map[string]*QuotaAwareChatModel
	SpeechModels map[string]*QuotaAwareChatModel
}

// Close releases every client that was created.
func (c *ServiceClients) Close() {
	if c.EventPublisher != nil {
		c.EventPublisher.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// ModelsLoaded reports which model families are available, for the health
// and info endpoints.
func (c *ServiceClients) ModelsLoaded() map[string]bool {
	_, caption := c.GeminiModels[CaptionModel]
	_, secondary := c.GeminiModels[SecondarySummaryModel]
	_, primary := c.ChatModels[PrimarySummaryModel]
	_, speech := c.SpeechModels[TranscriptionModel]
	return map[string]bool{
		"captioning":         caption,
		"transcription":      speech,
		"summary_primary":    primary,
		"summary_secondary":  secondary,
		"ocr":                true,
		"fallback_summaries": true,
	}
}

func googleOptions(config *Config) []option.ClientOption {
	if config.Application.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(config.Application.CredentialsFile)}
}

// NewCloudServiceClients creates the clients the configuration asks for.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		GeminiModels:    make(map[string]*QuotaAwareGenerativeAIModel),
		ChatModels:      make(map[string]*QuotaAwareChatModel),
		SpeechModels:    make(map[string]*QuotaAwareChatModel),
	}

	if project := config.Application.GoogleProjectId; project != "" {
		opts := googleOptions(config)
		if cloud.StorageClient, err = storage.NewClient(ctx, opts...); err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, project, opts...); err != nil {
			return nil, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		if config.BigQueryDataSource.DatasetName != "" {
			if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, project, opts...); err != nil {
				return nil, fmt.Errorf("failed to create bigquery client: %w", err)
			}
		}
		if config.Application.SignerServiceAccountEmail != "" {
			if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx, opts...); err != nil {
				return nil, fmt.Errorf("failed to create iam credentials client: %w", err)
			}
			cloud.URLSigner = NewURLSigner(cloud.IAMClient, config.Application.SignerServiceAccountEmail,
				time.Duration(config.Storage.SignedURLMinutes)*time.Minute)
		}

		for subKey, values := range config.TopicSubscriptions {
			listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
			if err != nil {
				return nil, err
			}
			cloud.PubSubListeners[subKey] = listener
		}
		if config.Topics.JobEvents != "" {
			cloud.EventPublisher = NewPubSubPublisher(cloud.PubsubClient, config.Topics.JobEvents)
		}
	}

	if err := cloud.initGemini(ctx, config); err != nil {
		return nil, err
	}

	for name, values := range config.ChatModels {
		if values.APIKey == "" {
			slog.WarnContext(ctx, "chat model has no api key, skipping", "model", name)
			continue
		}
		cloud.ChatModels[name] = NewQuotaAwareChatModel(values.APIKey, values.BaseURL, values.Model, values.Temperature, values.RateLimit)
	}
	for name, values := range config.SpeechModels {
		if values.APIKey == "" {
			slog.WarnContext(ctx, "speech model has no api key, skipping", "model", name)
			continue
		}
		cloud.SpeechModels[name] = NewQuotaAwareChatModel(values.APIKey, values.BaseURL, values.Model, 0, values.RateLimit)
	}
	return cloud, nil
}

// initGemini uses the Gemini API when a key is configured and Vertex AI when
// only a Google project is.
func (c *ServiceClients) initGemini(ctx context.Context, config *Config) (err error) {
	apiKey := ""
	for _, m := range config.GeminiModels {
		if m.APIKey != "" {
			apiKey = m.APIKey
			break
		}
	}
	switch {
	case apiKey != "":
		c.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	case config.Application.GoogleProjectId != "":
		c.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  config.Application.GoogleProjectId,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	for name, values := range config.GeminiModels {
		generateConfig := &genai.GenerateContentConfig{
			Temperature:    genai.Ptr(values.Temperature),
			SafetySettings: DefaultSafetySettings,
		}
		if values.MaxTokens > 0 {
			generateConfig.MaxOutputTokens = values.MaxTokens
		}
		if values.SystemInstructions != "" {
			generateConfig.SystemInstruction = genai.NewContentFromText(values.SystemInstructions, genai.RoleUser)
		}
		c.GeminiModels[name] = NewQuotaAwareModel(generateConfig, values.Model, c.GenAIClient.Models, values.RateLimit)
	}
	return nil
}
