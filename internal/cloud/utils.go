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

// This file contains the hierarchical configuration loader and the helpers
// used to call Gemini with retries and token accounting.
//
// Functions:
//   - LoadConfig: reads .env.toml, then overlays .env.<runtime>.toml.
//   - ApplyEnvironment: lets secrets come from environment variables.
//   - GenerateMultiModalResponse: Gemini call with retries and token counters.
package cloud

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Directory holding the config files.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Runtime overlay, e.g. "local", "test", "prod".
	MaxRetries          = 3
)

// Environment variables consulted for secrets when the TOML leaves them empty.
const (
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJWTSecret    = "JWT_SECRET_KEY"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes the base configuration file and then the runtime
// specific one on top of it. Values in the second file win.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	slog.Debug("loading configuration", "base", baseConfigFileName, "overlay", envConfigFileName)

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}
	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// ApplyEnvironment fills secrets that the configuration files left empty.
// Each model may name its own variable with api_key_env.
func (c *Config) ApplyEnvironment() {
	for name, m := range c.ChatModels {
		m.APIKey = firstNonEmpty(m.APIKey, os.Getenv(m.APIKeyEnv), os.Getenv(EnvGroqAPIKey))
		c.ChatModels[name] = m
	}
	for name, m := range c.GeminiModels {
		m.APIKey = firstNonEmpty(m.APIKey, os.Getenv(m.APIKeyEnv), os.Getenv(EnvGeminiAPIKey))
		c.GeminiModels[name] = m
	}
	for name, m := range c.SpeechModels {
		m.APIKey = firstNonEmpty(m.APIKey, os.Getenv(m.APIKeyEnv), os.Getenv(EnvOpenAIAPIKey))
		c.SpeechModels[name] = m
	}
	c.Auth.JWTSecret = firstNonEmpty(os.Getenv(EnvJWTSecret), c.Auth.JWTSecret)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// GenerateMultiModalResponse runs a Gemini request, retrying up to MaxRetries
// times, and records token usage.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (value string, err error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		if tryCount < MaxRetries && ctx.Err() == nil {
			retryCounter.Add(ctx, 1)
			return GenerateMultiModalResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, content)
		}
		return "", err
	}
	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
