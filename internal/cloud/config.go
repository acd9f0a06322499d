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

// Package cloud defines the application configuration, loaded from TOML
// files, and the clients for the external services the summary pipeline talks
// to (Gemini, OpenAI-compatible endpoints, Cloud Storage, Pub/Sub, BigQuery).
//
// Structs:
//   - Application: service identity, Google project and job admission settings.
//   - Server: HTTP listen address and upload limits.
//   - Auth: bearer token signing settings.
//   - Database: durable store driver and DSN.
//   - Media: external binaries and scratch directories for media decoding.
//   - ChatModel / GeminiModel / SpeechModel: provider settings.
//   - TopicSubscription / Topics: Pub/Sub wiring.
//   - Config: the root of the tree.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings keeps Gemini from blocking frame descriptions and
// summaries of user supplied media.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Server holds the HTTP listener settings.
type Server struct {
	Address        string `toml:"address"`          // Listen address, e.g. ":5000".
	MaxUploadBytes int64  `toml:"max_upload_bytes"` // Maximum accepted request body for uploads.
	UploadDir      string `toml:"upload_dir"`       // Where uploaded and downloaded media is stored.
	ServiceName    string `toml:"service_name"`     // Name reported to otelgin.
}

// Auth holds bearer token settings.
type Auth struct {
	JWTSecret        string `toml:"jwt_secret"`
	TokenTTLHours    int    `toml:"token_ttl_hours"`
	PasswordHashCost int    `toml:"password_hash_cost"`
}

// Database selects the durable store.
type Database struct {
	Driver string `toml:"driver"` // "sqlite" or "postgres".
	DSN    string `toml:"dsn"`    // File path for sqlite, connection URL for postgres.
}

// Media configures the decoding and download tools.
type Media struct {
	FFmpegCommand         string `toml:"ffmpeg_command"`
	FFprobeCommand        string `toml:"ffprobe_command"`
	YtDlpCommand          string `toml:"yt_dlp_command"` // Empty disables yt-dlp and falls back to plain HTTP.
	TesseractCommand      string `toml:"tesseract_command"`
	TesseractLanguage     string `toml:"tesseract_language"`
	ScratchDir            string `toml:"scratch_dir"`
	FailedRetentionHours  int    `toml:"failed_retention_hours"` // 0 keeps media of failed jobs forever.
	JanitorIntervalSecond int    `toml:"janitor_interval_seconds"`
}

// ChatModel configures an OpenAI-compatible chat completion endpoint.
type ChatModel struct {
	Name        string  `toml:"name"`
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	RateLimit   int     `toml:"rate_limit"` // Requests per second.
}

// GeminiModel configures a Gemini model used through the genai SDK.
type GeminiModel struct {
	Model              string  `toml:"model"`
	APIKey             string  `toml:"api_key"`
	APIKeyEnv          string  `toml:"api_key_env"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	MaxTokens          int32   `toml:"max_tokens"`
	RateLimit          int     `toml:"rate_limit"`
}

// SpeechModel configures a Whisper-compatible transcription endpoint.
type SpeechModel struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APIKeyEnv string `toml:"api_key_env"`
	Model     string `toml:"model"`
	Language  string `toml:"language"`
	RateLimit int    `toml:"rate_limit"`
}

// PromptTemplates allows overriding the built-in summary style templates and
// the captioning prompt.
type PromptTemplates struct {
	Styles  map[string]string `toml:"styles"`
	Caption string            `toml:"caption"`
}

// TopicSubscription represents the configuration for a Pub/Sub subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Topics lists the Pub/Sub topics the service publishes to.
type Topics struct {
	JobEvents string `toml:"job_events"`
}

// Storage configures Cloud Storage use.
type Storage struct {
	SignedURLMinutes int `toml:"signed_url_minutes"`
}

// BigQueryDataSource configures the optional result archive.
type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`
	ResultsTable string `toml:"results_table"`
}

// Ingest configures the bucket ingestion listener.
type Ingest struct {
	OwnerEmail string `toml:"owner_email"`
	NumFrames  int    `toml:"num_frames"`
	Style      string `toml:"summary_style"`
	Format     string `toml:"summary_format"`
}

// Config is the root of the application configuration.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		Version                   string `toml:"version"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		CredentialsFile           string `toml:"credentials_file"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		MaxConcurrentJobs         int    `toml:"max_concurrent_jobs"` // 0 means one worker per job with no bound.
		LogLevel                  string `toml:"log_level"`
		LogFile                   string `toml:"log_file"`
	} `toml:"application"`
	Server             Server                       `toml:"server"`
	Auth               Auth                         `toml:"auth"`
	Database           Database                     `toml:"database"`
	Media              Media                        `toml:"media"`
	ChatModels         map[string]ChatModel         `toml:"chat_models"`
	GeminiModels       map[string]GeminiModel       `toml:"gemini_models"`
	SpeechModels       map[string]SpeechModel       `toml:"speech_models"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	Topics             Topics                       `toml:"topics"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	Ingest             Ingest                       `toml:"ingest"`
}

// Logical names of the models the pipeline looks up in the config maps.
const (
	PrimarySummaryModel   = "primary"
	SecondarySummaryModel = "secondary"
	CaptionModel          = "caption"
	TranscriptionModel    = "transcription"
	IngestSubscription    = "IngestTopic"
)

// NewConfig returns a Config with defaults applied and every map initialised,
// so that TOML decoding only needs to override what it sets.
func NewConfig() *Config {
	c := &Config{
		ChatModels:         make(map[string]ChatModel),
		GeminiModels:       make(map[string]GeminiModel),
		SpeechModels:       make(map[string]SpeechModel),
		TopicSubscriptions: make(map[string]TopicSubscription),
		PromptTemplates:    PromptTemplates{Styles: make(map[string]string)},
	}
	c.Application.Name = "videowise-backend"
	c.Application.Version = "1.0.0"
	c.Application.LogLevel = "info"
	c.Server = Server{
		Address:        ":5000",
		MaxUploadBytes: 500 * 1024 * 1024,
		UploadDir:      "./uploads",
		ServiceName:    "videowise-server",
	}
	c.Auth = Auth{TokenTTLHours: 24, PasswordHashCost: 10}
	c.Database = Database{Driver: "sqlite", DSN: "./videowise.db"}
	c.Media = Media{
		FFmpegCommand:         "ffmpeg",
		FFprobeCommand:        "ffprobe",
		TesseractCommand:      "tesseract",
		TesseractLanguage:     "eng",
		JanitorIntervalSecond: 3600,
	}
	c.Storage.SignedURLMinutes = 60
	c.Ingest = Ingest{NumFrames: 10, Style: "default", Format: "paragraph"}
	return c
}
