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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-video-summary/internal/api"
	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/services"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// StateManager holds the shared components for the application.
type StateManager struct {
	config  *cloud.Config
	cloud   *cloud.ServiceClients
	store   *store.SQLStore
	jobs    *services.JobService
	users   *services.UserService
	tokens  *services.TokenIssuer
	fetcher *media.Fetcher
	janitor *workflow.MediaJanitor
}

var state = &StateManager{}

// SetupOS points the config loader at ./configs unless the environment
// already says otherwise.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os for configuration: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		config.ApplyEnvironment()
		state.config = config
	}
	return state.config
}

// InitState opens the store, builds the clients and the services, and fails
// every job a previous process left unfinished.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	state.store, err = store.Open(ctx, config.Database.Driver, config.Database.DSN)
	if err != nil {
		return err
	}
	if err = state.store.Migrate(ctx); err != nil {
		return err
	}

	state.jobs = services.NewJobService(ctx, state.store, store.NewMemoryCache(), config.Application.MaxConcurrentJobs)
	state.jobs.Events = cloudClients.EventPublisher
	state.jobs.Signer = cloudClients.URLSigner
	if err = state.jobs.Recover(ctx); err != nil {
		return err
	}

	runner := media.ExecRunner{}
	toolkit, err := workflow.NewSummaryToolkit(config, cloudClients, runner)
	if err != nil {
		return err
	}
	state.jobs.SetSummarizer(workflow.NewVideoSummaryWorkflow(toolkit, state.jobs))

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is empty, set it or %s", cloud.EnvJWTSecret)
	}
	state.tokens, err = services.NewTokenIssuer(config.Auth.JWTSecret, time.Duration(config.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return err
	}
	state.users = services.NewUserService(state.store, state.tokens, config.Auth.PasswordHashCost)

	state.fetcher = media.NewFetcher(cloudClients.StorageClient, runner, config.Media.YtDlpCommand,
		&http.Client{Timeout: 10 * time.Minute}, config.Server.MaxUploadBytes)

	state.janitor = workflow.NewMediaJanitor(state.store,
		time.Duration(config.Media.FailedRetentionHours)*time.Hour,
		time.Duration(config.Media.JanitorIntervalSecond)*time.Second)
	if state.janitor.Enabled() {
		go state.janitor.Run(ctx)
	}

	SetupListeners(ctx, config, cloudClients)
	return nil
}

func NewServer() *api.Server {
	config := GetConfig()
	return &api.Server{
		Jobs:           state.jobs,
		Users:          state.users,
		Tokens:         state.tokens,
		Fetcher:        state.fetcher,
		UploadDir:      config.Server.UploadDir,
		MaxUploadBytes: config.Server.MaxUploadBytes,
		Name:           config.Application.Name,
		Version:        config.Application.Version,
		ModelsLoaded:   state.cloud.ModelsLoaded(),
	}
}

// CloseState releases the store and the cloud clients.
func CloseState() {
	if state.store != nil {
		if err := state.store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}
	if state.cloud != nil {
		state.cloud.Close()
	}
}
