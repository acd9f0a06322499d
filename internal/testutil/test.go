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

// Package test holds shared fixtures for the package test suites: the test
// configuration, canned Cloud Storage notifications and a scriptable
// CommandRunner standing in for ffmpeg, ffprobe, tesseract and yt-dlp.
package test

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
)

type StateManager struct {
	mu     sync.Mutex
	config *cloud.Config
}

var state = &StateManager{}

func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func GetTestIngestMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "videowise_ingest/demo-clip.mp4/1728615848664286",
  "name": "demo-clip.mp4",
  "bucket": "videowise_ingest",
  "generation": "1728615848664286",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "size": "2048",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "metadata": { "title": "Demo clip" }
}`
}

// findConfigDir walks up from the working directory to the module root,
// where the configs directory lives.
func findConfigDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "configs"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("module root not found")
		}
		dir = parent
	}
}

func SetupOS() (err error) {
	configDir, err := findConfigDir()
	if err != nil {
		return err
	}
	if err = os.Setenv(cloud.EnvConfigFilePrefix, configDir); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads configs/.env.toml overlaid with configs/.env.test.toml once
// per test binary.
func GetConfig() *cloud.Config {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}
