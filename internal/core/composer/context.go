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
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

const (
	maxContextScenes = 10
	maxContextTexts  = 10
)

// Input is everything the composer knows about a video.
type Input struct {
	Transcript  string
	Analysis    model.VisualAnalysis
	Style       string
	Format      string
	TargetWords int
	Profile     *model.UserProfile
}

// Scenes returns the bare scene description of each labelled caption.
func (in Input) Scenes() []string {
	scenes := make([]string, 0, len(in.Analysis.FrameCaptions))
	for _, caption := range in.Analysis.FrameCaptions {
		if !strings.Contains(caption, ": ") {
			continue
		}
		scenes = append(scenes, model.SceneDescription(caption))
	}
	return scenes
}

// BuildContext renders the VIDEO INFORMATION section of the prompt.
func BuildContext(in Input) string {
	var parts []string

	if in.Transcript != "" && !strings.Contains(in.Transcript, "No audio") {
		parts = append(parts, "AUDIO TRANSCRIPTION:\n"+in.Transcript)
	}

	if scenes := in.Scenes(); len(scenes) > 0 {
		parts = append(parts, "VISUAL CONTENT (Key Scenes):\n"+strings.Join(scenes[:min(len(scenes), maxContextScenes)], "\n"))
	}

	if texts := uniqueTexts(in.Analysis.OCRTexts, maxContextTexts); len(texts) > 0 {
		parts = append(parts, "ON-SCREEN TEXT:\n"+strings.Join(texts, ", "))
	}

	if in.Profile != nil {
		var sb strings.Builder
		sb.WriteString("USER PROFILE:\n")
		if len(in.Profile.Expertise) > 0 {
			sb.WriteString("Expertise: " + strings.Join(in.Profile.Expertise, ", ") + "\n")
		}
		if prefs := in.Profile.SummaryPreferences; prefs != nil && !prefs.IsEmpty() {
			length := prefs.Length
			if length == "" {
				length = model.DefaultLength
			}
			sb.WriteString("Preferences: Length=" + length + ", Focus=" + strings.Join(prefs.Focus, ", ") + "\n")
		}
		parts = append(parts, sb.String())
	}

	return strings.Join(parts, "\n\n")
}

func uniqueTexts(texts []string, limit int) []string {
	seen := make(map[string]bool, len(texts))
	out := make([]string, 0, min(len(texts), limit))
	for _, t := range texts {
		if len(out) == limit {
			break
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
