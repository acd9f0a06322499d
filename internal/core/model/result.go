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

package model

import (
	"fmt"
	"strings"
)

// Transcript placeholders. Callers branch on the exact text, so these are
// part of the result contract.
const (
	TranscriptNoAudioTrack = "No audio track found in video."
	TranscriptNoContent    = "No audio content detected."
	TranscriptNoSpeech     = "No speech detected in audio."
	TranscriptFailed       = "Audio transcription failed."

	// CaptionUnavailable is used for any frame the captioner could not describe.
	CaptionUnavailable = "Unable to describe this frame."
)

const onScreenTextSeparator = " | On-screen text: "

// FrameCaption is the visual analysis of a single sampled frame.
type FrameCaption struct {
	Frame        int      `json:"frame"`
	Index        int      `json:"index"`
	Caption      string   `json:"caption"`
	OnScreenText []string `json:"on_screen_text,omitempty"`
}

// Describe renders the caption together with any on-screen text found.
func (f FrameCaption) Describe() string {
	if len(f.OnScreenText) == 0 {
		return f.Caption
	}
	return f.Caption + onScreenTextSeparator + strings.Join(f.OnScreenText, ", ")
}

// Labelled renders the caption prefixed with its 1-based frame label.
func (f FrameCaption) Labelled() string {
	return fmt.Sprintf("Frame %d: %s", f.Frame, f.Describe())
}

// VisualAnalysis aggregates captions and on-screen text over all frames.
type VisualAnalysis struct {
	Frames        []FrameCaption `json:"frames"`
	FrameCaptions []string       `json:"frame_captions"`
	OCRTexts      []string       `json:"ocr_texts"`
	VisualSummary string         `json:"visual_summary"`
}

// JobResult is attached to a job when it reaches done. It is persisted as a
// single JSON blob.
type JobResult struct {
	AudioTranscription string         `json:"audio_transcription"`
	VisualAnalysis     VisualAnalysis `json:"visual_analysis"`
	FinalSummary       string         `json:"final_summary"`
	SummaryStyle       string         `json:"summary_style"`
	SummaryFormat      string         `json:"summary_format"`
	SummaryProvider    string         `json:"summary_provider,omitempty"`
	VideoURL           string         `json:"video_url,omitempty"`
}

// StripFrameLabel removes the "Frame N: " label from a rendered caption.
func StripFrameLabel(caption string) string {
	if _, rest, ok := strings.Cut(caption, ": "); ok {
		return rest
	}
	return caption
}

// SceneDescription returns just the caption part of a rendered caption,
// without the frame label or the on-screen text suffix.
func SceneDescription(caption string) string {
	scene := StripFrameLabel(caption)
	if before, _, ok := strings.Cut(scene, onScreenTextSeparator); ok {
		scene = before
	}
	return strings.TrimSpace(scene)
}
