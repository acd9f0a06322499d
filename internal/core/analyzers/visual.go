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

package analyzers

import (
	"context"
	"strings"
	"sync"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// frameWorkers bounds concurrent per-frame model calls for one job.
const frameWorkers = 4

// AnalyzeVisual captions and reads every frame. Results keep frame order
// regardless of the order in which the models answer.
func AnalyzeVisual(ctx context.Context, frames []model.Frame, captioner *Captioner, extractor *TextExtractor) model.VisualAnalysis {
	records := make([]model.FrameCaption, len(frames))

	sem := make(chan struct{}, frameWorkers)
	var wg sync.WaitGroup
	for i, frame := range frames {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, frame model.Frame) {
			defer wg.Done()
			defer func() { <-sem }()
			records[i] = model.FrameCaption{
				Frame:        i + 1,
				Index:        frame.Index,
				Caption:      captioner.Caption(ctx, frame),
				OnScreenText: extractor.Extract(ctx, frame),
			}
		}(i, frame)
	}
	wg.Wait()

	analysis := model.VisualAnalysis{
		Frames:        records,
		FrameCaptions: make([]string, len(records)),
		OCRTexts:      []string{},
	}
	seen := make(map[string]bool)
	for i, r := range records {
		analysis.FrameCaptions[i] = r.Labelled()
		for _, text := range r.OnScreenText {
			if !seen[text] {
				seen[text] = true
				analysis.OCRTexts = append(analysis.OCRTexts, text)
			}
		}
	}
	analysis.VisualSummary = strings.Join(analysis.FrameCaptions, "\n")
	return analysis
}
