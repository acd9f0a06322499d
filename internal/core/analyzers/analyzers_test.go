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

package analyzers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	test "github.com/jaycherian/gcp-go-video-summary/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaptionModel struct {
	text string
	err  error
}

func (f *fakeCaptionModel) DescribeImage(_ context.Context, data []byte, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if mimeType != "image/jpeg" || len(data) == 0 {
		return "", errors.New("unexpected image")
	}
	return f.text, nil
}

type fakeSpeechModel struct {
	text string
	err  error
}

func (f *fakeSpeechModel) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

type fakeTextModel struct {
	byPath map[string][]analyzers.Detection
	err    error
}

func (f *fakeTextModel) Detect(_ context.Context, path string) ([]analyzers.Detection, error) {
	return f.byPath[filepath.Base(path)], f.err
}

func writeFrames(t *testing.T, n int) []model.Frame {
	t.Helper()
	dir := t.TempDir()
	frames := make([]model.Frame, n)
	for i := range frames {
		path := filepath.Join(dir, "frame_"+string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(path, test.JPEGBytes, 0o600))
		frames[i] = model.Frame{Index: i * 10, Path: path}
	}
	return frames
}

func TestCaptionerFallback(t *testing.T) {
	ctx := context.Background()
	frame := writeFrames(t, 1)[0]

	assert.Equal(t, "a dog runs", analyzers.NewCaptioner(&fakeCaptionModel{text: " a dog\n runs "}).Caption(ctx, frame))
	assert.Equal(t, model.CaptionUnavailable, analyzers.NewCaptioner(&fakeCaptionModel{err: errors.New("quota")}).Caption(ctx, frame))
	assert.Equal(t, model.CaptionUnavailable, analyzers.NewCaptioner(&fakeCaptionModel{text: "  "}).Caption(ctx, frame))
	assert.Equal(t, model.CaptionUnavailable, analyzers.NewCaptioner(nil).Caption(ctx, frame))
	assert.Equal(t, model.CaptionUnavailable, analyzers.NewCaptioner(&fakeCaptionModel{text: "x"}).Caption(ctx, model.Frame{Path: "/missing.jpg"}))
}

func TestTranscriberPlaceholders(t *testing.T) {
	ctx := context.Background()
	audio := &model.Audio{Path: "audio.wav", SampleRate: 16000, Samples: 16000}

	assert.Equal(t, "hello world", analyzers.NewTranscriber(&fakeSpeechModel{text: " hello world "}).Transcribe(ctx, audio))
	assert.Equal(t, model.TranscriptNoContent, analyzers.NewTranscriber(&fakeSpeechModel{text: "x"}).Transcribe(ctx, nil))
	assert.Equal(t, model.TranscriptNoContent, analyzers.NewTranscriber(&fakeSpeechModel{text: "x"}).Transcribe(ctx, &model.Audio{}))
	assert.Equal(t, model.TranscriptNoSpeech, analyzers.NewTranscriber(&fakeSpeechModel{text: "   "}).Transcribe(ctx, audio))
	assert.Equal(t, model.TranscriptFailed, analyzers.NewTranscriber(&fakeSpeechModel{err: errors.New("boom")}).Transcribe(ctx, audio))
	assert.Equal(t, model.TranscriptFailed, analyzers.NewTranscriber(nil).Transcribe(ctx, audio))
}

func TestTextExtractorThreshold(t *testing.T) {
	ctx := context.Background()
	frame := model.Frame{Path: "/frames/frame_a.jpg"}
	extractor := analyzers.NewTextExtractor(&fakeTextModel{byPath: map[string][]analyzers.Detection{
		"frame_a.jpg": {
			{Text: "SALE", Confidence: 0.9},
			{Text: "blurry", Confidence: 0.5},
			{Text: "  ", Confidence: 0.99},
			{Text: " 50% off ", Confidence: 0.51},
		},
	}})
	assert.Equal(t, []string{"SALE", "50% off"}, extractor.Extract(ctx, frame))

	failing := analyzers.NewTextExtractor(&fakeTextModel{err: errors.New("ocr down")})
	assert.Empty(t, failing.Extract(ctx, frame))
}

func TestParseTesseractTSV(t *testing.T) {
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t96.0\tBig",
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t90.0\tSale",
		"5\t1\t2\t1\t1\t1\t10\t100\t50\t20\t30.0\tnoise",
	}, "\n")

	detections := analyzers.ParseTesseractTSV([]byte(tsv))
	require.Len(t, detections, 2)
	assert.Equal(t, "Big Sale", detections[0].Text)
	assert.InDelta(t, 0.93, detections[0].Confidence, 0.0001)
	assert.Equal(t, "noise", detections[1].Text)
}

func TestTesseractModelUsesRunner(t *testing.T) {
	runner := &test.FakeRunner{TesseractTSV: "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t1\t1\t80\tHello\n"}
	detections, err := analyzers.NewTesseractModel(runner, "tesseract", "eng").Detect(context.Background(), "/tmp/frame.jpg")
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "Hello", detections[0].Text)
	assert.Equal(t, []string{"tesseract", "/tmp/frame.jpg", "stdout", "-l", "eng", "tsv"}, runner.Calls()[0])
}

func TestAnalyzeVisual(t *testing.T) {
	ctx := context.Background()
	frames := writeFrames(t, 3)
	captioner := analyzers.NewCaptioner(&fakeCaptionModel{text: "a street"})
	extractor := analyzers.NewTextExtractor(&fakeTextModel{byPath: map[string][]analyzers.Detection{
		"frame_a.jpg": {{Text: "OPEN", Confidence: 0.8}},
		"frame_c.jpg": {{Text: "OPEN", Confidence: 0.8}, {Text: "CAFE", Confidence: 0.7}},
	}})

	analysis := analyzers.AnalyzeVisual(ctx, frames, captioner, extractor)
	require.Len(t, analysis.Frames, 3)
	assert.Equal(t, []string{
		"Frame 1: a street | On-screen text: OPEN",
		"Frame 2: a street",
		"Frame 3: a street | On-screen text: OPEN, CAFE",
	}, analysis.FrameCaptions)
	assert.Equal(t, []string{"OPEN", "CAFE"}, analysis.OCRTexts)
	assert.Equal(t, 20, analysis.Frames[2].Index)
	assert.Equal(t, strings.Join(analysis.FrameCaptions, "\n"), analysis.VisualSummary)
}
