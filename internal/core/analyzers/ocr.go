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
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// MinTextConfidence is the exclusive lower bound for keeping a detection.
const MinTextConfidence = 0.5

// Detection is one line of text found in an image.
type Detection struct {
	Text       string
	Confidence float64 // 0..1
}

// TextModel finds text in an image file.
type TextModel interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// TextExtractor keeps the confident detections of a TextModel.
type TextExtractor struct {
	model TextModel
}

func NewTextExtractor(model TextModel) *TextExtractor {
	return &TextExtractor{model: model}
}

// Extract returns the on-screen text of a frame, or an empty slice.
func (e *TextExtractor) Extract(ctx context.Context, frame model.Frame) []string {
	out := []string{}
	if e == nil || e.model == nil {
		return out
	}
	detections, err := e.model.Detect(ctx, frame.Path)
	if err != nil {
		slog.WarnContext(ctx, "error in ocr", "frame", frame.Index, "error", err)
		return out
	}
	for _, d := range detections {
		text := strings.TrimSpace(d.Text)
		if text != "" && d.Confidence > MinTextConfidence {
			out = append(out, text)
		}
	}
	return out
}

// TesseractModel runs the tesseract CLI and reads its TSV output.
type TesseractModel struct {
	runner   media.CommandRunner
	command  string
	language string
}

func NewTesseractModel(runner media.CommandRunner, command string, language string) *TesseractModel {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	if command == "" {
		command = "tesseract"
	}
	return &TesseractModel{runner: runner, command: command, language: language}
}

func (t *TesseractModel) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	args := []string{imagePath, "stdout"}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}
	args = append(args, "tsv")
	stdout, _, err := t.runner.Run(ctx, t.command, args...)
	if err != nil {
		return nil, err
	}
	return ParseTesseractTSV(stdout), nil
}

type lineKey struct {
	page, block, par, line string
}

// ParseTesseractTSV groups recognised words into lines. The confidence of a
// line is the mean word confidence scaled to 0..1.
func ParseTesseractTSV(data []byte) []Detection {
	type acc struct {
		words []string
		conf  float64
	}
	var (
		order []lineKey
		lines = map[lineKey]*acc{}
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if word == "" || err != nil || conf < 0 {
			continue
		}
		key := lineKey{cols[1], cols[2], cols[3], cols[4]}
		a, ok := lines[key]
		if !ok {
			a = &acc{}
			lines[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, word)
		a.conf += conf
	}
	out := make([]Detection, 0, len(order))
	for _, key := range order {
		a := lines[key]
		out = append(out, Detection{
			Text:       strings.Join(a.words, " "),
			Confidence: a.conf / float64(len(a.words)) / 100,
		})
	}
	return out
}
