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

package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

const (
	AudioSampleRate = 16000
	framePattern    = "frame_%04d.jpg"
)

// MediaError reports a video that cannot be decoded. It is fatal to a job.
type MediaError struct {
	Op   string
	Path string
	Err  error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, filepath.Base(e.Path), e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

var (
	ErrNoVideoStream = errors.New("no video stream")
	ErrNoFrames      = errors.New("no decodable frames")
)

// Extractor samples frames and audio from a video file.
type Extractor struct {
	runner  CommandRunner
	ffmpeg  string
	ffprobe string
}

func NewExtractor(runner CommandRunner, ffmpeg string, ffprobe string) *Extractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Extractor{runner: runner, ffmpeg: ffmpeg, ffprobe: ffprobe}
}

// Probe inspects the container and its streams.
func (e *Extractor) Probe(ctx context.Context, video string) (*Probe, error) {
	out, _, err := e.runner.Run(ctx, e.ffprobe,
		"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", video)
	if err != nil {
		return nil, &MediaError{Op: "probe", Path: video, Err: err}
	}
	p, err := ParseProbe(out)
	if err != nil {
		return nil, &MediaError{Op: "probe", Path: video, Err: fmt.Errorf("parse ffprobe output: %w", err)}
	}
	return p, nil
}

// SampleFrames decodes up to count evenly spaced frames into dir, as JPEG
// files, in a single decoder pass. Frames come back in stream order.
func (e *Extractor) SampleFrames(ctx context.Context, video string, dir string, count int) ([]model.Frame, error) {
	p, err := e.Probe(ctx, video)
	if err != nil {
		return nil, err
	}
	if p.VideoStream() == nil {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: ErrNoVideoStream}
	}
	indices := FrameIndices(p.TotalFrames(), count)
	if len(indices) == 0 {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: ErrNoFrames}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: err}
	}

	_, _, err = e.runner.Run(ctx, e.ffmpeg,
		"-v", "error", "-y", "-i", video,
		"-vf", selectFilter(indices),
		"-vsync", "0",
		filepath.Join(dir, framePattern))
	if err != nil {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: err}
	}

	files, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: err}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, &MediaError{Op: "sample frames", Path: video, Err: ErrNoFrames}
	}

	// indices ascend and select matches on the decoded frame number, so when
	// the stream holds fewer frames than probed only the highest indices go
	// unmatched. Outputs pair with the leading indices in order.
	n := min(len(files), len(indices))
	frames := make([]model.Frame, n)
	for i := 0; i < n; i++ {
		frames[i] = model.Frame{Index: indices[i], Path: files[i]}
	}
	return frames, nil
}

func selectFilter(indices []int) string {
	terms := make([]string, len(indices))
	for i, idx := range indices {
		terms[i] = `eq(n\,` + strconv.Itoa(idx) + `)`
	}
	return "select=" + strings.Join(terms, "+")
}

// ExtractAudio writes the audio track as 16 kHz mono 16-bit WAV into dir.
// A video without an audio stream, or one whose audio cannot be decoded,
// yields nil; neither is an error for the job.
func (e *Extractor) ExtractAudio(ctx context.Context, video string, dir string) *model.Audio {
	p, err := e.Probe(ctx, video)
	if err != nil {
		slog.WarnContext(ctx, "audio probe failed, continuing without audio", "video", video, "error", err)
		return nil
	}
	if !p.HasAudio() {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.WarnContext(ctx, "failed to create audio directory", "dir", dir, "error", err)
		return nil
	}
	out := filepath.Join(dir, "audio.wav")
	_, _, err = e.runner.Run(ctx, e.ffmpeg,
		"-v", "error", "-y", "-i", video,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(AudioSampleRate),
		"-bitexact", "-f", "wav", out)
	if err != nil {
		slog.WarnContext(ctx, "audio extraction failed, continuing without audio", "video", video, "error", err)
		return nil
	}
	dataBytes, err := wavDataSize(out)
	if err != nil {
		slog.WarnContext(ctx, "audio extraction produced an unreadable file", "video", video, "error", err)
		return nil
	}
	return &model.Audio{Path: out, SampleRate: AudioSampleRate, Samples: dataBytes / 2}
}

// wavDataSize walks the RIFF chunks of a WAV file and returns the length of
// its data chunk. A size ffmpeg could not patch (streamed output) falls back
// to the bytes remaining in the file.
func wavDataSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, errors.New("not a RIFF/WAVE file")
	}

	offset := int64(len(riff))
	var chunk [8]byte
	for {
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return 0, fmt.Errorf("find data chunk: %w", err)
		}
		offset += int64(len(chunk))
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		remaining := info.Size() - offset
		if string(chunk[0:4]) == "data" {
			if size > remaining {
				size = remaining
			}
			return size, nil
		}
		// Chunks are word aligned.
		skip := size + size%2
		if skip > remaining {
			return 0, errors.New("truncated WAV chunk")
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return 0, err
		}
		offset += skip
	}
}
