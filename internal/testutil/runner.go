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

package test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JPEGBytes is a minimal JPEG header, enough for content sniffing.
var JPEGBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9}

// ProbeJSON renders ffprobe output for a video with the given frame count.
func ProbeJSON(frames int, withAudio bool) string {
	streams := []map[string]any{{
		"index":          0,
		"codec_type":     "video",
		"codec_name":     "h264",
		"nb_frames":      fmt.Sprint(frames),
		"avg_frame_rate": "25/1",
		"duration":       fmt.Sprintf("%.2f", float64(frames)/25.0),
		"width":          320,
		"height":         240,
	}}
	if withAudio {
		streams = append(streams, map[string]any{
			"index":      1,
			"codec_type": "audio",
			"codec_name": "aac",
		})
	}
	out, _ := json.Marshal(map[string]any{
		"streams": streams,
		"format":  map[string]any{"duration": fmt.Sprintf("%.2f", float64(frames)/25.0), "format_name": "mov,mp4"},
	})
	return string(out)
}

// FakeRunner answers for the media tools without running them. Programs are
// recognised by the base name of the executable.
type FakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	Probe    string // ffprobe stdout
	ProbeErr error

	// MaxFrames caps the images the fake ffmpeg writes; 0 writes one per
	// selected frame.
	MaxFrames int
	FrameErr  error

	// AudioSamples is the number of 16-bit samples written to the WAV.
	AudioSamples int
	// AudioInfoChunk adds a LIST metadata chunk ahead of the samples.
	AudioInfoChunk bool
	AudioErr       error

	TesseractTSV string
	TesseractErr error

	// YtDlpPayload is written to the file the fake yt-dlp reports.
	YtDlpPayload []byte
	YtDlpErr     error
}

func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// CallsTo returns the recorded invocations of one program.
func (f *FakeRunner) CallsTo(program string) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if filepath.Base(c[0]) == program {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	switch filepath.Base(name) {
	case "ffprobe":
		if f.ProbeErr != nil {
			return nil, []byte("probe failed"), f.ProbeErr
		}
		return []byte(f.Probe), nil, nil
	case "ffmpeg":
		if contains(args, "-vn") {
			return nil, nil, f.writeAudio(args[len(args)-1])
		}
		return nil, nil, f.writeFrames(args)
	case "tesseract":
		if f.TesseractErr != nil {
			return nil, nil, f.TesseractErr
		}
		return []byte(f.TesseractTSV), nil, nil
	case "yt-dlp":
		if f.YtDlpErr != nil {
			return nil, nil, f.YtDlpErr
		}
		return f.writeDownload(args)
	}
	return nil, nil, fmt.Errorf("unexpected program %s", name)
}

func (f *FakeRunner) writeFrames(args []string) error {
	if f.FrameErr != nil {
		return f.FrameErr
	}
	filter := valueAfter(args, "-vf")
	n := strings.Count(filter, "eq(")
	if f.MaxFrames > 0 && n > f.MaxFrames {
		n = f.MaxFrames
	}
	pattern := args[len(args)-1]
	for i := 0; i < n; i++ {
		if err := os.WriteFile(fmt.Sprintf(pattern, i+1), JPEGBytes, 0o600); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeRunner) writeAudio(out string) error {
	if f.AudioErr != nil {
		return f.AudioErr
	}
	return os.WriteFile(out, WAVBytes(f.AudioSamples, f.AudioInfoChunk), 0o600)
}

// WAVBytes renders a silent 16 kHz mono 16-bit WAV file.
func WAVBytes(samples int, infoChunk bool) []byte {
	var buf bytes.Buffer
	chunk := func(id string, body []byte) {
		buf.WriteString(id)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(body)))
		buf.Write(body)
		if len(body)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	var format bytes.Buffer
	for _, v := range []any{uint16(1), uint16(1), uint32(16000), uint32(32000), uint16(2), uint16(16)} {
		_ = binary.Write(&format, binary.LittleEndian, v)
	}
	chunk("fmt ", format.Bytes())
	if infoChunk {
		chunk("LIST", []byte("INFOISFT\x0e\x00\x00\x00Lavf61.7.100\x00\x00"))
	}
	chunk("data", make([]byte, 2*samples))

	out := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(4+buf.Len()))...)
	out = append(out, "WAVE"...)
	return append(out, buf.Bytes()...)
}

func (f *FakeRunner) writeDownload(args []string) ([]byte, []byte, error) {
	template := valueAfter(args, "-o")
	local := strings.ReplaceAll(strings.ReplaceAll(template, "%(id)s", "fake-id"), "%(ext)s", "mp4")
	if err := os.WriteFile(local, f.YtDlpPayload, 0o600); err != nil {
		return nil, nil, err
	}
	return []byte("[download] done\n" + local + "\n"), nil, nil
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func valueAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
