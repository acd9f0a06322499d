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
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ProbeStream is the subset of an ffprobe stream entry the extractor needs.
type ProbeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Probe is the parsed output of
// ffprobe -v quiet -print_format json -show_format -show_streams.
type Probe struct {
	Streams []ProbeStream `json:"streams"`
	Format  struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*Probe, error) {
	p := &Probe{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Probe) stream(codecType string) *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == codecType {
			return &p.Streams[i]
		}
	}
	return nil
}

// VideoStream returns the first video stream, or nil.
func (p *Probe) VideoStream() *ProbeStream {
	return p.stream("video")
}

// HasAudio reports whether the container carries an audio stream.
func (p *Probe) HasAudio() bool {
	return p.stream("audio") != nil
}

// Duration in seconds, preferring the video stream's own duration.
func (p *Probe) Duration() float64 {
	if v := p.VideoStream(); v != nil {
		if d := parseFloat(v.Duration); d > 0 {
			return d
		}
	}
	return parseFloat(p.Format.Duration)
}

// TotalFrames is the container's frame count when reported, otherwise the
// duration multiplied by the average frame rate, rounded.
func (p *Probe) TotalFrames() int {
	v := p.VideoStream()
	if v == nil {
		return 0
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v.NbFrames)); err == nil && n > 0 {
		return n
	}
	rate := parseRate(v.AvgFrameRate)
	if rate <= 0 {
		rate = parseRate(v.RFrameRate)
	}
	return int(math.Round(p.Duration() * rate))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseRate reads rationals such as "30000/1001" as well as plain numbers.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

// FrameIndices chooses which frames to decode. With enough frames the picks
// are evenly spaced, int(i*total/count); with fewer frames than requested
// every frame is used once.
func FrameIndices(total int, count int) []int {
	if total <= 0 || count <= 0 {
		return nil
	}
	if total < count {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, count)
	for i := range out {
		out[i] = int(int64(i) * int64(total) / int64(count))
	}
	return out
}
