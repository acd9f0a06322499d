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

// Frame is a single still sampled from a video and written to disk.
type Frame struct {
	Index int    // position of the frame in the source video stream
	Path  string // JPEG file holding the decoded frame
}

// Audio is the decoded mono waveform of a video, stored as 16-bit PCM WAV.
type Audio struct {
	Path       string
	SampleRate int
	Samples    int64
}

// IsEmpty reports whether there is no waveform to transcribe.
func (a *Audio) IsEmpty() bool {
	return a == nil || a.Samples <= 0
}
