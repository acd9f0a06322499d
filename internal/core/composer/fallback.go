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
)

const fallbackTranscriptRunes = 200

// Fallback builds a summary without any model. It is never empty.
func Fallback(transcript string, scenes []string) string {
	subject := "visual content"
	if transcript != "" {
		runes := []rune(transcript)
		subject = string(runes[:min(len(runes), fallbackTranscriptRunes)])
	}
	summary := "This video contains: " + subject + ". "
	if len(scenes) > 0 {
		summary += "Key scenes include: " + strings.Join(scenes[:min(len(scenes), 3)], ", ") + "."
	}
	return summary
}

// Truncate shortens summary to targetWords words followed by "...". A
// summary already within the target, or a non-positive target, leaves the
// text untouched; nothing is ever padded.
func Truncate(summary string, targetWords int) string {
	if targetWords <= 0 {
		return summary
	}
	words := strings.Fields(summary)
	if len(words) <= targetWords {
		return summary
	}
	return strings.Join(words[:targetWords], " ") + "..."
}
