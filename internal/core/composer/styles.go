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
	"fmt"
	"strings"
	"text/template"
)

const (
	DefaultStyle  = "default"
	DefaultFormat = "paragraph"
)

var styleDescriptions = map[string]string{
	"default":      "Standard comprehensive summary",
	"professional": "Formal, business-oriented summary",
	"commercial":   "Marketing-focused advertisement summary",
	"educational":  "Academic-style summary for learning",
	"casual":       "Relaxed, conversational summary",
	"technical":    "Detailed technical summary",
}

var formatInstructions = map[string]string{
	"paragraph":  "Write a flowing narrative summary in paragraph form.",
	"bullet":     "Write the summary as a bulleted list with clear, concise points.",
	"timeline":   "Write the summary in chronological order, organized by time segments.",
	"chapters":   "Divide the summary into clear chapters or sections with headings.",
	"highlights": "Write only the key highlights and most important moments, be very concise.",
}

// Templates receive promptData. LengthInstruction is either empty or starts
// and ends with a space, so it sits directly after the first sentence.
var builtinStyles = map[string]string{
	"default": `You are an expert video summarizer. Based on the following information extracted from a video, write a comprehensive, human-readable summary.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Be written like a professional article or essay summary
2. Flow naturally and be easy to read
3. Combine information from audio, visual content, and on-screen text seamlessly
4. Highlight the main topics, themes, and key information
5. Be informative and engaging
6. If there's no audio, focus on the visual content and on-screen text
7. Write in complete sentences with proper grammar

VIDEO INFORMATION:
{{.Context}}

Write a comprehensive summary:`,

	"professional": `You are a professional business analyst. Based on the following video information, write a formal, professional summary suitable for business reports or presentations.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Use formal, professional language
2. Focus on key business insights, objectives, and outcomes
3. Be concise and structured
4. Highlight actionable items or important decisions
5. Maintain a professional tone throughout

VIDEO INFORMATION:
{{.Context}}

Write a professional business summary:`,

	"commercial": `You are a marketing copywriter. Based on the following video information, write an engaging commercial/advertisement summary that highlights key selling points.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Be persuasive and engaging
2. Highlight benefits, features, and value propositions
3. Use compelling language that captures attention
4. Focus on what makes the content/product/service appealing

VIDEO INFORMATION:
{{.Context}}

Write a commercial advertisement summary:`,

	"educational": `You are an educational content specialist. Based on the following video information, write an academic-style summary focusing on learning outcomes.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Focus on key concepts, learning objectives, and educational value
2. Use clear, instructional language
3. Highlight important facts, theories, or information presented
4. Be suitable for study notes or educational materials

VIDEO INFORMATION:
{{.Context}}

Write an educational summary:`,

	"casual": `You are a friendly content creator. Based on the following video information, write a casual, conversational summary in everyday language.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Use relaxed, conversational tone
2. Be easy to read and understand
3. Feel like a friend explaining the video to you
4. Use natural, everyday language

VIDEO INFORMATION:
{{.Context}}

Write a casual, friendly summary:`,

	"technical": `You are a technical documentation specialist. Based on the following video information, write a detailed technical summary with specific terminology.{{.LengthInstruction}}

{{.FormatInstruction}}

The summary should:
1. Use precise technical language and terminology
2. Include specific details, specifications, and technical information
3. Be comprehensive and detailed
4. Focus on technical aspects, processes, and methodologies

VIDEO INFORMATION:
{{.Context}}

Write a technical summary:`,
}

type promptData struct {
	LengthInstruction string
	FormatInstruction string
	Context           string
}

// Styles renders summary prompts. Any style it does not know renders with
// the default template.
type Styles struct {
	templates map[string]*template.Template
}

// NewStyles parses the built-in templates, replacing or adding any given in
// overrides (style name to template text).
func NewStyles(overrides map[string]string) (*Styles, error) {
	s := &Styles{templates: make(map[string]*template.Template)}
	sources := make(map[string]string, len(builtinStyles)+len(overrides))
	for name, text := range builtinStyles {
		sources[name] = text
	}
	for name, text := range overrides {
		if strings.TrimSpace(text) != "" {
			sources[strings.ToLower(name)] = text
		}
	}
	for name, text := range sources {
		t, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid template for style %q: %w", name, err)
		}
		s.templates[name] = t
	}
	return s, nil
}

// Resolve maps a requested style to one that has a template.
func (s *Styles) Resolve(style string) string {
	if _, ok := s.templates[style]; ok {
		return style
	}
	return DefaultStyle
}

// Prompt renders the prompt for a style and format around the given context.
func (s *Styles) Prompt(style string, format string, context string, targetWords int) (string, error) {
	var sb strings.Builder
	err := s.templates[s.Resolve(style)].Execute(&sb, promptData{
		LengthInstruction: LengthInstruction(targetWords),
		FormatInstruction: FormatInstruction(format),
		Context:           context,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// StyleDescription is the one-line description of a style used in the
// system message.
func StyleDescription(style string) string {
	if d, ok := styleDescriptions[style]; ok {
		return d
	}
	return styleDescriptions[DefaultStyle]
}

// FormatInstruction returns the instruction for a format, paragraph if the
// format is unknown.
func FormatInstruction(format string) string {
	if f, ok := formatInstructions[format]; ok {
		return f
	}
	return formatInstructions[DefaultFormat]
}

func LengthInstruction(targetWords int) string {
	if targetWords <= 0 {
		return ""
	}
	return fmt.Sprintf(" The summary must be approximately %d words. ", targetWords)
}
