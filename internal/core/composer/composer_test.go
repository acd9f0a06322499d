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

package composer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/composer"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	name string
	text string
	err  error
	seen []composer.GenerationRequest
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(_ context.Context, req composer.GenerationRequest) (string, error) {
	f.seen = append(f.seen, req)
	return f.text, f.err
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

func newStyles(t *testing.T) *composer.Styles {
	t.Helper()
	styles, err := composer.NewStyles(nil)
	require.NoError(t, err)
	return styles
}

func TestTruncate(t *testing.T) {
	out := composer.Truncate(words(500), 50)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Len(t, strings.Fields(strings.TrimSuffix(out, "...")), 50)

	short := "only a few words here"
	assert.Equal(t, short, composer.Truncate(short, 5000))
	assert.Equal(t, short, composer.Truncate(short, 0))
	assert.Equal(t, short, composer.Truncate(short, 5))
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "This video contains: visual content. ", composer.Fallback("", nil))
	assert.Equal(t, "This video contains: hi there. Key scenes include: a, b, c.",
		composer.Fallback("hi there", []string{"a", "b", "c", "d"}))

	long := strings.Repeat("é", 300)
	out := composer.Fallback(long, nil)
	assert.Equal(t, "This video contains: "+strings.Repeat("é", 200)+". ", out)
}

func TestBuiltinStyleSet(t *testing.T) {
	styles := newStyles(t)
	builtin := []string{"default", "professional", "commercial", "educational", "casual", "technical"}
	seen := map[string]bool{}
	for _, style := range builtin {
		assert.Equal(t, style, styles.Resolve(style))
		seen[composer.StyleDescription(style)] = true
	}
	assert.Len(t, seen, len(builtin))
	assert.Equal(t, composer.DefaultStyle, styles.Resolve("executive"))
}

func TestStylesResolveUnknown(t *testing.T) {
	styles := newStyles(t)
	assert.Equal(t, "commercial", styles.Resolve("commercial"))
	assert.Equal(t, composer.DefaultStyle, styles.Resolve("foo"))
	assert.Equal(t, composer.StyleDescription("default"), composer.StyleDescription("foo"))
	assert.Equal(t, composer.FormatInstruction("paragraph"), composer.FormatInstruction("poem"))

	unknown, err := styles.Prompt("foo", "paragraph", "CTX", 0)
	require.NoError(t, err)
	def, err := styles.Prompt("default", "paragraph", "CTX", 0)
	require.NoError(t, err)
	assert.Equal(t, def, unknown)
}

func TestPromptContents(t *testing.T) {
	prompt, err := newStyles(t).Prompt("technical", "bullet", "AUDIO TRANSCRIPTION:\nhello", 120)
	require.NoError(t, err)
	assert.Contains(t, prompt, "approximately 120 words")
	assert.Contains(t, prompt, composer.FormatInstruction("bullet"))
	assert.Contains(t, prompt, "VIDEO INFORMATION:\nAUDIO TRANSCRIPTION:\nhello")
	assert.True(t, strings.HasSuffix(prompt, "Write a technical summary:"))

	noTarget, err := newStyles(t).Prompt("technical", "bullet", "x", 0)
	require.NoError(t, err)
	assert.NotContains(t, noTarget, "approximately")
}

func TestStyleOverrides(t *testing.T) {
	styles, err := composer.NewStyles(map[string]string{"Haiku": "Haiku about: {{.Context}}"})
	require.NoError(t, err)
	out, err := styles.Prompt("haiku", "", "cats", 0)
	require.NoError(t, err)
	assert.Equal(t, "Haiku about: cats", out)

	_, err = composer.NewStyles(map[string]string{"bad": "{{.Context"})
	assert.Error(t, err)
}

func TestBuildContext(t *testing.T) {
	in := composer.Input{
		Transcript: "we talk about go",
		Analysis: model.VisualAnalysis{
			FrameCaptions: []string{"Frame 1: a desk | On-screen text: GO", "unlabelled", "Frame 2: a screen"},
			OCRTexts:      []string{"GO", "GO", "CODE"},
		},
		Profile: &model.UserProfile{
			Expertise:          []string{"backend"},
			SummaryPreferences: &model.SummaryPreferences{Focus: []string{"technical"}},
		},
	}
	ctx := composer.BuildContext(in)
	assert.Equal(t, "AUDIO TRANSCRIPTION:\nwe talk about go\n\n"+
		"VISUAL CONTENT (Key Scenes):\na desk\na screen\n\n"+
		"ON-SCREEN TEXT:\nGO, CODE\n\n"+
		"USER PROFILE:\nExpertise: backend\nPreferences: Length=medium, Focus=technical\n", ctx)

	in.Transcript = model.TranscriptNoContent
	in.Profile = &model.UserProfile{}
	ctx = composer.BuildContext(in)
	assert.NotContains(t, ctx, "AUDIO TRANSCRIPTION")
	assert.True(t, strings.HasSuffix(ctx, "USER PROFILE:\n"))
}

func TestComposeFirstProviderWins(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "  the summary  "}
	secondary := &fakeGenerator{name: "secondary", text: "unused"}
	c := composer.NewComposer(newStyles(t), primary, secondary)

	summary, provider := c.Compose(context.Background(), composer.Input{Style: "casual", TargetWords: 10})
	assert.Equal(t, "  the summary  ", summary)
	assert.Equal(t, "primary", provider)
	require.Len(t, primary.seen, 1)
	assert.Empty(t, secondary.seen)
	assert.Equal(t, "casual", primary.seen[0].Style)
	assert.Equal(t, composer.StyleDescription("casual"), primary.seen[0].StyleDescription)
	assert.Equal(t, 10, primary.seen[0].TargetWords)
	assert.Equal(t, []string{"primary", "secondary"}, c.Providers())
}

func TestComposeFallsThrough(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: errors.New("rate limited")}
	secondary := &fakeGenerator{name: "secondary", text: words(500)}
	c := composer.NewComposer(newStyles(t), primary, secondary)

	summary, provider := c.Compose(context.Background(), composer.Input{Style: "foo", TargetWords: 50})
	assert.Equal(t, "secondary", provider)
	assert.Len(t, strings.Fields(strings.TrimSuffix(summary, "...")), 50)
	assert.Equal(t, composer.DefaultStyle, secondary.seen[0].Style)
}

func TestComposeAllProvidersFail(t *testing.T) {
	c := composer.NewComposer(newStyles(t),
		&fakeGenerator{name: "primary", err: errors.New("down")},
		&fakeGenerator{name: "secondary", text: ""})

	in := composer.Input{
		Transcript: "hello",
		Analysis:   model.VisualAnalysis{FrameCaptions: []string{"Frame 1: a cat"}},
	}
	summary, provider := c.Compose(context.Background(), in)
	assert.Equal(t, composer.FallbackProvider, provider)
	assert.Equal(t, "This video contains: hello. Key scenes include: a cat.", summary)

	again, _ := c.Compose(context.Background(), in)
	assert.Equal(t, summary, again)

	bare, provider := composer.NewComposer(newStyles(t)).Compose(context.Background(), composer.Input{})
	assert.Equal(t, composer.FallbackProvider, provider)
	assert.NotEmpty(t, bare)
}
