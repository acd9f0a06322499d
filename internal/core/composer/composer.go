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

// Package composer writes the final summary of a video. It renders a prompt
// from the transcript, the frame captions, the on-screen text and the user's
// profile, then asks each configured provider in turn. If every provider
// fails the summary is assembled from the inputs directly, so composing
// never fails.
package composer

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FallbackProvider names summaries that were built without a model.
const FallbackProvider = "fallback"

// Composer tries its generators in order; the first non-empty answer wins.
type Composer struct {
	styles     *Styles
	generators []Generator

	attempts  metric.Int64Counter
	failures  metric.Int64Counter
	fallbacks metric.Int64Counter
}

func NewComposer(styles *Styles, generators ...Generator) *Composer {
	meter := otel.Meter(cor.MeterName)
	attempts, _ := meter.Int64Counter("summary.provider.attempts")
	failures, _ := meter.Int64Counter("summary.provider.failures")
	fallbacks, _ := meter.Int64Counter("summary.fallbacks")
	return &Composer{
		styles:     styles,
		generators: generators,
		attempts:   attempts,
		failures:   failures,
		fallbacks:  fallbacks,
	}
}

// Providers lists the generator names in the order they are tried.
func (c *Composer) Providers() []string {
	out := make([]string, len(c.generators))
	for i, g := range c.generators {
		out[i] = g.Name()
	}
	return out
}

// Compose returns the summary and the name of the provider that wrote it.
func (c *Composer) Compose(ctx context.Context, in Input) (summary string, provider string) {
	style := c.styles.Resolve(in.Style)
	prompt, err := c.styles.Prompt(style, in.Format, BuildContext(in), in.TargetWords)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render summary prompt", "style", style, "error", err)
	} else {
		req := GenerationRequest{
			Style:            style,
			StyleDescription: StyleDescription(style),
			Prompt:           prompt,
			TargetWords:      in.TargetWords,
		}
		for _, g := range c.generators {
			if ctx.Err() != nil {
				break
			}
			attrs := metric.WithAttributes(attribute.String("provider", g.Name()))
			c.attempts.Add(ctx, 1, attrs)
			text, err := g.Generate(ctx, req)
			if err != nil || text == "" {
				c.failures.Add(ctx, 1, attrs)
				slog.WarnContext(ctx, "summary provider failed", "provider", g.Name(), "error", err)
				continue
			}
			slog.InfoContext(ctx, "summary generated", "provider", g.Name())
			return Truncate(text, in.TargetWords), g.Name()
		}
	}

	c.fallbacks.Add(ctx, 1)
	slog.WarnContext(ctx, "using fallback summary")
	return Truncate(Fallback(in.Transcript, in.Scenes()), in.TargetWords), FallbackProvider
}
