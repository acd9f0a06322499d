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

package commands

import (
	"github.com/jaycherian/gcp-go-video-summary/internal/core/composer"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// ComposeSummary assembles the job result from the transcript, the visual
// analysis and the job's summary options.
type ComposeSummary struct {
	cor.BaseCommand
	composer *composer.Composer
}

func NewComposeSummary(c *composer.Composer) *ComposeSummary {
	out := &ComposeSummary{BaseCommand: *cor.NewBaseCommand(ComposeSummaryName), composer: c}
	out.InputParamName = ParamAnalysis
	out.OutputParamName = ParamResult
	return out
}

func (c *ComposeSummary) Execute(context cor.Context) {
	analysis := context.Get(c.GetInputParam()).(model.VisualAnalysis)
	transcript, _ := context.Get(ParamTranscript).(string)
	job, _ := context.Get(ParamJob).(model.Job)

	style := job.Params.Style
	if style == "" {
		style = composer.DefaultStyle
	}
	format := job.Params.Format
	if format == "" {
		format = composer.DefaultFormat
	}

	summary, provider := c.composer.Compose(context.GetContext(), composer.Input{
		Transcript:  transcript,
		Analysis:    analysis,
		Style:       style,
		Format:      format,
		TargetWords: job.Params.TargetWords,
		Profile:     job.Params.Profile,
	})

	context.Add(c.GetOutputParam(), &model.JobResult{
		AudioTranscription: transcript,
		VisualAnalysis:     analysis,
		FinalSummary:       summary,
		SummaryStyle:       style,
		SummaryFormat:      format,
		SummaryProvider:    provider,
	})
	c.Succeed(context)
}
