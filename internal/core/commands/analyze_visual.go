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
	"github.com/jaycherian/gcp-go-video-summary/internal/core/analyzers"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

// AnalyzeVisual captions every sampled frame and reads its on-screen text.
type AnalyzeVisual struct {
	cor.BaseCommand
	captioner *analyzers.Captioner
	reader    *analyzers.TextExtractor
}

func NewAnalyzeVisual(captioner *analyzers.Captioner, reader *analyzers.TextExtractor) *AnalyzeVisual {
	out := &AnalyzeVisual{BaseCommand: *cor.NewBaseCommand(AnalyzeVisualName), captioner: captioner, reader: reader}
	out.InputParamName = ParamFrames
	out.OutputParamName = ParamAnalysis
	return out
}

func (c *AnalyzeVisual) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]model.Frame)
	context.Add(c.GetOutputParam(), analyzers.AnalyzeVisual(context.GetContext(), frames, c.captioner, c.reader))
	c.Succeed(context)
}
