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

// Package commands provides the concrete cor.Command implementations used by
// the workflows. The summary commands share state through the keys below
// rather than through CtxIn/CtxOut, since most stages need more than the
// output of the stage right before them.
package commands

// Context keys for the summary pipeline.
const (
	ParamJob        = "__JOB__"        // model.Job snapshot taken when the worker started
	ParamVideoPath  = "__VIDEO__"      // string, local path of the source video
	ParamScratchDir = "__SCRATCH__"    // string, per-job directory removed on Close
	ParamFrames     = "__FRAMES__"     // []model.Frame
	ParamAudio      = "__AUDIO__"      // *model.Audio, absent when the video has no usable audio
	ParamTranscript = "__TRANSCRIPT__" // string
	ParamAnalysis   = "__ANALYSIS__"   // model.VisualAnalysis
	ParamResult     = "__RESULT__"     // *model.JobResult
)

// Command names. The summary workflow maps these to progress stages.
const (
	SampleFramesName   = "sample-frames"
	ExtractAudioName   = "extract-audio"
	TranscribeName     = "transcribe-audio"
	AnalyzeVisualName  = "analyze-visual"
	ComposeSummaryName = "compose-summary"
	ArchiveResultName  = "archive-result"
)
