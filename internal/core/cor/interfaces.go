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

// Package cor implements a small chain-of-responsibility framework used to run
// the stages of a summary job. A Chain is itself a Command, so chains nest.
//
// Commands exchange data through a shared Context. By convention a command
// reads its primary input from CtxIn and writes its primary output to CtxOut;
// the chain moves CtxOut to CtxIn between commands. Named values that several
// stages need (frames, audio, transcript) are stored under their own keys.
//
// Each command carries an OpenTelemetry tracer and success/error counters. The
// chain opens one span per command and notifies an optional StageListener
// before each command runs, which is how job progress is reported.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn is the default key for the primary input of a command.
	CtxIn = "__IN__"
	// CtxOut is the default key for the primary output of a command.
	CtxOut = "__OUT__"
)

// Context is the shared state passed through a chain. Implementations must be
// safe for concurrent use since a command may fan work out to goroutines.
type Context interface {
	SetContext(context context.Context)
	GetContext() context.Context

	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records a failure keyed by the command that produced it.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool

	// AddTempFile and AddTempDir register scratch paths removed by Close.
	AddTempFile(file string)
	AddTempDir(dir string)
	GetTempFiles() []string

	// Close removes every registered scratch path. Defer it right after the
	// context is created.
	Close()
}

type Executable interface {
	Execute(context Context)
}

type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable is checked by the chain before Execute is called.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// StageListener is notified by a chain right before a command executes.
type StageListener func(ctx Context, command Command)

type Chain interface {
	Command

	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain

	// OnStage installs the listener called before each command runs.
	OnStage(listener StageListener) Chain
}
