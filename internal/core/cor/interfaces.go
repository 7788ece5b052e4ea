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

// Package cor is a small chain-of-responsibility toolkit. A workflow is a
// Chain of Commands that share one Context; commands read their input from
// the context, write their output back into it and record failures with
// AddError instead of returning them.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn holds the primary input of the command about to run. The chain
	// fills it from the previous command's CtxOut.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its primary output for the next one.
	CtxOut = "__OUT__"
)

// Context is the state shared by every command of a chain run.
type Context interface {
	// SetContext replaces the Go context used for cancellation and tracing.
	SetContext(ctx context.Context)
	GetContext() context.Context

	// Add stores value under key and returns the context for chaining.
	Add(key string, value any) Context
	Get(key string) any
	Remove(key string)

	// AddError records err under key, normally the failing command's name.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool
	// Err joins every recorded error, ordered by key. Nil when none.
	Err() error
}

// Executable is anything that can run against a Context.
type Executable interface {
	Execute(ctx Context)
}

// Command is one named, instrumented step of a workflow.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable reports whether the context holds what Execute needs.
	// Commands that are not executable are skipped by the chain.
	IsExecutable(ctx Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs its commands in insertion order. A Chain is itself a Command so
// chains nest.
type Chain interface {
	Command

	// ContinueOnFailure keeps the chain going after a command records an
	// error. Later commands still have to pass IsExecutable.
	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain
}
