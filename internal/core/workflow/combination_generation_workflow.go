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

// Package workflow assembles cor chains for the asynchronous entry points.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
)

// CombinationGenerationWorkflow handles one generation request message:
//
//	request reader → combination generator → ledger persist → result publisher
//
// The chain keeps going after a failure so the ledger persist still records
// failed tasks; the publisher only runs when a result exists. The ledger and
// publisher steps are left out when their collaborator is nil.
type CombinationGenerationWorkflow struct {
	cor.BaseCommand
	generator commands.Generator
	recorder  commands.Recorder
	publisher commands.Publisher
	chain     cor.Chain
}

func (w *CombinationGenerationWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// IsExecutable defers to the chain, which only needs a Go context.
func (w *CombinationGenerationWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *CombinationGenerationWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName()).ContinueOnFailure(true)
	out.AddCommand(commands.NewGenerationRequestReader("generation-request-reader"))
	addGenerationSteps(out, w.generator, w.recorder, w.publisher)
	w.chain = out
}

// addGenerationSteps appends the steps that follow a decoded request.
func addGenerationSteps(chain cor.Chain, generator commands.Generator, recorder commands.Recorder, publisher commands.Publisher) {
	chain.AddCommand(commands.NewCombinationGenerator("combination-generator", generator))
	if recorder != nil {
		chain.AddCommand(commands.NewTaskPersistToBigQuery("task-ledger-persist", recorder))
	}
	if publisher != nil {
		chain.AddCommand(commands.NewTaskResultPublisher("task-result-publisher", publisher))
	}
}

func NewCombinationGenerationWorkflow(
	generator commands.Generator,
	recorder commands.Recorder,
	publisher commands.Publisher) *CombinationGenerationWorkflow {
	out := &CombinationGenerationWorkflow{
		BaseCommand: *cor.NewBaseCommand("combination-generation-workflow"),
		generator:   generator,
		recorder:    recorder,
		publisher:   publisher,
	}
	out.initializeChain()
	return out
}
