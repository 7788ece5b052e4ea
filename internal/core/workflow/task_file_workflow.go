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

package workflow

import (
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
)

// TaskFileWorkflow handles Cloud Storage notifications for task files
// uploaded to an input bucket:
//
//	trigger reader → task file reader → combination generator → ledger persist → result publisher
//
// Failure handling matches CombinationGenerationWorkflow.
type TaskFileWorkflow struct {
	cor.BaseCommand
	objects   commands.ObjectReader
	generator commands.Generator
	recorder  commands.Recorder
	publisher commands.Publisher
	chain     cor.Chain
}

func (w *TaskFileWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *TaskFileWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *TaskFileWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName()).ContinueOnFailure(true)
	out.AddCommand(commands.NewTaskFileTriggerReader("task-file-trigger-reader"))
	out.AddCommand(commands.NewTaskFileReader("task-file-reader", w.objects))
	addGenerationSteps(out, w.generator, w.recorder, w.publisher)
	w.chain = out
}

func NewTaskFileWorkflow(
	objects commands.ObjectReader,
	generator commands.Generator,
	recorder commands.Recorder,
	publisher commands.Publisher) *TaskFileWorkflow {
	out := &TaskFileWorkflow{
		BaseCommand: *cor.NewBaseCommand("task-file-workflow"),
		objects:     objects,
		generator:   generator,
		recorder:    recorder,
		publisher:   publisher,
	}
	out.initializeChain()
	return out
}
