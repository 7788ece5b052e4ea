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
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// Generator runs one task to completion. Implemented by
// *pipeline.CombinationPipeline.
type Generator interface {
	Generate(ctx context.Context, spec *model.TaskSpecification, taskID string) (*model.TaskResult, error)
}

// CombinationGenerator runs the request found under GenerationRequestParam.
// It always leaves a ledger row in TaskRecordParam, successful or not, so a
// following persist command can record failures as well. The result goes to
// TaskResultParam and CtxOut only on success.
type CombinationGenerator struct {
	cor.BaseCommand
	generator Generator
}

func NewCombinationGenerator(name string, generator Generator) *CombinationGenerator {
	out := &CombinationGenerator{BaseCommand: *cor.NewBaseCommand(name), generator: generator}
	out.InputParamName = GenerationRequestParam
	return out
}

func (c *CombinationGenerator) Execute(context cor.Context) {
	request := context.Get(c.GetInputParam()).(*model.GenerationRequest)
	ctx := context.GetContext()

	result, err := c.generator.Generate(ctx, &request.TaskSpecification, request.TaskID)
	if err != nil {
		slog.ErrorContext(ctx, "combination generation failed",
			"task_id", request.TaskID, "class", model.Classify(err).String(), "error", err)
		c.Fail(context, err)
		context.Add(TaskRecordParam, model.NewFailedTaskRecord(request.TaskID, request.TaskName, model.PublicMessage(err)))
		return
	}

	c.Succeeded(context)
	context.Add(TaskResultParam, result)
	context.Add(TaskRecordParam, model.NewTaskRecord(result))
	context.Add(c.GetOutputParam(), result)
}
