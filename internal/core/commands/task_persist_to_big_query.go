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
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// Recorder writes a task ledger row. Implemented by *services.TaskService.
type Recorder interface {
	Record(ctx context.Context, record *model.TaskRecord) error
}

// TaskPersistToBigQuery appends the row found under TaskRecordParam to the
// task ledger. It runs whether or not generation succeeded.
type TaskPersistToBigQuery struct {
	cor.BaseCommand
	recorder Recorder
}

func NewTaskPersistToBigQuery(name string, recorder Recorder) *TaskPersistToBigQuery {
	out := &TaskPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), recorder: recorder}
	out.InputParamName = TaskRecordParam
	return out
}

func (c *TaskPersistToBigQuery) Execute(context cor.Context) {
	record := context.Get(c.GetInputParam()).(*model.TaskRecord)
	ctx := context.GetContext()

	if err := c.recorder.Record(ctx, record); err != nil {
		slog.ErrorContext(ctx, "failed to record task", "task_id", record.Id, "error", err)
		c.Fail(context, fmt.Errorf("ledger insert failed for task '%s': %w", record.Id, err))
		return
	}
	c.Succeeded(context)
	slog.InfoContext(ctx, "task recorded", "task_id", record.Id, "status", record.Status)
}
