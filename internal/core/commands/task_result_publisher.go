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
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// Publisher sends one message. Implemented by *cloud.TopicPublisher.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// TaskResultPublisher announces a successful task by publishing the JSON
// TaskResult from TaskResultParam.
type TaskResultPublisher struct {
	cor.BaseCommand
	publisher Publisher
}

func NewTaskResultPublisher(name string, publisher Publisher) *TaskResultPublisher {
	out := &TaskResultPublisher{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
	out.InputParamName = TaskResultParam
	return out
}

func (c *TaskResultPublisher) Execute(context cor.Context) {
	result := context.Get(c.GetInputParam()).(*model.TaskResult)

	data, err := json.Marshal(result)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to encode task result: %w", err))
		return
	}
	if err := c.publisher.Publish(context.GetContext(), data); err != nil {
		c.Fail(context, fmt.Errorf("failed to publish result for task '%s': %w", result.TaskID, err))
		return
	}
	c.Succeeded(context)
}
