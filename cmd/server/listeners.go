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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/workflow"
)

// SetupListeners attaches the workflows to the configured subscriptions and
// starts receiving. It returns the listeners that were started.
func SetupListeners(ctx context.Context, state *StateManager) []*cloud.PubSubListener {
	var recorder commands.Recorder
	if state.taskService != nil {
		recorder = state.taskService
	}
	var publisher commands.Publisher
	if p, ok := state.cloud.Publishers[cloud.ResultsTopic]; ok {
		publisher = p
	}

	started := make([]*cloud.PubSubListener, 0)
	if listener, ok := state.cloud.PubSubListeners[cloud.GenerationSubscription]; ok {
		listener.SetCommand(workflow.NewCombinationGenerationWorkflow(state.pipeline, recorder, publisher))
		listener.Listen(ctx)
		started = append(started, listener)
	}
	if listener, ok := state.cloud.PubSubListeners[cloud.TaskFileSubscription]; ok {
		if state.taskFiles == nil {
			slog.Warn("task file subscription configured without a storage client; not listening")
		} else {
			listener.SetCommand(workflow.NewTaskFileWorkflow(state.taskFiles, state.pipeline, recorder, publisher))
			listener.Listen(ctx)
			started = append(started, listener)
		}
	}
	for name := range state.cloud.PubSubListeners {
		if name != cloud.GenerationSubscription && name != cloud.TaskFileSubscription {
			slog.Warn("ignoring unknown subscription", "name", name)
		}
	}
	return started
}
