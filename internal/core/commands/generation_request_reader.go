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
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// GenerationRequestReader decodes the raw Pub/Sub payload in its input param
// into a *model.GenerationRequest. Requests without a task id get a random
// one so the rest of the workflow can always key on it.
//
// Outputs:
//   - GenerationRequestParam and CtxOut: the decoded request.
//   - On failure an *model.InputValidationError is recorded; the message
//     should not be redelivered.
type GenerationRequestReader struct {
	cor.BaseCommand
}

func NewGenerationRequestReader(name string) *GenerationRequestReader {
	return &GenerationRequestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *GenerationRequestReader) Execute(context cor.Context) {
	var payload []byte
	switch in := context.Get(c.GetInputParam()).(type) {
	case string:
		payload = []byte(in)
	case []byte:
		payload = in
	default:
		c.Fail(context, fmt.Errorf("unsupported generation request payload %T", in))
		return
	}

	request := &model.GenerationRequest{}
	if err := json.Unmarshal(payload, request); err != nil {
		c.Fail(context, &model.InputValidationError{Reason: fmt.Sprintf("malformed request: %v", err)})
		return
	}
	if err := request.Validate(); err != nil {
		c.Fail(context, err)
		return
	}
	if request.TaskID == "" {
		request.TaskID = uuid.NewString()
	}

	c.Succeeded(context)
	context.Add(GenerationRequestParam, request)
	context.Add(c.GetOutputParam(), request)
}
