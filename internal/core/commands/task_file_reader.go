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

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// ObjectReader reads a whole object. Implemented by *cloud.GCSTaskFiles.
type ObjectReader interface {
	ReadObject(ctx context.Context, object *cloud.GCSObject) ([]byte, error)
}

// TaskFileReader loads the task file named by its *cloud.GCSObject input and
// decodes it as a generation request. A file without a task id is given one
// derived from its object name, so redeliveries of the same notification
// write to the same prefix.
type TaskFileReader struct {
	cor.BaseCommand
	reader ObjectReader
}

func NewTaskFileReader(name string, reader ObjectReader) *TaskFileReader {
	return &TaskFileReader{BaseCommand: *cor.NewBaseCommand(name), reader: reader}
}

func (c *TaskFileReader) Execute(context cor.Context) {
	object := context.Get(c.GetInputParam()).(*cloud.GCSObject)

	data, err := c.reader.ReadObject(context.GetContext(), object)
	if err != nil {
		c.Fail(context, err)
		return
	}

	request := &model.GenerationRequest{}
	if err := json.Unmarshal(data, request); err != nil {
		c.Fail(context, &model.InputValidationError{Reason: fmt.Sprintf("malformed task file %s: %v", object, err)})
		return
	}
	if err := request.Validate(); err != nil {
		c.Fail(context, err)
		return
	}
	if request.TaskID == "" {
		request.TaskID = TaskIDForObject(object)
	}

	c.Succeeded(context)
	context.Add(GenerationRequestParam, request)
	context.Add(c.GetOutputParam(), request)
}

// TaskIDForObject is the name-based (SHA-1) UUID of the object's gs:// URI.
func TaskIDForObject(object *cloud.GCSObject) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(object.String())).String()
}
