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
	"strings"

	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// TaskFileTriggerReader turns a Cloud Storage notification into the
// *cloud.GCSObject of the task file that was uploaded. Objects that are not
// ".json" files are rejected as input errors.
type TaskFileTriggerReader struct {
	cor.BaseCommand
}

func NewTaskFileTriggerReader(name string) *TaskFileTriggerReader {
	return &TaskFileTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *TaskFileTriggerReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		c.Fail(context, fmt.Errorf("unsupported notification payload %T", context.Get(c.GetInputParam())))
		return
	}

	var notification cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &notification); err != nil {
		c.Fail(context, &model.InputValidationError{Reason: fmt.Sprintf("malformed storage notification: %v", err)})
		return
	}
	if notification.Bucket == "" || notification.Name == "" {
		c.Fail(context, &model.InputValidationError{Reason: "storage notification without bucket or object name"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(notification.Name), ".json") {
		c.Fail(context, &model.InputValidationError{Reason: fmt.Sprintf("gs://%s/%s is not a task file", notification.Bucket, notification.Name)})
		return
	}

	c.Succeeded(context)
	object := &cloud.GCSObject{Bucket: notification.Bucket, Name: notification.Name, MIMEType: notification.ContentType}
	context.Add(c.GetOutputParam(), object)
}
