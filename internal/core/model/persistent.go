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

// Package model defines the core data structures for the application.
// This file, `persistent.go`, contains the structures that leave the process:
// the per-combination JSON document written to object storage, the task
// result returned to callers and the task ledger row written to BigQuery.
package model

import (
	"fmt"
	"time"
)

// Task status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SegmentMetadata describes one video segment of a combination. Exactly one of
// {Duration, Resolution} or {Error} is set.
type SegmentMetadata struct {
	BlockOrder int      `json:"block_order"`          // Zero-based position in the combination's video sequence.
	URL        string   `json:"url"`                  // The video locator.
	Duration   *float64 `json:"duration,omitempty"`   // Seconds, when the probe succeeded.
	Resolution string   `json:"resolution,omitempty"` // "WxH", when the probe succeeded.
	Error      string   `json:"error,omitempty"`      // Failure detail, when the probe failed.
}

// CombinationDocument is the artifact persisted for every combination. The
// field order here is the key order of the stored JSON.
type CombinationDocument struct {
	TotalDurationSeconds float64           `json:"total_duration_seconds"`
	BackgroundAudioURL   string            `json:"background_audio_url"`
	SelectedVoiceBlock   VoiceSelection    `json:"selected_voice_block"`
	VideoSegments        []SegmentMetadata `json:"video_segments"`
}

// TaskResult is returned to the caller when every combination of a task has
// been persisted.
type TaskResult struct {
	TaskID   string   `json:"task_id"`
	TaskName string   `json:"task_name"`
	Message  string   `json:"message"`
	URLs     []string `json:"urls"`
	Status   string   `json:"status"`
}

// NewTaskResult builds a successful result for the given locations.
func NewTaskResult(taskID string, taskName string, locations []string) *TaskResult {
	if locations == nil {
		locations = []string{}
	}
	return &TaskResult{
		TaskID:   taskID,
		TaskName: taskName,
		Message:  fmt.Sprintf("Task '%s' successfully processed: %d combinations stored.", taskName, len(locations)),
		URLs:     locations,
		Status:   StatusSuccess,
	}
}

// TaskRecord is a row of the task ledger table.
type TaskRecord struct {
	Id               string    `json:"id" bigquery:"id"`
	TaskName         string    `json:"task_name" bigquery:"task_name"`
	Status           string    `json:"status" bigquery:"status"`
	Message          string    `json:"message" bigquery:"message"`
	CombinationCount int       `json:"combination_count" bigquery:"combination_count"`
	Locations        []string  `json:"locations" bigquery:"locations"`
	CreateDate       time.Time `json:"create_date" bigquery:"create_date"`
}

// NewTaskRecord records a successful task.
func NewTaskRecord(result *TaskResult) *TaskRecord {
	return &TaskRecord{
		Id:               result.TaskID,
		TaskName:         result.TaskName,
		Status:           result.Status,
		Message:          result.Message,
		CombinationCount: len(result.URLs),
		Locations:        result.URLs,
		CreateDate:       time.Now(),
	}
}

// NewFailedTaskRecord records a task that did not complete. The message is
// expected to be safe for display.
func NewFailedTaskRecord(taskID string, taskName string, message string) *TaskRecord {
	return &TaskRecord{
		Id:         taskID,
		TaskName:   taskName,
		Status:     StatusFailed,
		Message:    message,
		Locations:  []string{},
		CreateDate: time.Now(),
	}
}

// ArtifactPath is the object path of the document for the combination at the
// zero-based index within a task: "<task_id>/<index+1>.json".
func ArtifactPath(taskID string, index int) string {
	return fmt.Sprintf("%s/%d.json", taskID, index+1)
}
