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
// This file, `task.go`, holds the inbound task specification: the pools of
// video, audio and voice assets a caller submits for combination generation,
// together with the validation rules applied before a task enters the pipeline.
//
// Group mappings (`video_blocks`, `audio_blocks`, `voice_blocks`) arrive as JSON
// objects whose key order is meaningful: the order of the video groups is the
// order of the segments in every generated combination. Go maps do not keep
// insertion order, so the groups are decoded into ordered slices instead.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all specification checks. A validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// VoiceSelection is one voice block a combination can be narrated with.
type VoiceSelection struct {
	Text  []string `json:"text" validate:"required,min=1"` // The lines of text to be voiced, in order.
	Voice string   `json:"voice" validate:"required"`      // The identifier of the voice to use.
}

// LocatorGroup is a named, ordered list of media locators (absolute URLs).
type LocatorGroup struct {
	Name     string
	Locators []string `validate:"dive,url"`
}

// VoiceGroup is a named, ordered list of voice selections.
type VoiceGroup struct {
	Name   string
	Voices []VoiceSelection `validate:"dive"`
}

// LocatorGroups keeps locator groups in the order they were declared.
type LocatorGroups []LocatorGroup

// VoiceGroups keeps voice groups in the order they were declared.
type VoiceGroups []VoiceGroup

// TaskSpecification is the declarative description of a generation task.
type TaskSpecification struct {
	TaskName    string        `json:"task_name" validate:"required"`
	VideoBlocks LocatorGroups `json:"video_blocks" validate:"dive"`
	AudioBlocks LocatorGroups `json:"audio_blocks" validate:"dive"`
	VoiceBlocks VoiceGroups   `json:"voice_blocks" validate:"dive"`
}

// GenerationRequest is the payload accepted by the asynchronous (Pub/Sub)
// entry point. It is a task specification with an optional caller-supplied
// task identifier.
type GenerationRequest struct {
	TaskID string `json:"task_id,omitempty"`
	TaskSpecification
}

// Validate checks the well-formedness of the specification: a non-empty task
// name, absolute URLs for every locator and complete voice selections.
// Empty audio or voice pools are not checked here; that is the combination
// builder's responsibility.
//
// Outputs:
//   - error: nil when the specification is well formed, otherwise an
//     *InputValidationError describing every failing field.
func (t *TaskSpecification) Validate() error {
	if t == nil {
		return &InputValidationError{Reason: "task specification is missing"}
	}
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return &InputValidationError{Reason: err.Error()}
	}
	reasons := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		reasons = append(reasons, fmt.Sprintf("%s failed '%s' validation", fe.Namespace(), fe.Tag()))
	}
	return &InputValidationError{Reason: strings.Join(reasons, "; ")}
}

// Flatten concatenates every group's locators, group order first and then
// the order within each group.
func (g LocatorGroups) Flatten() []string {
	out := make([]string, 0)
	for _, group := range g {
		out = append(out, group.Locators...)
	}
	return out
}

// Factors returns one locator list per group, in group order. The returned
// lists are copies and may be retained by the caller.
func (g LocatorGroups) Factors() [][]string {
	out := make([][]string, 0, len(g))
	for _, group := range g {
		out = append(out, slices.Clone(group.Locators))
	}
	return out
}

// Flatten concatenates every group's voice selections in declared order.
func (g VoiceGroups) Flatten() []VoiceSelection {
	out := make([]VoiceSelection, 0)
	for _, group := range g {
		out = append(out, group.Voices...)
	}
	return out
}
