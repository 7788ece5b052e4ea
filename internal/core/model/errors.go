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
// This file, `errors.go`, defines the error taxonomy shared by the generation
// pipeline and its callers:
//
//   - InputValidationError: the task specification cannot be processed. Raised
//     before any side effect; surfaced to clients as a client error.
//   - ProbeError: a single video locator could not be probed. Recovered locally
//     and recorded in the segment metadata; never aborts a run on its own.
//   - StorageError: a document could not be persisted. Fatal to the run;
//     surfaced as a service-unavailable error.
//   - UnclassifiedError: anything else. Fatal to the run; surfaced as an
//     internal error with a redacted message.
package model

import (
	"errors"
	"fmt"
)

// ErrNoVideoStream is the probe failure recorded when a media resource
// carries no stream whose codec type is "video".
var ErrNoVideoStream = errors.New("no video stream found")

// ErrorClass groups pipeline errors by how callers should report them.
type ErrorClass int

const (
	ClassInternal    ErrorClass = iota // Unexpected failure; report as an internal error.
	ClassInput                         // Malformed or unusable input; report as a client error.
	ClassUnavailable                   // A storage or probe capability failed; report as service unavailable.
)

// String returns a short, log-friendly label for the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// InputValidationError reports a task specification that cannot be processed.
type InputValidationError struct {
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid task specification: %s", e.Reason)
}

// ProbeError reports that a media locator could not be inspected.
type ProbeError struct {
	Locator   string // The locator that was probed.
	Detail    string // Diagnostic text, typically the probing tool's stderr.
	Transient bool   // True when the failure was a timeout and a retry may succeed.
	Err       error  // The underlying cause, when there is one.
}

func (e *ProbeError) Error() string {
	return e.Detail
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// StorageError reports that a document could not be persisted at Path.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PublicMessage reports the failure without the backend's detail.
func (e *StorageError) PublicMessage() string {
	return fmt.Sprintf("storage unavailable: could not store %s", e.Path)
}

// UnclassifiedError wraps any failure that does not belong to another class.
type UnclassifiedError struct {
	Err error
}

func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.Err)
}

func (e *UnclassifiedError) Unwrap() error {
	return e.Err
}

// PublicMessage is the text that may be shown to callers. It never carries
// the underlying error detail.
func (e *UnclassifiedError) PublicMessage() string {
	return "an internal error occurred while generating combinations"
}

// Classify maps an error returned by the pipeline onto its ErrorClass.
func Classify(err error) ErrorClass {
	var inputErr *InputValidationError
	if errors.As(err, &inputErr) {
		return ClassInput
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return ClassUnavailable
	}
	return ClassInternal
}

// PublicMessage is the text that may be shown to callers for err. Input
// failures are reported verbatim. Storage failures name only the document
// path since the backend's message can carry account and bucket details.
// Anything else is redacted.
func PublicMessage(err error) string {
	switch Classify(err) {
	case ClassInput:
		return err.Error()
	case ClassUnavailable:
		var storageErr *StorageError
		errors.As(err, &storageErr)
		return storageErr.PublicMessage()
	default:
		return (&UnclassifiedError{}).PublicMessage()
	}
}
