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

// Package pipeline orchestrates combination generation for one task:
// CombinationBuilder → MetadataComposer → StorageSink, one combination at a
// time.
//
// Logic Flow:
//  1. The builder validates the task's pools and hands back a lazy sequence.
//     A validation failure ends the run before any upload.
//  2. Each combination (zero-based index i) is composed into a document and
//     stored at "<task_id>/<i+1>.json". The next combination is not requested
//     until the current one is stored, so at most one combination and one
//     document are resident at a time.
//  3. The locations are collected in combination order and returned only when
//     every combination was stored.
//
// Failure policy: a storage failure aborts the run immediately and is returned
// as a *model.StorageError; anything unexpected is returned as a
// *model.UnclassifiedError. Documents stored before the failure stay in the
// store; there is no compensating delete, and no partial result is returned.
// The pipeline does not retry; probe and storage clients apply their own
// timeout and retry policies.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/combination"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/storage"
)

const instrumentationName = "github.com/jaycherian/gcp-go-media-combinations/pipeline"

// CombinationSource expands a task specification into combinations.
type CombinationSource interface {
	Build(spec *model.TaskSpecification) (iter.Seq[model.Combination], error)
}

// DocumentComposer describes a combination as a persisted document.
type DocumentComposer interface {
	Compose(ctx context.Context, combination model.Combination) (model.CombinationDocument, error)
}

// CombinationPipeline runs tasks end to end. It keeps no per-task state and
// can serve concurrent tasks as long as its collaborators can.
type CombinationPipeline struct {
	source   CombinationSource
	composer DocumentComposer
	sink     storage.Sink

	tracer         trace.Tracer
	storedCounter  metric.Int64Counter
	failureCounter metric.Int64Counter
}

// NewCombinationPipeline wires the three stages together.
//
// Inputs:
//   - source: Produces the combinations of a task.
//   - composer: Turns a combination into its document.
//   - sink: Persists documents.
//
// Outputs:
//   - *CombinationPipeline: A ready-to-use pipeline.
func NewCombinationPipeline(source CombinationSource, composer DocumentComposer, sink storage.Sink) *CombinationPipeline {
	meter := otel.Meter(instrumentationName)
	storedCounter, err := meter.Int64Counter("combination-pipeline.counter.stored")
	if err != nil {
		slog.Warn("failed to create stored counter", "error", err)
	}
	failureCounter, err := meter.Int64Counter("combination-pipeline.counter.error")
	if err != nil {
		slog.Warn("failed to create error counter", "error", err)
	}
	return &CombinationPipeline{
		source:         source,
		composer:       composer,
		sink:           sink,
		tracer:         otel.Tracer(instrumentationName),
		storedCounter:  storedCounter,
		failureCounter: failureCounter,
	}
}

// Run generates, describes and stores every combination of spec under taskID.
//
// Outputs:
//   - []string: One storage location per combination, in combination order.
//   - error: *model.InputValidationError, *model.StorageError or
//     *model.UnclassifiedError. No locations are returned with an error.
func (p *CombinationPipeline) Run(ctx context.Context, spec *model.TaskSpecification, taskID string) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "combination-pipeline-run")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", taskID))

	locations, err := p.run(ctx, spec, taskID)
	if err != nil {
		span.SetStatus(codes.Error, model.Classify(err).String())
		span.RecordError(err)
		if p.failureCounter != nil {
			p.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("class", model.Classify(err).String())))
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("task.combinations", len(locations)))
	span.SetStatus(codes.Ok, "all combinations stored")
	return locations, nil
}

func (p *CombinationPipeline) run(ctx context.Context, spec *model.TaskSpecification, taskID string) ([]string, error) {
	if taskID == "" {
		return nil, &model.UnclassifiedError{Err: errors.New("empty task id")}
	}
	combinations, err := p.source.Build(spec)
	if err != nil {
		var inputErr *model.InputValidationError
		if errors.As(err, &inputErr) {
			return nil, err
		}
		return nil, &model.UnclassifiedError{Err: err}
	}
	expected := combination.Count(spec)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("task.expected_combinations", expected))
	slog.InfoContext(ctx, "task started", "task_id", taskID, "task_name", spec.TaskName, "combinations", expected)

	locations := make([]string, 0)
	index := 0
	for c := range combinations {
		location, err := p.process(ctx, taskID, index, c)
		if err != nil {
			slog.ErrorContext(ctx, "combination failed, aborting task",
				"task_id", taskID, "combination", index+1, "stored", len(locations), "error", err)
			return nil, err
		}
		locations = append(locations, location)
		index++
	}

	slog.InfoContext(ctx, "task completed", "task_id", taskID, "task_name", spec.TaskName, "combinations", len(locations))
	return locations, nil
}

// process composes and stores the combination at index.
func (p *CombinationPipeline) process(ctx context.Context, taskID string, index int, c model.Combination) (string, error) {
	ctx, span := p.tracer.Start(ctx, "combination")
	defer span.End()
	path := model.ArtifactPath(taskID, index)
	span.SetAttributes(attribute.String("combination.path", path))

	document, err := p.composer.Compose(ctx, c)
	if err != nil {
		span.SetStatus(codes.Error, "compose failed")
		return "", &model.UnclassifiedError{Err: err}
	}

	location, err := p.sink.Store(ctx, document, path)
	if err != nil {
		span.SetStatus(codes.Error, "store failed")
		var storageErr *model.StorageError
		if errors.As(err, &storageErr) {
			return "", err
		}
		return "", &model.UnclassifiedError{Err: err}
	}

	if p.storedCounter != nil {
		p.storedCounter.Add(ctx, 1)
	}
	span.SetStatus(codes.Ok, "stored")
	slog.DebugContext(ctx, "combination stored", "task_id", taskID, "path", path, "location", location)
	return location, nil
}

// Generate runs spec and wraps the locations in a TaskResult. When taskID is
// empty a random UUID is used.
func (p *CombinationPipeline) Generate(ctx context.Context, spec *model.TaskSpecification, taskID string) (*model.TaskResult, error) {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	locations, err := p.Run(ctx, spec, taskID)
	if err != nil {
		return nil, err
	}
	return model.NewTaskResult(taskID, spec.TaskName, locations), nil
}
