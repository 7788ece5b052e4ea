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

// Package composer turns a generated combination into the metadata document
// that is persisted for it.
//
// Logic Flow:
// For every video locator of the combination, in sequence order, the composer
// asks the Prober for the resource's streams and records one segment:
//
//  1. Probe failure: the segment carries an `error` with the failure detail.
//  2. No stream of codec type "video": the segment carries an `error` of
//     "no video stream found".
//  3. Otherwise the first video stream yields `duration` (missing means 0) and
//     `resolution` as "WxH" (missing width or height means 0).
//
// Segment failures never abort the combination. The document's total duration
// is the sum of the successful segment durations, rounded to two decimals once
// at the end. Apart from the probe calls the composer performs no I/O, so the
// same combination and the same probe outcomes always produce the same document.
package composer

import (
	"context"
	"log/slog"
	"math"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/probe"
)

// MetadataComposer builds CombinationDocuments from probe results.
type MetadataComposer struct {
	prober probe.Prober
}

// NewMetadataComposer creates a composer that inspects videos with prober.
func NewMetadataComposer(prober probe.Prober) *MetadataComposer {
	return &MetadataComposer{prober: prober}
}

// Compose probes every segment of combination and assembles its document.
//
// Inputs:
//   - ctx: Carries cancellation and trace information to the probe calls.
//   - combination: The combination to describe.
//
// Outputs:
//   - model.CombinationDocument: The assembled document.
//   - error: Only the context's error, when it is cancelled mid-composition.
func (c *MetadataComposer) Compose(ctx context.Context, combination model.Combination) (model.CombinationDocument, error) {
	segments := make([]model.SegmentMetadata, 0, len(combination.VideoSequence))
	total := 0.0

	for i, locator := range combination.VideoSequence {
		if err := ctx.Err(); err != nil {
			return model.CombinationDocument{}, err
		}
		segment := c.describe(ctx, i, locator)
		if segment.Duration != nil {
			total += *segment.Duration
		}
		segments = append(segments, segment)
	}
	if err := ctx.Err(); err != nil {
		return model.CombinationDocument{}, err
	}

	voice := model.VoiceSelection{
		Text:  append([]string{}, combination.VoiceSelection.Text...),
		Voice: combination.VoiceSelection.Voice,
	}
	return model.CombinationDocument{
		TotalDurationSeconds: RoundSeconds(total),
		BackgroundAudioURL:   combination.AudioLocator,
		SelectedVoiceBlock:   voice,
		VideoSegments:        segments,
	}, nil
}

// describe probes one locator and converts the outcome into a segment.
func (c *MetadataComposer) describe(ctx context.Context, order int, locator string) model.SegmentMetadata {
	segment := model.SegmentMetadata{BlockOrder: order, URL: locator}

	result, err := c.prober.Probe(ctx, locator)
	if err != nil {
		slog.WarnContext(ctx, "probe failed", "url", locator, "error", err)
		segment.Error = err.Error()
		return segment
	}

	stream, ok := result.FirstVideoStream()
	if !ok {
		slog.WarnContext(ctx, "no video stream found", "url", locator)
		segment.Error = model.ErrNoVideoStream.Error()
		return segment
	}

	duration := float64(stream.Duration)
	segment.Duration = &duration
	segment.Resolution = stream.Resolution()
	return segment
}

// RoundSeconds rounds to two decimal places. Ties go to the even digit, so
// 0.125 becomes 0.12 and 0.375 becomes 0.38.
func RoundSeconds(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
