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

// Package combination expands a task specification into the combinations to
// be generated.
//
// Logic Flow:
//  1. The audio and voice groups are flattened into two sampling pools. If
//     either pool is empty the task is rejected before anything is produced.
//  2. The video groups become the factors of a Cartesian product, one factor
//     per group in declared order, each factor keeping its locator order.
//  3. The product is walked lazily by an odometer cursor: the last factor
//     advances fastest, and only the current tuple is ever resident.
//  4. For each tuple one audio locator and one voice selection are drawn
//     uniformly, with replacement, from the pools through a RandomSource.
//
// The returned sequence is finite and forward-only. Ranging over it again, or
// calling Build again, re-expands the product and re-samples audio and voice.
package combination

import (
	"iter"
	"math/rand/v2"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// RandomSource supplies the uniform draws used to sample audio and voice.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	// IntN returns a uniformly distributed integer in [0, n). n is always > 0.
	IntN(n int) int
}

// globalSource draws from math/rand/v2's top-level generator, which is safe
// for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// NewSeededSource returns a deterministic RandomSource. It is not safe for
// concurrent use and is meant for tests and reproducible runs.
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Builder turns task specifications into lazy combination sequences. A
// Builder holds no per-task state; with the default source it can be shared
// between concurrent tasks.
type Builder struct {
	random RandomSource
}

// NewBuilder creates a Builder drawing from random. A nil source selects the
// process-wide generator.
func NewBuilder(random RandomSource) *Builder {
	if random == nil {
		random = globalSource{}
	}
	return &Builder{random: random}
}

// Build validates the sampling pools of spec and returns the lazy sequence of
// its combinations.
//
// Inputs:
//   - spec: The task specification to expand.
//
// Outputs:
//   - iter.Seq[model.Combination]: The combinations, one per product tuple.
//   - error: An *model.InputValidationError when the audio or voice pool is empty.
func (b *Builder) Build(spec *model.TaskSpecification) (iter.Seq[model.Combination], error) {
	if spec == nil {
		return nil, &model.InputValidationError{Reason: "task specification is missing"}
	}
	audios := spec.AudioBlocks.Flatten()
	voices := spec.VoiceBlocks.Flatten()
	if len(audios) == 0 || len(voices) == 0 {
		return nil, &model.InputValidationError{Reason: "audio blocks and voice blocks cannot be empty"}
	}
	factors := spec.VideoBlocks.Factors()

	return func(yield func(model.Combination) bool) {
		cursor := newProductCursor(factors)
		for {
			tuple, ok := cursor.next()
			if !ok {
				return
			}
			combination := model.Combination{
				VideoSequence:  tuple,
				AudioLocator:   audios[b.random.IntN(len(audios))],
				VoiceSelection: voices[b.random.IntN(len(voices))],
			}
			if !yield(combination) {
				return
			}
		}
	}, nil
}

// Count returns the number of combinations Build would produce for spec,
// without expanding the product. It is zero when there are no video groups
// or any group is empty.
func Count(spec *model.TaskSpecification) int {
	if spec == nil || len(spec.VideoBlocks) == 0 {
		return 0
	}
	total := 1
	for _, group := range spec.VideoBlocks {
		total *= len(group.Locators)
	}
	return total
}
