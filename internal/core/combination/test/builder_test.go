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

package combination_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/combination"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-combinations/internal/testutil"
)

func collect(t *testing.T, builder *combination.Builder, spec *model.TaskSpecification) []model.Combination {
	t.Helper()
	seq, err := builder.Build(spec)
	require.NoError(t, err)
	out := make([]model.Combination, 0)
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func groups(sizes ...int) model.LocatorGroups {
	out := make(model.LocatorGroups, 0, len(sizes))
	for g, size := range sizes {
		group := model.LocatorGroup{Name: fmt.Sprintf("g%d", g)}
		for i := 0; i < size; i++ {
			group.Locators = append(group.Locators, test.Locator(fmt.Sprintf("g%d-%d", g, i)))
		}
		out = append(out, group)
	}
	return out
}

func TestBuildSampleSpecification(t *testing.T) {
	got := collect(t, combination.NewBuilder(nil), test.SampleSpecification())
	require.Len(t, got, 2)

	assert.Equal(t, []string{test.Locator("v1"), test.Locator("v2")}, got[0].VideoSequence)
	assert.Equal(t, []string{test.Locator("v1"), test.Locator("v3")}, got[1].VideoSequence)
	for _, c := range got {
		assert.Equal(t, test.Locator("aud1"), c.AudioLocator)
		assert.Equal(t, model.VoiceSelection{Text: []string{"hi"}, Voice: "x"}, c.VoiceSelection)
	}
}

func TestBuildCountsMatchProduct(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		want  int
	}{
		{"single group", []int{4}, 4},
		{"two groups", []int{2, 3}, 6},
		{"three groups", []int{3, 1, 4}, 12},
		{"empty group", []int{3, 0, 4}, 0},
		{"no groups", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := test.SampleSpecification()
			spec.VideoBlocks = groups(tt.sizes...)
			assert.Equal(t, tt.want, combination.Count(spec))
			assert.Len(t, collect(t, combination.NewBuilder(nil), spec), tt.want)
		})
	}
}

func TestBuildRightmostGroupVariesFastest(t *testing.T) {
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(2, 2)
	got := collect(t, combination.NewBuilder(nil), spec)

	want := [][]string{
		{test.Locator("g0-0"), test.Locator("g1-0")},
		{test.Locator("g0-0"), test.Locator("g1-1")},
		{test.Locator("g0-1"), test.Locator("g1-0")},
		{test.Locator("g0-1"), test.Locator("g1-1")},
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i].VideoSequence)
	}
}

func TestBuildSamplesFromPools(t *testing.T) {
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(3, 3)
	spec.AudioBlocks = model.LocatorGroups{
		{Name: "a", Locators: []string{test.Locator("a0"), test.Locator("a1")}},
		{Name: "b", Locators: []string{test.Locator("b0")}},
	}
	spec.VoiceBlocks = model.VoiceGroups{
		{Name: "v", Voices: []model.VoiceSelection{{Text: []string{"one"}, Voice: "v1"}, {Text: []string{"two"}, Voice: "v2"}}},
	}
	audios := spec.AudioBlocks.Flatten()
	voices := spec.VoiceBlocks.Flatten()

	for _, c := range collect(t, combination.NewBuilder(combination.NewSeededSource(7)), spec) {
		assert.Contains(t, audios, c.AudioLocator)
		assert.Contains(t, voices, c.VoiceSelection)
		require.Len(t, c.VideoSequence, 2)
		assert.Contains(t, spec.VideoBlocks[0].Locators, c.VideoSequence[0])
		assert.Contains(t, spec.VideoBlocks[1].Locators, c.VideoSequence[1])
	}
}

func TestBuildDrawsAudioThenVoicePerTuple(t *testing.T) {
	spec := test.SampleSpecification()
	spec.AudioBlocks = model.LocatorGroups{{Name: "a", Locators: []string{test.Locator("a0"), test.Locator("a1"), test.Locator("a2")}}}
	spec.VoiceBlocks = model.VoiceGroups{{Name: "v", Voices: []model.VoiceSelection{
		{Text: []string{"zero"}, Voice: "v0"},
		{Text: []string{"one"}, Voice: "v1"},
	}}}

	// audio, voice, audio, voice
	got := collect(t, combination.NewBuilder(test.NewSequenceSource(2, 1, 0, 0)), spec)
	require.Len(t, got, 2)
	assert.Equal(t, test.Locator("a2"), got[0].AudioLocator)
	assert.Equal(t, "v1", got[0].VoiceSelection.Voice)
	assert.Equal(t, test.Locator("a0"), got[1].AudioLocator)
	assert.Equal(t, "v0", got[1].VoiceSelection.Voice)
}

func TestBuildIsRepeatableWithSameSeed(t *testing.T) {
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(4, 3)
	spec.AudioBlocks = groups(5)

	first := collect(t, combination.NewBuilder(combination.NewSeededSource(42)), spec)
	second := collect(t, combination.NewBuilder(combination.NewSeededSource(42)), spec)
	assert.Equal(t, first, second)
}

func TestBuildSequenceIsFreshPerCall(t *testing.T) {
	builder := combination.NewBuilder(nil)
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(2, 2)

	seq, err := builder.Build(spec)
	require.NoError(t, err)
	count := 0
	for range seq {
		count++
	}
	assert.Equal(t, 4, count)
	assert.Len(t, collect(t, builder, spec), 4)
}

func TestBuildStopsEarly(t *testing.T) {
	source := test.NewSequenceSource(0)
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(10, 10, 10)

	seq, err := combination.NewBuilder(source).Build(spec)
	require.NoError(t, err)
	seen := 0
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestBuildTuplesAreIndependent(t *testing.T) {
	spec := test.SampleSpecification()
	got := collect(t, combination.NewBuilder(nil), spec)
	require.Len(t, got, 2)
	got[0].VideoSequence[0] = "mutated"
	assert.Equal(t, test.Locator("v1"), got[1].VideoSequence[0])
	assert.Equal(t, test.Locator("v1"), spec.VideoBlocks[0].Locators[0])
}

func TestBuildRejectsEmptyPools(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(spec *model.TaskSpecification)
	}{
		{"no audio groups", func(s *model.TaskSpecification) { s.AudioBlocks = nil }},
		{"empty audio group", func(s *model.TaskSpecification) { s.AudioBlocks = groups(0) }},
		{"no voice groups", func(s *model.TaskSpecification) { s.VoiceBlocks = nil }},
		{"empty voice group", func(s *model.TaskSpecification) { s.VoiceBlocks = model.VoiceGroups{{Name: "v"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := test.SampleSpecification()
			tt.mutate(spec)
			seq, err := combination.NewBuilder(nil).Build(spec)
			assert.Nil(t, seq)
			var inputErr *model.InputValidationError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, "invalid task specification: audio blocks and voice blocks cannot be empty", err.Error())
		})
	}

	_, err := combination.NewBuilder(nil).Build(nil)
	assert.Error(t, err)
}

func TestBuildEmptyPoolWinsOverEmptyProduct(t *testing.T) {
	spec := test.SampleSpecification()
	spec.VideoBlocks = nil
	spec.VoiceBlocks = nil
	_, err := combination.NewBuilder(nil).Build(spec)
	assert.Error(t, err)
}

func TestBuildSamplingIsRoughlyUniform(t *testing.T) {
	spec := test.SampleSpecification()
	spec.VideoBlocks = groups(60, 50)
	spec.AudioBlocks = groups(4)

	counts := make(map[string]int)
	total := 0
	for _, c := range collect(t, combination.NewBuilder(combination.NewSeededSource(2024)), spec) {
		counts[c.AudioLocator]++
		total++
	}
	require.Equal(t, 3000, total)
	require.Len(t, counts, 4)
	for locator, n := range counts {
		assert.InDelta(t, 750, n, 150, "audio %s drawn %d times", locator, n)
	}
}
