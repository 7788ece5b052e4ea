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

package probe_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/probe"
)

// scriptedProber returns the queued errors first, then a result.
type scriptedProber struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedProber) Probe(_ context.Context, _ string) (*model.ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &model.ProbeResult{}, nil
}

func transient() error {
	return &model.ProbeError{Locator: "u", Detail: "ffprobe error: timed out", Transient: true}
}

func TestRateLimitedRetriesTransientFailures(t *testing.T) {
	wrapped := &scriptedProber{errs: []error{transient(), transient()}}

	result, err := probe.NewRateLimitedProber(wrapped, 0, 3).Probe(context.Background(), "u")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 3, wrapped.calls)
}

func TestRateLimitedGivesUpAfterMaxRetries(t *testing.T) {
	wrapped := &scriptedProber{errs: []error{transient(), transient(), transient()}}

	_, err := probe.NewRateLimitedProber(wrapped, 0, 2).Probe(context.Background(), "u")
	var probeErr *model.ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.True(t, probeErr.Transient)
	assert.Equal(t, 3, wrapped.calls)
}

func TestRateLimitedDoesNotRetryPermanentFailures(t *testing.T) {
	permanent := &model.ProbeError{Locator: "u", Detail: "ffprobe error: 404"}
	wrapped := &scriptedProber{errs: []error{permanent, errors.New("plain")}}
	prober := probe.NewRateLimitedProber(wrapped, 0, 3)

	_, err := prober.Probe(context.Background(), "u")
	assert.Equal(t, permanent, err)
	_, err = prober.Probe(context.Background(), "u")
	assert.EqualError(t, err, "plain")
	assert.Equal(t, 2, wrapped.calls)
}

func TestRateLimitedNegativeRetriesUsesDefault(t *testing.T) {
	wrapped := &scriptedProber{errs: []error{transient(), transient(), transient(), transient(), transient()}}

	_, err := probe.NewRateLimitedProber(wrapped, 0, -1).Probe(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, probe.MaxRetries+1, wrapped.calls)
}

func TestRateLimitedHonoursRate(t *testing.T) {
	wrapped := &scriptedProber{}
	prober := probe.NewRateLimitedProber(wrapped, 20, 0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := prober.Probe(context.Background(), "u")
		require.NoError(t, err)
	}
	// burst of 20 tokens: five calls go through without waiting
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 5, wrapped.calls)
}

func TestRateLimitedStopsOnCancelledContext(t *testing.T) {
	wrapped := &scriptedProber{}
	prober := probe.NewRateLimitedProber(wrapped, 0.001, 0)
	_, err := prober.Probe(context.Background(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = prober.Probe(ctx, "u")
	var probeErr *model.ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Contains(t, probeErr.Detail, "probe not attempted")
	assert.Equal(t, 1, wrapped.calls)
}
