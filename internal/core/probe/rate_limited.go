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

// Package probe inspects media resources. This file wraps a Prober with a
// client-side rate limit and a bounded retry, so that a burst of combinations
// does not overwhelm the probing backend and a slow backend surfaces a bounded
// failure instead of hanging the pipeline.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// MaxRetries is the default number of additional attempts for a transient failure.
const MaxRetries = 3

// RateLimitedProber applies a token-bucket limit to a wrapped Prober and
// retries failures marked transient.
type RateLimitedProber struct {
	wrapped      Prober
	limiter      *rate.Limiter
	maxRetries   int
	retryCounter metric.Int64Counter
}

// NewRateLimitedProber wraps a Prober.
//
// Inputs:
//   - wrapped: The prober doing the actual work.
//   - requestsPerSecond: Sustained probe rate; non-positive disables limiting.
//   - maxRetries: Additional attempts for transient failures; negative selects MaxRetries.
//
// Outputs:
//   - *RateLimitedProber: The wrapping prober.
func NewRateLimitedProber(wrapped Prober, requestsPerSecond float64, maxRetries int) *RateLimitedProber {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}
	if maxRetries < 0 {
		maxRetries = MaxRetries
	}
	retryCounter, err := otel.Meter("github.com/jaycherian/gcp-go-media-combinations/probe").
		Int64Counter("probe.counter.retry")
	if err != nil {
		slog.Warn("failed to create probe retry counter", "error", err)
	}
	return &RateLimitedProber{
		wrapped:      wrapped,
		limiter:      rate.NewLimiter(limit, burst),
		maxRetries:   maxRetries,
		retryCounter: retryCounter,
	}
}

// Probe waits for a token, then delegates. Transient failures are retried up
// to maxRetries times; any other failure is returned immediately.
func (r *RateLimitedProber) Probe(ctx context.Context, locator string) (*model.ProbeResult, error) {
	for attempt := 0; ; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("probe not attempted: %v", err), Err: err}
		}
		result, err := r.wrapped.Probe(ctx, locator)
		if err == nil {
			return result, nil
		}
		var probeErr *model.ProbeError
		if !errors.As(err, &probeErr) || !probeErr.Transient || attempt >= r.maxRetries {
			return nil, err
		}
		if r.retryCounter != nil {
			r.retryCounter.Add(ctx, 1)
		}
		slog.WarnContext(ctx, "retrying probe", "url", locator, "attempt", attempt+1, "error", err)
	}
}
