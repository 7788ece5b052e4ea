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

// Package probe inspects media resources and reports their stream-level
// technical metadata without decoding them.
//
// Implementations:
//   - FFProbe: shells out to the `ffprobe` tool, one process per locator.
//   - RateLimitedProber: wraps another Prober with a request rate limit and a
//     bounded retry for transient failures.
//
// Every Prober returns either a *model.ProbeResult or a *model.ProbeError and
// must be safe for concurrent use by multiple in-flight tasks.
package probe

import (
	"context"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// Prober reports the streams of the media resource at locator.
type Prober interface {
	Probe(ctx context.Context, locator string) (*model.ProbeResult, error)
}
