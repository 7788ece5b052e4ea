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
// technical metadata. This file defines the ffprobe-backed implementation.
//
// Logic Flow:
//  1. `file://` locators are resolved to a local path. The file header is
//     sniffed with the `filetype` library so that an obvious non-video file
//     (an image, an archive) fails fast without spawning a process.
//  2. Locators whose scheme is not allowed are rejected without spawning a
//     process. `ffprobe` is then executed with JSON output and stream listing
//     enabled, under a per-call timeout, and with `-protocol_whitelist` set to
//     the protocols the allowed schemes need, so a playlist or redirect cannot
//     pull in any other protocol. Remote locators are handed to ffprobe as-is;
//     it reads only the container headers.
//  3. A non-zero exit becomes a *model.ProbeError carrying ffprobe's stderr
//     (truncated) as its detail. A timeout is marked transient.
//  4. The JSON output is decoded into a model.ProbeResult.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// Constants used for the ffprobe execution.
const (
	// DefaultFFProbeCommand assumes `ffprobe` is available in the system's PATH.
	DefaultFFProbeCommand = "ffprobe"
	// DefaultTimeout bounds a single probe when none is configured.
	DefaultTimeout = 30 * time.Second
	// MaxDiagnosticBytes caps how much stderr is kept in an error detail.
	MaxDiagnosticBytes = 4096
	// sniffHeaderSize is the number of bytes filetype needs to match a type.
	sniffHeaderSize = 262
)

// defaultFFProbeArgs are passed before the locator:
// -v error: only report errors on stderr.
// -print_format json -show_streams: emit the stream list as JSON on stdout.
var defaultFFProbeArgs = []string{"-v", "error", "-print_format", "json", "-show_streams"}

// DefaultAllowedSchemes are the locator schemes probed when none are
// configured.
var DefaultAllowedSchemes = []string{"https", "http", "file"}

// schemeProtocols lists the ffmpeg protocols each locator scheme relies on.
var schemeProtocols = map[string][]string{
	"https": {"https", "tls", "tcp"},
	"http":  {"http", "tcp"},
	"file":  {"file"},
}

// FFProbe is a Prober backed by the ffprobe command-line tool.
type FFProbe struct {
	commandPath string              // The path to the ffprobe executable.
	timeout     time.Duration       // The upper bound for a single probe.
	schemes     map[string]struct{} // Locator schemes that may be probed.
	protocols   string              // Value of -protocol_whitelist.
}

// FFProbeOption customizes an FFProbe.
type FFProbeOption func(*FFProbe)

// WithAllowedSchemes replaces DefaultAllowedSchemes. Empty entries are
// ignored; an empty list keeps the default.
func WithAllowedSchemes(schemes ...string) FFProbeOption {
	return func(p *FFProbe) {
		p.setSchemes(schemes)
	}
}

func (p *FFProbe) setSchemes(schemes []string) {
	allowed := make(map[string]struct{})
	var protocols []string
	for _, scheme := range schemes {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		if scheme == "" {
			continue
		}
		allowed[scheme] = struct{}{}
		needed, ok := schemeProtocols[scheme]
		if !ok {
			needed = []string{scheme}
		}
		for _, protocol := range needed {
			if !slices.Contains(protocols, protocol) {
				protocols = append(protocols, protocol)
			}
		}
	}
	if len(allowed) == 0 {
		return
	}
	p.schemes = allowed
	p.protocols = strings.Join(protocols, ",")
}

// NewFFProbe creates an FFProbe. An empty commandPath selects
// DefaultFFProbeCommand and a non-positive timeout selects DefaultTimeout.
//
// Inputs:
//   - commandPath: The file system path to the ffprobe executable.
//   - timeout: The maximum duration of one probe.
//   - opts: Optional settings such as WithAllowedSchemes.
//
// Outputs:
//   - *FFProbe: A pointer to the newly instantiated prober.
func NewFFProbe(commandPath string, timeout time.Duration, opts ...FFProbeOption) *FFProbe {
	if len(strings.TrimSpace(commandPath)) == 0 {
		commandPath = DefaultFFProbeCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	out := &FFProbe{commandPath: commandPath, timeout: timeout}
	out.setSchemes(DefaultAllowedSchemes)
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Probe runs ffprobe against locator and decodes its stream listing.
func (p *FFProbe) Probe(ctx context.Context, locator string) (*model.ProbeResult, error) {
	if err := p.checkScheme(locator); err != nil {
		return nil, err
	}
	target := locator
	if path, ok := localPath(locator); ok {
		if err := sniffVideo(locator, path); err != nil {
			return nil, err
		}
		target = path
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, defaultFFProbeArgs...), "-protocol_whitelist", p.protocols, target)
	// #nosec G204 - the executable comes from configuration and the locator is a single argument.
	cmd := exec.CommandContext(probeCtx, p.commandPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, &model.ProbeError{
				Locator:   locator,
				Detail:    fmt.Sprintf("ffprobe error: timed out after %s", p.timeout),
				Transient: ctx.Err() == nil,
				Err:       probeCtx.Err(),
			}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &model.ProbeError{
			Locator: locator,
			Detail:  fmt.Sprintf("ffprobe error: %s", truncate(detail, MaxDiagnosticBytes)),
			Err:     err,
		}
	}

	var result model.ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, &model.ProbeError{
			Locator: locator,
			Detail:  fmt.Sprintf("ffprobe error: unreadable output: %v", err),
			Err:     err,
		}
	}
	return &result, nil
}

// checkScheme rejects locators whose scheme is not allowed.
func (p *FFProbe) checkScheme(locator string) error {
	u, err := url.Parse(locator)
	if err != nil {
		return &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("ffprobe error: invalid locator: %v", err), Err: err}
	}
	if _, ok := p.schemes[strings.ToLower(u.Scheme)]; !ok {
		return &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("ffprobe error: scheme %q is not allowed", u.Scheme)}
	}
	return nil
}

// localPath resolves a file:// locator to a filesystem path.
func localPath(locator string) (string, bool) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// sniffVideo rejects local files whose header identifies a known non-video
// type. Unknown headers are left for ffprobe to decide.
func sniffVideo(locator string, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("ffprobe error: %v", err), Err: err}
	}
	defer file.Close()

	head := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("ffprobe error: %v", err), Err: err}
	}
	head = head[:n]

	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown && !filetype.IsVideo(head) {
		return &model.ProbeError{
			Locator: locator,
			Detail:  fmt.Sprintf("ffprobe error: %s is not a video file (%s)", path, kind.MIME.Value),
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
