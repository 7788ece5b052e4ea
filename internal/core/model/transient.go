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
// This file, `transient.go`, contains the values that only live in memory
// while a task is processed: generated combinations and media probe results.
// None of these are persisted in their raw form.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Combination is one selected video sequence paired with one sampled audio
// locator and one sampled voice selection. It is created by the combination
// builder, consumed by the metadata composer and then discarded.
type Combination struct {
	VideoSequence  []string       // One locator per video group, in group order.
	AudioLocator   string         // Drawn uniformly from the flattened audio pool.
	VoiceSelection VoiceSelection // Drawn uniformly from the flattened voice pool.
}

// ProbeResult mirrors the subset of `ffprobe -show_streams` JSON output that
// the composer needs.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single media stream reported by a probe.
type Stream struct {
	CodecType string  `json:"codec_type"`           // e.g., "video", "audio".
	CodecName string  `json:"codec_name,omitempty"` // e.g., "h264".
	Duration  Seconds `json:"duration,omitempty"`   // Stream duration; absent means 0.
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
}

// FirstVideoStream returns the first stream whose codec type is "video".
func (p *ProbeResult) FirstVideoStream() (*Stream, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i], true
		}
	}
	return nil, false
}

// Resolution formats the stream's frame size as "WxH".
func (s *Stream) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Seconds is a duration in seconds. ffprobe reports durations as quoted
// decimal strings ("5.200000"), other probes as plain numbers; both decode.
type Seconds float64

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*s = Seconds(v)
	return nil
}
