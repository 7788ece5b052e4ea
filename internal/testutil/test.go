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

// Package test holds fixtures and in-memory fakes shared by the package
// tests: a scripted prober, a recording sink and deterministic random
// sources.
package test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/storage"
)

func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// GetTestGenerationRequestText is a generation request as published to the
// generation topic.
func GetTestGenerationRequestText() string {
	return `{
  "task_id": "task-001",
  "task_name": "summer-promo",
  "video_blocks": {
    "intro": ["https://media.example.com/intro.mp4"],
    "body": ["https://media.example.com/body-a.mp4", "https://media.example.com/body-b.mp4"]
  },
  "audio_blocks": {"music": ["https://media.example.com/track.mp3"]},
  "voice_blocks": {"narration": [{"text": ["hi"], "voice": "x"}]}
}`
}

// GetTestTaskFileNotificationText is the storage notification for a task
// file uploaded to the input bucket.
func GetTestTaskFileNotificationText() string {
	return `{
  "kind": "storage#object",
  "id": "media_task_files/summer-promo.json/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/media_task_files/o/summer-promo.json",
  "name": "summer-promo.json",
  "bucket": "media_task_files",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "application/json",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "412"
}`
}

// Locator returns an absolute test URL for name.
func Locator(name string) string {
	return "https://media.example.com/" + name
}

// SampleSpecification has video groups intro=[v1] and body=[v2, v3], one
// audio track and one voice selection.
func SampleSpecification() *model.TaskSpecification {
	return &model.TaskSpecification{
		TaskName: "sample",
		VideoBlocks: model.LocatorGroups{
			{Name: "intro", Locators: []string{Locator("v1")}},
			{Name: "body", Locators: []string{Locator("v2"), Locator("v3")}},
		},
		AudioBlocks: model.LocatorGroups{{Name: "a", Locators: []string{Locator("aud1")}}},
		VoiceBlocks: model.VoiceGroups{{Name: "b", Voices: []model.VoiceSelection{{Text: []string{"hi"}, Voice: "x"}}}},
	}
}

// VideoProbeResult is a probe result with an audio stream followed by one
// video stream.
func VideoProbeResult(duration float64, width int, height int) *model.ProbeResult {
	return &model.ProbeResult{Streams: []model.Stream{
		{CodecType: "audio", CodecName: "aac", Duration: model.Seconds(duration)},
		{CodecType: "video", CodecName: "h264", Duration: model.Seconds(duration), Width: width, Height: height},
	}}
}

// FakeProber answers from fixed tables. Unknown locators fail with a
// ProbeError. Safe for concurrent use.
type FakeProber struct {
	mu      sync.Mutex
	results map[string]*model.ProbeResult
	errs    map[string]error
	calls   []string
}

func NewFakeProber() *FakeProber {
	return &FakeProber{results: make(map[string]*model.ProbeResult), errs: make(map[string]error)}
}

func (f *FakeProber) WithResult(locator string, result *model.ProbeResult) *FakeProber {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[locator] = result
	return f
}

func (f *FakeProber) WithError(locator string, err error) *FakeProber {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[locator] = err
	return f
}

func (f *FakeProber) Probe(_ context.Context, locator string) (*model.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, locator)
	if err, ok := f.errs[locator]; ok {
		return nil, err
	}
	if result, ok := f.results[locator]; ok {
		return result, nil
	}
	return nil, &model.ProbeError{Locator: locator, Detail: fmt.Sprintf("ffprobe error: %s: No such file or directory", locator)}
}

// Calls returns the locators probed so far, in order.
func (f *FakeProber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// MemorySink keeps encoded documents in memory. When FailAt is n > 0 the
// n-th Store call fails with a StorageError and stores nothing.
type MemorySink struct {
	mu      sync.Mutex
	FailAt  int
	calls   int
	paths   []string
	objects map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

func (s *MemorySink) Store(_ context.Context, document any, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.FailAt > 0 && s.calls == s.FailAt {
		return "", &model.StorageError{Path: path, Err: errors.New("simulated outage")}
	}
	data, err := storage.EncodeDocument(document)
	if err != nil {
		return "", err
	}
	s.objects[path] = data
	s.paths = append(s.paths, path)
	return "mem://bucket/" + path, nil
}

func (s *MemorySink) SignedURL(_ context.Context, path string, expires time.Duration) (string, error) {
	return fmt.Sprintf("mem://bucket/%s?expires=%d", path, int(expires.Seconds())), nil
}

// Calls is the number of Store calls, failed ones included.
func (s *MemorySink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Paths lists the stored paths in write order.
func (s *MemorySink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Object returns the bytes stored at path.
func (s *MemorySink) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

// SequenceSource replays values modulo n, cycling through them.
type SequenceSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

// WriteConfig writes the base and runtime overlay files into a temporary
// directory and points the configuration environment at it.
func WriteConfig(t *testing.T, runtime string, base string, overlay string) string {
	t.Helper()
	dir := t.TempDir()
	if base != "" {
		HandleErr(os.WriteFile(filepath.Join(dir, cloud.ConfigFileBaseName+cloud.ConfigFileExtension), []byte(base), 0o600), t)
	}
	if overlay != "" {
		name := cloud.ConfigFileBaseName + cloud.ConfigSeparator + runtime + cloud.ConfigFileExtension
		HandleErr(os.WriteFile(filepath.Join(dir, name), []byte(overlay), 0o600), t)
	}
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, runtime)
	return dir
}
