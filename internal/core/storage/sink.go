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

// Package storage persists combination documents to object storage.
//
// A Sink accepts any JSON-serializable document and an object path (UTF-8,
// may contain "/"), writes the document pretty-printed with four-space
// indentation and returns the object's addressable location. A failure to
// reach or write the store is reported as a *model.StorageError; a document
// that cannot be encoded is returned as a plain error.
//
// Implementations:
//   - GCSSink: Google Cloud Storage.
//   - S3Sink: any S3-compatible store (MinIO, R2, AWS S3) through minio-go.
//
// Writes overwrite existing objects, so re-running a task with the same
// task ID is idempotent at the object level.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// ContentTypeJSON is the content type of every stored document.
const ContentTypeJSON = "application/json"

// Sink persists a document at path and returns its location.
type Sink interface {
	Store(ctx context.Context, document any, path string) (string, error)
}

// URLSigner issues time-limited read URLs for stored objects.
type URLSigner interface {
	SignedURL(ctx context.Context, path string, expires time.Duration) (string, error)
}

// EncodeDocument renders document as indented UTF-8 JSON. HTML characters
// and non-ASCII text are written as-is.
func EncodeDocument(document any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(document); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
