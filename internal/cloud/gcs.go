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

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// GCSPubSubNotification is the JSON body of a Cloud Storage Pub/Sub
// notification (OBJECT_FINALIZE). Only the fields the task file workflow uses
// are decoded.
type GCSPubSubNotification struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// GCSObject identifies one object.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
}

func (o *GCSObject) String() string {
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Name)
}

// GCSTaskFiles reads task files named by storage notifications and writes
// uploaded task files into the task input bucket.
type GCSTaskFiles struct {
	client      *storage.Client
	inputBucket string
	maxSize     int64
}

// DefaultMaxTaskFileSize is the largest task file accepted for upload or read.
const DefaultMaxTaskFileSize = 8 << 20

func NewGCSTaskFiles(client *storage.Client, inputBucket string) *GCSTaskFiles {
	return &GCSTaskFiles{client: client, inputBucket: inputBucket, maxSize: DefaultMaxTaskFileSize}
}

// ReadObject returns the content of the object. A missing object or one
// larger than the size limit is an input error: retrying cannot fix either.
func (r *GCSTaskFiles) ReadObject(ctx context.Context, object *GCSObject) ([]byte, error) {
	reader, err := r.client.Bucket(object.Bucket).Object(object.Name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, &model.InputValidationError{Reason: fmt.Sprintf("task file %s does not exist", object)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(io.LimitReader(reader, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", object, err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, &model.InputValidationError{Reason: fmt.Sprintf("task file %s exceeds %d bytes", object, r.maxSize)}
	}
	return data, nil
}

// Upload writes content to the input bucket under the base name of name and
// returns its gs:// URI. The content is read in full before anything is
// written: a file over the size limit or one that is not JSON is rejected
// with an input error and no object is created.
func (r *GCSTaskFiles) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	if r.inputBucket == "" {
		return "", errors.New("no task input bucket configured")
	}
	object := &GCSObject{Bucket: r.inputBucket, Name: path.Base(name), MIMEType: "application/json"}

	data, err := io.ReadAll(io.LimitReader(content, r.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload %s: %w", object.Name, err)
	}
	if int64(len(data)) > r.maxSize {
		return "", &model.InputValidationError{Reason: fmt.Sprintf("task file %s exceeds %d bytes", object.Name, r.maxSize)}
	}
	if !json.Valid(data) {
		return "", &model.InputValidationError{Reason: fmt.Sprintf("task file %s is not valid JSON", object.Name)}
	}

	writer := r.client.Bucket(object.Bucket).Object(object.Name).NewWriter(ctx)
	writer.ContentType = object.MIMEType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", object, err)
	}
	return object.String(), nil
}
