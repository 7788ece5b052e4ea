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

// Package storage persists combination documents to object storage. This file
// implements a sink for S3-compatible stores using minio-go.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// S3Sink stores documents in a bucket of an S3-compatible object store.
type S3Sink struct {
	client *minio.Client
	bucket string
}

// NewS3Sink creates a sink writing to bucket.
func NewS3Sink(client *minio.Client, bucket string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket}
}

// Store puts document at path and returns `<endpoint URL>/<bucket>/<path>`.
func (s *S3Sink) Store(ctx context.Context, document any, path string) (string, error) {
	data, err := EncodeDocument(document)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", path, err)
	}
	info, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentTypeJSON})
	if err != nil {
		return "", &model.StorageError{Path: path, Err: err}
	}
	slog.InfoContext(ctx, "document uploaded", "bucket", s.bucket, "path", path, "etag", info.ETag)

	endpoint := strings.TrimSuffix(s.client.EndpointURL().String(), "/")
	return fmt.Sprintf("%s/%s/%s", endpoint, s.bucket, strings.TrimPrefix(path, "/")), nil
}

// SignedURL returns a presigned GET URL for the object at path.
func (s *S3Sink) SignedURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, expires, nil)
	if err != nil {
		return "", &model.StorageError{Path: path, Err: err}
	}
	return u.String(), nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Sink) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &model.StorageError{Path: s.bucket, Err: err}
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return &model.StorageError{Path: s.bucket, Err: err}
	}
	return nil
}
