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
// implements the Google Cloud Storage sink.
//
// Logic Flow:
//  1. The document is encoded in memory (documents are small).
//  2. A writer is opened on `<bucket>/<path>` with the JSON content type and
//     the bytes are written. Closing the writer finalizes the upload; an
//     upload is only successful once Close returns nil.
//  3. The location returned is `https://<public host>/<bucket>/<path>`.
//
// Signed URLs are produced with the V4 scheme. When a signer service account
// is configured, signing goes through the IAM Credentials API so that no
// private key needs to be present on the host.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	gcs "cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// DefaultPublicHost is the host used to build browser-accessible object URLs.
const DefaultPublicHost = "storage.cloud.google.com"

// GCSSink stores documents in a Google Cloud Storage bucket.
type GCSSink struct {
	client      *gcs.Client                       // The GCS client.
	bucket      string                            // The destination bucket.
	publicHost  string                            // Host used in returned locations.
	iamClient   *credentials.IamCredentialsClient // Optional; signs URLs on behalf of signerEmail.
	signerEmail string                            // Service account used for URL signing.
}

// GCSOption customizes a GCSSink.
type GCSOption func(*GCSSink)

// WithPublicHost overrides DefaultPublicHost.
func WithPublicHost(host string) GCSOption {
	return func(s *GCSSink) {
		if host = strings.Trim(strings.TrimSpace(host), "/"); host != "" {
			s.publicHost = host
		}
	}
}

// WithIAMSigner signs URLs through the IAM Credentials API as signerEmail.
func WithIAMSigner(client *credentials.IamCredentialsClient, signerEmail string) GCSOption {
	return func(s *GCSSink) {
		s.iamClient = client
		s.signerEmail = signerEmail
	}
}

// NewGCSSink creates a sink writing to bucket.
func NewGCSSink(client *gcs.Client, bucket string, opts ...GCSOption) *GCSSink {
	out := &GCSSink{client: client, bucket: bucket, publicHost: DefaultPublicHost}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Store writes document to the bucket at path.
func (s *GCSSink) Store(ctx context.Context, document any, path string) (string, error) {
	data, err := EncodeDocument(document)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", path, err)
	}

	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = ContentTypeJSON
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", &model.StorageError{Path: path, Err: err}
	}
	// Close commits the object; a failed Close means nothing was stored.
	if err := writer.Close(); err != nil {
		return "", &model.StorageError{Path: path, Err: err}
	}

	slog.InfoContext(ctx, "document uploaded", "bucket", s.bucket, "path", path, "bytes", len(data))
	return ObjectURL(s.publicHost, s.bucket, path), nil
}

// SignedURL returns a V4 signed GET URL for the object at path.
func (s *GCSSink) SignedURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.iamClient != nil && s.signerEmail != "" {
		opts.GoogleAccessID = s.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.iamClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.signerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(path, opts)
	if err != nil {
		return "", &model.StorageError{Path: path, Err: err}
	}
	return u, nil
}

// ObjectURL builds `https://<host>/<bucket>/<path>`.
func ObjectURL(host string, bucket string, path string) string {
	return fmt.Sprintf("https://%s/%s/%s", host, bucket, strings.TrimPrefix(path, "/"))
}
