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

package storage_test

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	gcs "cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/storage"
)

func sampleDocument() model.CombinationDocument {
	duration := 5.2
	return model.CombinationDocument{
		TotalDurationSeconds: 5.2,
		BackgroundAudioURL:   "https://media.example.com/a&b.mp3",
		SelectedVoiceBlock:   model.VoiceSelection{Text: []string{"héllo <world>"}, Voice: "x"},
		VideoSegments: []model.SegmentMetadata{
			{BlockOrder: 0, URL: "https://media.example.com/v1.mp4", Duration: &duration, Resolution: "1920x1080"},
			{BlockOrder: 1, URL: "https://media.example.com/v3.mp4", Error: "no video stream found"},
		},
	}
}

const sampleDocumentJSON = `{
    "total_duration_seconds": 5.2,
    "background_audio_url": "https://media.example.com/a&b.mp3",
    "selected_voice_block": {
        "text": [
            "héllo <world>"
        ],
        "voice": "x"
    },
    "video_segments": [
        {
            "block_order": 0,
            "url": "https://media.example.com/v1.mp4",
            "duration": 5.2,
            "resolution": "1920x1080"
        },
        {
            "block_order": 1,
            "url": "https://media.example.com/v3.mp4",
            "error": "no video stream found"
        }
    ]
}`

func TestEncodeDocument(t *testing.T) {
	data, err := storage.EncodeDocument(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, sampleDocumentJSON, string(data))

	_, err = storage.EncodeDocument(map[string]float64{"bad": math.NaN()})
	assert.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://storage.cloud.google.com/out/task/1.json", storage.ObjectURL(storage.DefaultPublicHost, "out", "task/1.json"))
	assert.Equal(t, "https://cdn.example.com/out/task/2.json", storage.ObjectURL("cdn.example.com", "out", "/task/2.json"))
}

// recordedRequest is one request seen by a fake storage server.
type recordedRequest struct {
	method string
	path   string
	body   string
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	respond  string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
	status, respond := f.status, f.respond
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respond)
}

func (f *fakeServer) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newGCSClient(t *testing.T, server *httptest.Server) *gcs.Client {
	t.Helper()
	client, err := gcs.NewClient(context.Background(),
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGCSSinkStore(t *testing.T) {
	fake := &fakeServer{respond: `{"bucket":"out","name":"task-1/1.json"}`}
	server := httptest.NewServer(fake)
	defer server.Close()

	sink := storage.NewGCSSink(newGCSClient(t, server), "out")
	location, err := sink.Store(context.Background(), sampleDocument(), "task-1/1.json")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.cloud.google.com/out/task-1/1.json", location)

	requests := fake.recorded()
	require.NotEmpty(t, requests)
	upload := requests[len(requests)-1]
	assert.Equal(t, http.MethodPost, upload.method)
	assert.True(t, strings.HasSuffix(upload.path, "/b/out/o"), upload.path)
	assert.Contains(t, upload.body, sampleDocumentJSON)
	assert.Contains(t, upload.body, "application/json")
}

func TestGCSSinkStoreFailure(t *testing.T) {
	fake := &fakeServer{status: http.StatusForbidden, respond: `{"error":{"code":403,"message":"denied"}}`}
	server := httptest.NewServer(fake)
	defer server.Close()

	sink := storage.NewGCSSink(newGCSClient(t, server), "out", storage.WithPublicHost("cdn.example.com"))
	location, err := sink.Store(context.Background(), sampleDocument(), "task-1/2.json")
	assert.Empty(t, location)

	var storageErr *model.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "task-1/2.json", storageErr.Path)
	assert.Equal(t, model.ClassUnavailable, model.Classify(err))
}

func TestGCSSinkEncodingFailureIsNotStorageError(t *testing.T) {
	fake := &fakeServer{}
	server := httptest.NewServer(fake)
	defer server.Close()

	sink := storage.NewGCSSink(newGCSClient(t, server), "out")
	_, err := sink.Store(context.Background(), map[string]any{"bad": make(chan int)}, "task-1/3.json")
	require.Error(t, err)
	var storageErr *model.StorageError
	assert.False(t, errors.As(err, &storageErr))
	assert.Empty(t, fake.recorded())
}

func newMinioClient(t *testing.T, server *httptest.Server) *minio.Client {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  miniocreds.NewStaticV4("access", "secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return client
}

func TestS3SinkStore(t *testing.T) {
	fake := &fakeServer{}
	server := httptest.NewServer(fake)
	defer server.Close()

	sink := storage.NewS3Sink(newMinioClient(t, server), "out")
	location, err := sink.Store(context.Background(), sampleDocument(), "task-1/1.json")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/out/task-1/1.json", location)

	requests := fake.recorded()
	require.NotEmpty(t, requests)
	put := requests[len(requests)-1]
	assert.Equal(t, http.MethodPut, put.method)
	assert.Equal(t, "/out/task-1/1.json", put.path)
	assert.Contains(t, put.body, `"total_duration_seconds": 5.2`)
}

func TestS3SinkStoreFailure(t *testing.T) {
	fake := &fakeServer{status: http.StatusForbidden, respond: `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := storage.NewS3Sink(newMinioClient(t, server), "out").Store(context.Background(), sampleDocument(), "task-1/1.json")
	var storageErr *model.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "task-1/1.json", storageErr.Path)
}

func TestS3SinkSignedURL(t *testing.T) {
	fake := &fakeServer{}
	server := httptest.NewServer(fake)
	defer server.Close()

	signed, err := storage.NewS3Sink(newMinioClient(t, server), "out").SignedURL(context.Background(), "task-1/1.json", 10*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/out/task-1/1.json", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3SinkEnsureBucketExisting(t *testing.T) {
	fake := &fakeServer{}
	server := httptest.NewServer(fake)
	defer server.Close()

	require.NoError(t, storage.NewS3Sink(newMinioClient(t, server), "out").EnsureBucket(context.Background(), "us-east-1"))
	requests := fake.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodHead, requests[0].method)
}

// newIAMClient returns an IAM Credentials REST client whose signBlob calls
// are answered by handler.
func newIAMClient(t *testing.T, handler http.HandlerFunc) *credentials.IamCredentialsClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := credentials.NewIamCredentialsRESTClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGCSSinkSignedURLThroughIAM(t *testing.T) {
	var signPaths []string
	iam := newIAMClient(t, func(w http.ResponseWriter, r *http.Request) {
		signPaths = append(signPaths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// "signature", base64 encoded
		_, _ = io.WriteString(w, `{"keyId":"k1","signedBlob":"c2lnbmF0dXJl"}`)
	})
	gcsServer := httptest.NewServer(&fakeServer{})
	defer gcsServer.Close()

	sink := storage.NewGCSSink(newGCSClient(t, gcsServer), "out",
		storage.WithIAMSigner(iam, "signer@media-prod.iam.gserviceaccount.com"))
	signed, err := sink.SignedURL(context.Background(), "task-1/2.json", 10*time.Minute)
	require.NoError(t, err)

	require.Len(t, signPaths, 1)
	assert.Contains(t, signPaths[0], "serviceAccounts/signer@media-prod.iam.gserviceaccount.com:signBlob")

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/out/task-1/2.json"), u.Path)
	query := u.Query()
	assert.Equal(t, "GOOG4-RSA-SHA256", query.Get("X-Goog-Algorithm"))
	assert.Equal(t, "600", query.Get("X-Goog-Expires"))
	assert.True(t, strings.HasPrefix(query.Get("X-Goog-Credential"), "signer@media-prod.iam.gserviceaccount.com/"))
	assert.Equal(t, "7369676e6174757265", query.Get("X-Goog-Signature"))
}

func TestGCSSinkSignedURLSigningFailure(t *testing.T) {
	iam := newIAMClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"Permission iam.serviceAccounts.signBlob denied","status":"PERMISSION_DENIED"}}`)
	})
	gcsServer := httptest.NewServer(&fakeServer{})
	defer gcsServer.Close()

	sink := storage.NewGCSSink(newGCSClient(t, gcsServer), "out",
		storage.WithIAMSigner(iam, "signer@media-prod.iam.gserviceaccount.com"))
	signed, err := sink.SignedURL(context.Background(), "task-1/2.json", time.Minute)
	assert.Empty(t, signed)

	var storageErr *model.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "task-1/2.json", storageErr.Path)
	assert.Contains(t, err.Error(), "SignBlob")
}
