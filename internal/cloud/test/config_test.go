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

package cloud_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-combinations/internal/testutil"
)

const baseConfig = `
[application]
name = "media-combinations"
log_level = "info"

[storage]
backend = "gcs"
output_bucket = "media_combinations_output"
signed_url_ttl_seconds = 900

[probe]
timeout_in_seconds = 30

[big_query_data_source]
dataset = "media_ds"
task_table = "tasks"

[topic_subscriptions.GenerationTopic]
name = "media_generation_requests_sub"
timeout_in_seconds = 600
`

func TestConfigFiles(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, "")
	t.Setenv(cloud.EnvConfigRuntime, "")
	base, overlay := cloud.ConfigFiles()
	assert.Equal(t, ".env.toml", base)
	assert.Equal(t, ".env.test.toml", overlay)

	t.Setenv(cloud.EnvConfigFilePrefix, "configs")
	t.Setenv(cloud.EnvConfigRuntime, "prod")
	base, overlay = cloud.ConfigFiles()
	assert.Equal(t, filepath.Join("configs", ".env.toml"), base)
	assert.Equal(t, filepath.Join("configs", ".env.prod.toml"), overlay)
}

func TestLoadConfigOverlay(t *testing.T) {
	test.WriteConfig(t, "local", baseConfig, `
[application]
log_level = "debug"
telemetry_enabled = false

[storage]
output_bucket = "local_output"
`)
	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "media-combinations", config.Application.Name)
	assert.Equal(t, "debug", config.Application.LogLevel)
	assert.False(t, config.Application.TelemetryEnabled)
	assert.Equal(t, "local_output", config.Storage.OutputBucket)
	assert.Equal(t, cloud.StorageBackendGCS, config.Storage.Backend)
	assert.Equal(t, "media_generation_requests_sub", config.TopicSubscriptions[cloud.GenerationSubscription].Name)
	assert.True(t, config.LedgerEnabled())
	require.NoError(t, config.Validate())
}

func TestLoadConfigMissingFilesKeepsDefaults(t *testing.T) {
	test.WriteConfig(t, "local", "", "")
	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "ffprobe", config.Probe.FFProbeCommand)
	assert.Equal(t, 3, config.Probe.MaxRetries)
	assert.False(t, config.LedgerEnabled())
	assert.Error(t, config.Validate(), "no output bucket configured")
}

func TestLoadConfigMalformed(t *testing.T) {
	test.WriteConfig(t, "local", "[storage\nbackend = ", "")
	err := cloud.LoadConfig(cloud.NewConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env.toml")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cloud.Config)
		want   string
	}{
		{"valid", func(c *cloud.Config) {}, ""},
		{"unknown backend", func(c *cloud.Config) { c.Storage.Backend = "azure" }, `unknown storage.backend "azure"`},
		{"s3 without endpoint", func(c *cloud.Config) { c.Storage.Backend = cloud.StorageBackendS3 }, "object_store.endpoint is required"},
		{"s3 with endpoint", func(c *cloud.Config) {
			c.Storage.Backend = cloud.StorageBackendS3
			c.ObjectStore.Endpoint = "localhost:9000"
		}, ""},
		{"no bucket", func(c *cloud.Config) { c.Storage.OutputBucket = "" }, "storage.output_bucket is required"},
		{"no probe timeout", func(c *cloud.Config) { c.Probe.TimeoutInSeconds = 0 }, "probe.timeout_in_seconds must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := cloud.NewConfig()
			config.Storage.OutputBucket = "out"
			tt.mutate(config)
			err := config.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDurations(t *testing.T) {
	config := cloud.NewConfig()
	assert.Equal(t, "30s", config.ProbeTimeout().String())
	assert.Equal(t, "15m0s", config.SignedURLTTL().String())
	config.Storage.SignedURLTTLSeconds = 0
	assert.Equal(t, "15m0s", config.SignedURLTTL().String())
	config.Storage.SignedURLTTLSeconds = 60
	assert.Equal(t, "1m0s", config.SignedURLTTL().String())
}

func TestShouldAck(t *testing.T) {
	ctx := cor.NewBaseContext(context.Background())
	assert.True(t, cloud.ShouldAck(ctx))

	ctx.AddError("reader", &model.InputValidationError{Reason: "bad json"})
	assert.True(t, cloud.ShouldAck(ctx))

	ctx.AddError("generator", &model.StorageError{Path: "t/1.json", Err: errors.New("503")})
	assert.False(t, cloud.ShouldAck(ctx))
}

func TestGCSObjectString(t *testing.T) {
	object := &cloud.GCSObject{Bucket: "media_task_files", Name: "promo.json"}
	assert.Equal(t, "gs://media_task_files/promo.json", object.String())
}
