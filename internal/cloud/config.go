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

// Package cloud holds the service configuration and the Google Cloud (and
// S3-compatible) clients shared by the server.
//
// Configuration is layered TOML: `.env.toml` first, then
// `.env.<GCP_RUNTIME>.toml` on top, both read from GCP_CONFIG_PREFIX.
package cloud

// Storage backends accepted by Storage.Backend.
const (
	StorageBackendGCS = "gcs"
	StorageBackendS3  = "s3"
)

// Logical subscription names understood by the server.
const (
	GenerationSubscription = "GenerationTopic"
	TaskFileSubscription   = "TaskFileTopic"
)

// ResultsTopic is the logical name of the topic task results are published to.
const ResultsTopic = "ResultsTopic"

type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	TaskTable   string `toml:"task_table"`
}

type TopicSubscription struct {
	Name             string `toml:"name"`               // Pub/Sub subscription id.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // Informational; dead lettering is configured on the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Upper bound for handling one message.
}

type Topic struct {
	Name string `toml:"name"` // Pub/Sub topic id.
}

// Storage selects where combination documents are written.
type Storage struct {
	Backend             string `toml:"backend"`                // "gcs" (default) or "s3".
	OutputBucket        string `toml:"output_bucket"`          // Bucket receiving "<task_id>/<n>.json".
	TaskInputBucket     string `toml:"task_input_bucket"`      // Bucket that task files are uploaded to.
	PublicHost          string `toml:"public_host"`            // GCS host used in returned locations.
	SignedURLTTLSeconds int    `toml:"signed_url_ttl_seconds"` // Lifetime of signed read URLs.
}

// ObjectStore configures the S3-compatible backend.
type ObjectStore struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Probe configures the ffprobe-backed media probe.
type Probe struct {
	FFProbeCommand    string   `toml:"ffprobe_command"`
	TimeoutInSeconds  int      `toml:"timeout_in_seconds"`
	RequestsPerSecond float64  `toml:"requests_per_second"` // Zero disables rate limiting.
	MaxRetries        int      `toml:"max_retries"`
	AllowedSchemes    []string `toml:"allowed_schemes"` // Locator schemes handed to ffprobe.
}

type Server struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // Signs GCS URLs through the IAM API when set.
		CredentialsFile           string `toml:"credentials_file"`             // Service account key; ADC when empty.
		TelemetryEnabled          bool   `toml:"telemetry_enabled"`
		LogLevel                  string `toml:"log_level"`
		LogFile                   string `toml:"log_file"`
	} `toml:"application"`
	Server             Server                       `toml:"server"`
	Storage            Storage                      `toml:"storage"`
	ObjectStore        ObjectStore                  `toml:"object_store"`
	Probe              Probe                        `toml:"probe"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "GenerationTopic".
	Topics             map[string]Topic             `toml:"topics"`              // Keyed by logical name, e.g. "ResultsTopic".
}

// NewConfig returns a Config with its maps allocated and the defaults that
// the TOML files may override.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		Topics:             make(map[string]Topic),
	}
	c.Application.TelemetryEnabled = true
	c.Application.LogLevel = "info"
	c.Server.Port = "8080"
	c.Storage.Backend = StorageBackendGCS
	c.Storage.SignedURLTTLSeconds = 900
	c.Probe.FFProbeCommand = "ffprobe"
	c.Probe.TimeoutInSeconds = 30
	c.Probe.MaxRetries = 3
	c.Probe.AllowedSchemes = []string{"https", "http", "file"}
	return c
}
