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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Directory holding the configuration files.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Runtime overlay: "local", "test", "prod"...
	DefaultRuntime      = "test"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime overlay file names derived from
// the environment.
func ConfigFiles() (base string, overlay string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = DefaultRuntime
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	overlay = prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension
	return base, overlay
}

// LoadConfig decodes the base file and then the runtime overlay into
// baseConfig. Missing files are skipped; a file that fails to decode is an
// error.
func LoadConfig(baseConfig any) error {
	base, overlay := ConfigFiles()
	for _, name := range []string{base, overlay} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Debug("configuration file loaded", "file", name)
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StorageBackendGCS:
	case StorageBackendS3:
		if c.ObjectStore.Endpoint == "" {
			errs = append(errs, errors.New("object_store.endpoint is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Storage.OutputBucket == "" {
		errs = append(errs, errors.New("storage.output_bucket is required"))
	}
	if c.Probe.TimeoutInSeconds <= 0 {
		errs = append(errs, errors.New("probe.timeout_in_seconds must be positive"))
	}
	return errors.Join(errs...)
}

// ProbeTimeout is the per-probe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutInSeconds) * time.Second
}

// SignedURLTTL is the lifetime of signed read URLs, 15 minutes when unset.
func (c *Config) SignedURLTTL() time.Duration {
	if c.Storage.SignedURLTTLSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Storage.SignedURLTTLSeconds) * time.Second
}

// LedgerEnabled reports whether a BigQuery task table is configured.
func (c *Config) LedgerEnabled() bool {
	return c.BigQueryDataSource.DatasetName != "" && c.BigQueryDataSource.TaskTable != ""
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
