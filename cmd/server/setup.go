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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jaycherian/gcp-go-media-combinations/internal/api"
	"github.com/jaycherian/gcp-go-media-combinations/internal/cloud"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/combination"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/composer"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/pipeline"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/probe"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/services"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/storage"
)

// documentStore is a sink whose documents can be shared with signed URLs.
type documentStore interface {
	storage.Sink
	storage.URLSigner
}

// StateManager holds everything built at start-up.
type StateManager struct {
	config      *cloud.Config
	cloud       *cloud.ServiceClients
	pipeline    *pipeline.CombinationPipeline
	sink        documentStore
	taskService *services.TaskService
	taskFiles   *cloud.GCSTaskFiles
}

// SetupOS defaults the configuration directory and runtime when the
// environment leaves them unset.
func SetupOS() error {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads and validates the layered configuration.
func GetConfig() (*cloud.Config, error) {
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to set up environment: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// InitState creates the cloud clients and the generation pipeline.
func InitState(ctx context.Context, config *cloud.Config) (*StateManager, error) {
	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return nil, err
	}
	state := &StateManager{config: config, cloud: clients}

	switch config.Storage.Backend {
	case cloud.StorageBackendS3:
		s3 := storage.NewS3Sink(clients.MinioClient, config.Storage.OutputBucket)
		if err := s3.EnsureBucket(ctx, config.ObjectStore.Region); err != nil {
			clients.Close()
			return nil, err
		}
		state.sink = s3
	case cloud.StorageBackendGCS:
		opts := []storage.GCSOption{storage.WithPublicHost(config.Storage.PublicHost)}
		if clients.IAMClient != nil {
			opts = append(opts, storage.WithIAMSigner(clients.IAMClient, config.Application.SignerServiceAccountEmail))
		}
		state.sink = storage.NewGCSSink(clients.StorageClient, config.Storage.OutputBucket, opts...)
	default:
		clients.Close()
		return nil, errors.New("unknown storage backend " + config.Storage.Backend)
	}

	prober := probe.NewRateLimitedProber(
		probe.NewFFProbe(config.Probe.FFProbeCommand, config.ProbeTimeout(),
			probe.WithAllowedSchemes(config.Probe.AllowedSchemes...)),
		config.Probe.RequestsPerSecond,
		config.Probe.MaxRetries)
	state.pipeline = pipeline.NewCombinationPipeline(
		combination.NewBuilder(nil),
		composer.NewMetadataComposer(prober),
		state.sink)

	if clients.BiqQueryClient != nil {
		state.taskService = &services.TaskService{
			BigqueryClient: clients.BiqQueryClient,
			DatasetName:    config.BigQueryDataSource.DatasetName,
			TaskTable:      config.BigQueryDataSource.TaskTable,
		}
	}
	if clients.StorageClient != nil {
		state.taskFiles = cloud.NewGCSTaskFiles(clients.StorageClient, config.Storage.TaskInputBucket)
	}
	return state, nil
}

// Handler builds the HTTP handler. Optional collaborators are only set when
// configured so the handler sees nil interfaces rather than nil pointers.
func (s *StateManager) Handler() *api.Handler {
	h := &api.Handler{
		Generator:    s.pipeline,
		Signer:       s.sink,
		SignedURLTTL: s.config.SignedURLTTL(),
	}
	if s.taskService != nil {
		h.Ledger = s.taskService
	}
	if s.taskFiles != nil && s.config.Storage.TaskInputBucket != "" {
		h.Uploader = s.taskFiles
	}
	return h
}

func (s *StateManager) Close() {
	s.cloud.Close()
}
