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
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"google.golang.org/api/option"
)

// ServiceClients bundles the cloud clients built from a Config. A client is
// only created when the configuration needs it; the others stay nil.
type ServiceClients struct {
	StorageClient  *storage.Client                   // GCS backend and task file reads.
	MinioClient    *minio.Client                     // S3 backend.
	PubsubClient   *pubsub.Client                    // Subscriptions and result topic.
	BiqQueryClient *bigquery.Client                  // Task ledger.
	IAMClient      *credentials.IamCredentialsClient // Signs GCS URLs for the signer service account.

	PubSubListeners map[string]*PubSubListener // Keyed by logical subscription name.
	Publishers      map[string]*TopicPublisher // Keyed by logical topic name.
}

// Close releases every client that was created.
func (c *ServiceClients) Close() {
	for _, p := range c.Publishers {
		p.Stop()
	}
	closers := map[string]interface{ Close() error }{}
	if c.StorageClient != nil {
		closers["storage"] = c.StorageClient
	}
	if c.PubsubClient != nil {
		closers["pubsub"] = c.PubsubClient
	}
	if c.BiqQueryClient != nil {
		closers["bigquery"] = c.BiqQueryClient
	}
	if c.IAMClient != nil {
		closers["iam"] = c.IAMClient
	}
	for name, closer := range closers {
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close client", "client", name, "error", err)
		}
	}
}

// ClientOptions returns the Google API options derived from the config.
func ClientOptions(config *Config) []option.ClientOption {
	opts := make([]option.ClientOption, 0)
	if config.Application.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.Application.CredentialsFile))
	}
	return opts
}

// NewCloudServiceClients builds the clients required by config. On error,
// clients created so far are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		Publishers:      make(map[string]*TopicPublisher),
	}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()
	opts := ClientOptions(config)

	_, taskFiles := config.TopicSubscriptions[TaskFileSubscription]
	if config.Storage.Backend == StorageBackendGCS || taskFiles {
		if cloud.StorageClient, err = storage.NewClient(ctx, opts...); err != nil {
			return cloud, fmt.Errorf("failed to create storage client: %w", err)
		}
	}

	if config.Storage.Backend == StorageBackendS3 {
		cloud.MinioClient, err = minio.New(config.ObjectStore.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(config.ObjectStore.AccessKey, config.ObjectStore.SecretKey, ""),
			Secure: config.ObjectStore.UseSSL,
			Region: config.ObjectStore.Region,
		})
		if err != nil {
			return cloud, fmt.Errorf("failed to create object store client: %w", err)
		}
	}

	if config.Application.SignerServiceAccountEmail != "" && config.Storage.Backend == StorageBackendGCS {
		if cloud.IAMClient, err = credentials.NewIamCredentialsRESTClient(ctx, opts...); err != nil {
			return cloud, fmt.Errorf("failed to create iam credentials client: %w", err)
		}
	}

	if config.LedgerEnabled() {
		if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId, opts...); err != nil {
			return cloud, fmt.Errorf("failed to create bigquery client: %w", err)
		}
	}

	if len(config.TopicSubscriptions) > 0 || len(config.Topics) > 0 {
		if config.Application.GoogleProjectId == "" {
			return cloud, errors.New("application.google_project_id is required for pub/sub")
		}
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId, opts...); err != nil {
			return cloud, fmt.Errorf("failed to create pubsub client: %w", err)
		}
	}

	for key, values := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, secondsToDuration(values.TimeoutInSeconds), nil)
		if err != nil {
			return cloud, fmt.Errorf("subscription %s: %w", key, err)
		}
		cloud.PubSubListeners[key] = listener
	}
	for key, values := range config.Topics {
		cloud.Publishers[key] = NewTopicPublisher(cloud.PubsubClient, values.Name)
	}

	slog.Info("cloud clients ready",
		"project", config.Application.GoogleProjectId,
		"storage_backend", config.Storage.Backend,
		"listeners", len(cloud.PubSubListeners),
		"publishers", len(cloud.Publishers))
	return cloud, nil
}
