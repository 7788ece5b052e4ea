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

// Package services holds the data-access services behind the HTTP API and
// the workflows.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// ErrTaskNotFound is returned by Get when the ledger has no row for the id.
var ErrTaskNotFound = errors.New("task not found")

// TaskService reads and writes the task ledger table in BigQuery. Rows are
// append-only; a task id may appear more than once when a message is
// redelivered, and Get returns the most recent row.
type TaskService struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	TaskTable      string
}

// GetFQN returns the table name in the `project.dataset.table` form used in
// Standard SQL.
func (s *TaskService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.TaskTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", 1)
}

// Record streams one ledger row into the task table.
func (s *TaskService) Record(ctx context.Context, record *model.TaskRecord) error {
	inserter := s.BigqueryClient.Dataset(s.DatasetName).Table(s.TaskTable).Inserter()
	if err := inserter.Put(ctx, record); err != nil {
		return fmt.Errorf("bigquery insert failed for task '%s': %w", record.Id, err)
	}
	return nil
}

// Get returns the latest ledger row for id, or ErrTaskNotFound.
func (s *TaskService) Get(ctx context.Context, id string) (*model.TaskRecord, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindTaskById, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	record := &model.TaskRecord{}
	err = itr.Next(record)
	if errors.Is(err, iterator.Done) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns up to limit of the most recently recorded tasks.
func (s *TaskService) List(ctx context.Context, limit int) ([]*model.TaskRecord, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryListRecentTasks, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.TaskRecord, 0)
	for {
		record := &model.TaskRecord{}
		err := itr.Next(record)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
