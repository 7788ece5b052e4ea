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

// Package api exposes combination generation over HTTP with gin.
//
//	POST /generate                            run a task synchronously
//	GET  /tasks                               most recent ledger rows
//	GET  /tasks/:id                           ledger row of one task
//	GET  /tasks/:id/combinations/:index/url   signed read URL of one document
//	POST /tasks/files                         upload task files to the input bucket
//	GET  /healthz                             liveness
//
// Failures map onto status codes by error class: input errors are 400,
// storage failures 503 and anything else 500 with a redacted message.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/services"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Generator runs one task to completion.
type Generator interface {
	Generate(ctx context.Context, spec *model.TaskSpecification, taskID string) (*model.TaskResult, error)
}

// TaskLedger is the task history store.
type TaskLedger interface {
	Record(ctx context.Context, record *model.TaskRecord) error
	Get(ctx context.Context, id string) (*model.TaskRecord, error)
	List(ctx context.Context, limit int) ([]*model.TaskRecord, error)
}

// TaskFileUploader stores an uploaded task file and returns its URI.
type TaskFileUploader interface {
	Upload(ctx context.Context, name string, content io.Reader) (string, error)
}

// Handler serves the API. Ledger, Signer and Uploader are optional; routes
// that need a missing collaborator answer 501.
type Handler struct {
	Generator    Generator
	Ledger       TaskLedger
	Signer       storage.URLSigner
	Uploader     TaskFileUploader
	SignedURLTTL time.Duration
}

// Register mounts the routes on r.
func (h *Handler) Register(r *gin.RouterGroup) {
	r.GET("/healthz", h.health)
	r.POST("/generate", h.generate)
	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.listTasks)
		tasks.GET("/:id", h.getTask)
		tasks.GET("/:id/combinations/:index/url", h.combinationURL)
		tasks.POST("/files", h.uploadTaskFiles)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusFor maps an error onto the HTTP status reported to the caller.
func StatusFor(err error) int {
	switch model.Classify(err) {
	case model.ClassInput:
		return http.StatusBadRequest
	case model.ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) generate(c *gin.Context) {
	request := &model.GenerationRequest{}
	if err := c.ShouldBindJSON(request); err != nil {
		h.fail(c, "", &model.InputValidationError{Reason: err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		h.fail(c, request.TaskID, err)
		return
	}
	if request.TaskID != "" && !taskIDPattern.MatchString(request.TaskID) {
		h.fail(c, request.TaskID, &model.InputValidationError{Reason: "task_id may only contain letters, digits, '-' and '_'"})
		return
	}
	if request.TaskID == "" {
		request.TaskID = uuid.NewString()
	}

	ctx := c.Request.Context()
	result, err := h.Generator.Generate(ctx, &request.TaskSpecification, request.TaskID)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "task_name", request.TaskName, "class", model.Classify(err).String(), "error", err)
		h.record(ctx, model.NewFailedTaskRecord(request.TaskID, request.TaskName, model.PublicMessage(err)))
		h.fail(c, request.TaskID, err)
		return
	}
	h.record(ctx, model.NewTaskRecord(result))
	c.JSON(http.StatusOK, result)
}

// record writes to the ledger on a best-effort basis; the caller's response
// does not depend on it.
func (h *Handler) record(ctx context.Context, record *model.TaskRecord) {
	if h.Ledger == nil {
		return
	}
	if err := h.Ledger.Record(ctx, record); err != nil {
		slog.WarnContext(ctx, "failed to record task", "task_id", record.Id, "error", err)
	}
}

func (h *Handler) fail(c *gin.Context, taskID string, err error) {
	body := gin.H{"status": model.StatusFailed, "message": model.PublicMessage(err)}
	if taskID != "" {
		body["task_id"] = taskID
	}
	c.JSON(StatusFor(err), body)
}

func (h *Handler) listTasks(c *gin.Context) {
	if h.Ledger == nil {
		notConfigured(c, "task ledger")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultListLimit)))
	if err != nil || limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	records, err := h.Ledger.List(c.Request.Context(), limit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list tasks", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) getTask(c *gin.Context) {
	if h.Ledger == nil {
		notConfigured(c, "task ledger")
		return
	}
	id := c.Param("id")
	if !taskIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	record, err := h.Ledger.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to read task", "task_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// combinationURL signs the document of the 1-based combination index.
func (h *Handler) combinationURL(c *gin.Context) {
	if h.Signer == nil {
		notConfigured(c, "url signing")
		return
	}
	id := c.Param("id")
	if !taskIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a positive integer"})
		return
	}
	ttl := h.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	url, err := h.Signer.SignedURL(c.Request.Context(), model.ArtifactPath(id, index-1), ttl)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to sign url", "task_id", id, "index", index, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in_seconds": int(ttl.Seconds())})
}

// uploadTaskFiles stores each multipart "files" entry in the task input
// bucket, where the storage notification picks it up.
func (h *Handler) uploadTaskFiles(c *gin.Context) {
	if h.Uploader == nil {
		notConfigured(c, "task file uploads")
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form expected"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}
	uris := make([]string, 0, len(files))
	for _, file := range files {
		if !strings.HasSuffix(strings.ToLower(file.Filename), ".json") {
			c.JSON(http.StatusBadRequest, gin.H{"error": file.Filename + " is not a .json task file", "uploaded": uris})
			return
		}
		content, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file " + file.Filename})
			return
		}
		uri, err := h.Uploader.Upload(c.Request.Context(), file.Filename, content)
		_ = content.Close()
		if model.Classify(err) == model.ClassInput {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "uploaded": uris})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to upload task file", "file", file.Filename, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to store " + file.Filename, "uploaded": uris})
			return
		}
		uris = append(uris, uri)
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": uris})
}

func notConfigured(c *gin.Context, feature string) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": feature + " is not configured"})
}
