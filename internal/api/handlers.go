package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/feed-image-extractor/internal/archive"
	"github.com/maltedev/feed-image-extractor/internal/database"
	"github.com/maltedev/feed-image-extractor/internal/downloader"
	"github.com/maltedev/feed-image-extractor/internal/feed"
	"github.com/maltedev/feed-image-extractor/internal/fetcher"
	"github.com/maltedev/feed-image-extractor/internal/jobs"
	"github.com/maltedev/feed-image-extractor/internal/models"
)

const (
	maxFeedBodyBytes     = 256 << 20
	maxDownloadBodyBytes = 8 << 20

	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

type FeedService interface {
	ParseURL(ctx context.Context, url string, onScope feed.ScopeFunc, onProgress feed.ProgressFunc) (*models.ParsedFeed, error)
	ParseContent(text string) *models.ParsedFeed
}

type JobManager interface {
	CreateJob(ctx context.Context, feedURL string) (*database.FeedJob, error)
	GetJob(ctx context.Context, id string) (*database.FeedJob, error)
	ListJobs(ctx context.Context) ([]*database.FeedJob, error)
}

type ImageDownloader interface {
	Download(ctx context.Context, items []models.DownloadItem, opts downloader.Options) (*downloader.Result, error)
}

// BacklogReporter exposes outbox health.
type BacklogReporter interface {
	Backlog(ctx context.Context) (pending, deadLetter int64, err error)
}

type Handlers struct {
	feeds      FeedService
	jobs       JobManager
	downloader ImageDownloader
	archiver   downloader.Archiver
	backlog    BacklogReporter
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandlers wires the HTTP handlers. backlog may be nil.
func NewHandlers(feeds FeedService, jobs JobManager, dl ImageDownloader, archiver downloader.Archiver, backlog BacklogReporter, logger *slog.Logger) *Handlers {
	return &Handlers{
		feeds:      feeds,
		jobs:       jobs,
		downloader: dl,
		archiver:   archiver,
		backlog:    backlog,
		logger:     logger.With("component", "api"),
		now:        time.Now,
	}
}

type ParseRequest struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// ParseFeed parses a feed from a URL or from pasted content.
func (h *Handlers) ParseFeed(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !h.decode(w, r, maxFeedBodyBytes, &req) {
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" && strings.TrimSpace(req.Content) == "" {
		h.respondError(w, http.StatusBadRequest, "either url or content is required")
		return
	}

	var (
		result *models.ParsedFeed
		err    error
	)
	if strings.TrimSpace(req.Content) != "" {
		result = h.feeds.ParseContent(req.Content)
	} else {
		result, err = h.feeds.ParseURL(r.Context(), req.URL, nil, nil)
	}

	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fetcher.ErrFetchFailed):
		h.logger.Warn("feed fetch failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to parse feed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to parse feed")
		return
	}

	if len(result.Products) == 0 {
		h.respondError(w, http.StatusUnprocessableEntity, feed.ErrNoProducts.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

type ScopeRequest struct {
	Content string `json:"content"`
}

// EstimateScope returns the rough item and image counts of pasted content.
func (h *Handlers) EstimateScope(w http.ResponseWriter, r *http.Request) {
	var req ScopeRequest
	if !h.decode(w, r, maxFeedBodyBytes, &req) {
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		h.respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	h.respondJSON(w, http.StatusOK, feed.InitialScope(req.Content))
}

type CreateJobRequest struct {
	URL string `json:"url"`
}

type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, maxDownloadBodyBytes, &req) {
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.URL)
	if errors.Is(err, jobs.ErrInvalidURL) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, database.ErrJobNotFound) {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "id", jobID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, list)
}

type DownloadRequest struct {
	Items        []models.DownloadItem `json:"items"`
	UseFolders   bool                  `json:"use_folders"`
	CustomFolder string                `json:"custom_folder"`
}

// DownloadImages fetches the selected images and streams them back as one
// ZIP bundle.
func (h *Handlers) DownloadImages(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !h.decode(w, r, maxDownloadBodyBytes, &req) {
		return
	}

	if len(req.Items) == 0 {
		h.respondError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	result, err := h.downloader.Download(r.Context(), req.Items, downloader.Options{
		UseFolders:   req.UseFolders,
		CustomFolder: req.CustomFolder,
	})
	if errors.Is(err, downloader.ErrNoImagesDownloaded) {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("image download aborted", "error", err)
		h.respondError(w, http.StatusInternalServerError, "image download aborted")
		return
	}

	var buf bytes.Buffer
	if err := downloader.WriteBundle(&buf, h.archiver, result.Entries); err != nil {
		h.logger.Error("failed to write bundle", "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("bundle ready", "summary", result.Summary(), "bytes", buf.Len())

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.ArchiveName(h.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Download-Succeeded", strconv.Itoa(result.Succeeded))
	w.Header().Set("X-Download-Failed", strconv.Itoa(result.Failed))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to stream bundle", "error", err)
	}
}

// Health reports service status and, when available, the outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.backlog != nil {
		pending, deadLetter, err := h.backlog.Backlog(r.Context())
		if err != nil {
			h.logger.Warn("failed to read outbox backlog", "error", err)
			health["status"] = "error"
			health["message"] = "outbox unavailable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}

		health["outbox"] = map[string]interface{}{
			"pending":     pending,
			"dead_letter": deadLetter,
		}
		if pending > pendingWarnThreshold {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetter > deadLetterFailThreshold {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
