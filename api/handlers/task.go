package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/dto"
	"hdrEnhancer/api/middleware"
	"hdrEnhancer/api/validation"
)

const maxMemory = 32 << 20

type TaskService interface {
	CreateTask(ctx context.Context, traceID string, id auth.Identity, req *dto.CreateTaskRequest) (*dto.UploadResponse, error)
	GetTaskStatus(ctx context.Context, owner, taskID string) (*dto.TaskResponse, error)
	History(ctx context.Context, owner string, limit, offset int) (*dto.HistoryResponse, error)
	CancelTask(ctx context.Context, owner, taskID string) (*dto.CancelResponse, error)
	GetResult(ctx context.Context, owner, taskID string) (*dto.ResultFile, error)
}

type TaskHandler struct {
	service TaskService
	logger  *zap.Logger
	limits  validation.Limits
}

func NewTaskHandler(service TaskService, logger *zap.Logger, limits validation.Limits) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
		limits:  limits,
	}
}

func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	if h.limits.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxFileSize+maxMemory)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, "File too large", err, traceID, http.StatusRequestEntityTooLarge)
			return
		}
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.handleError(w, "No image provided", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateFilename(header.Filename); err != nil {
		h.handleError(w, err.Error(), err, traceID, http.StatusBadRequest)
		return
	}

	format, err := validation.ValidateUpload(header.Header.Get("Content-Type"), header.Size, file, h.limits)
	if err != nil {
		h.handleError(w, err.Error(), err, traceID, http.StatusBadRequest)
		return
	}

	req := &dto.CreateTaskRequest{
		OriginalFilename: header.Filename,
		InputFormat:      format,
		Size:             header.Size,
		Body:             file,
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, id, req)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.TaskID),
		zap.String("job_handle", resp.JobHandle),
		zap.String("owner", id.Username),
		zap.String("filename", header.Filename),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), id.Username, taskID)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		h.handleError(w, "limit must be an integer", err, traceID, http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.handleError(w, "offset must be an integer", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.History(r.Context(), id.Username, limit, offset)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CancelTask(r.Context(), id.Username, taskID)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.logger.Info("Task cancelled",
		zap.String("trace_id", traceID),
		zap.String("task_id", taskID),
		zap.String("owner", id.Username),
	)

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Result(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	file, err := h.service.GetResult(r.Context(), id.Username, taskID)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}
	defer file.Body.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, file.Body); err != nil {
		h.logger.Warn("Result stream interrupted",
			zap.String("trace_id", traceID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}

func (h *TaskHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok || id.Username == "" {
		h.handleError(w, "Authentication required", nil, middleware.GetTraceID(r.Context()), http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return id, true
}

func (h *TaskHandler) handleServiceError(w http.ResponseWriter, err error, traceID string) {
	handleServiceError(h.logger, w, err, traceID)
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	handleError(h.logger, w, message, err, traceID, status)
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
