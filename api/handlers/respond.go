package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hdrEnhancer/api/dto"
	"hdrEnhancer/api/validation"
)

// handleServiceError maps service errors onto client responses. Anything
// unrecognised is reported as a generic 500.
func handleServiceError(logger *zap.Logger, w http.ResponseWriter, err error, traceID string) {
	switch {
	case errors.Is(err, dto.ErrTaskNotFound):
		handleError(logger, w, "Task not found", err, traceID, http.StatusNotFound)
	case errors.Is(err, dto.ErrResultUnavailable):
		handleError(logger, w, "Task not completed or no result available", err, traceID, http.StatusNotFound)
	case errors.Is(err, dto.ErrInvalidState):
		handleError(logger, w, "Task cannot be cancelled in its current state", err, traceID, http.StatusBadRequest)
	case errors.Is(err, dto.ErrQuotaExceeded):
		handleError(logger, w, "Daily processing limit reached", err, traceID, http.StatusTooManyRequests)
	case errors.Is(err, dto.ErrValidation),
		errors.Is(err, validation.ErrInvalidFileType),
		errors.Is(err, validation.ErrFileTooLarge),
		errors.Is(err, validation.ErrContentMismatch),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrUnreadableImage),
		errors.Is(err, validation.ErrImageTooLarge),
		errors.Is(err, validation.ErrInvalidFilename):
		handleError(logger, w, err.Error(), err, traceID, http.StatusBadRequest)
	default:
		handleError(logger, w, "Internal server error", err, traceID, http.StatusInternalServerError)
	}
}

func handleError(logger *zap.Logger, w http.ResponseWriter, message string, err error, traceID string, status int) {
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error(message, fields...)
	} else {
		logger.Info(message, fields...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
