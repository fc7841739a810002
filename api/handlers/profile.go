package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/dto"
	"hdrEnhancer/api/middleware"
)

type ProfileService interface {
	GetProfile(ctx context.Context, id auth.Identity) (*dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, id auth.Identity, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error)
}

type ProfileHandler struct {
	service ProfileService
	logger  *zap.Logger
}

func NewProfileHandler(service ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := auth.FromContext(r.Context())
	if !ok {
		handleError(h.logger, w, "Authentication required", nil, traceID, http.StatusUnauthorized)
		return
	}

	resp, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		handleServiceError(h.logger, w, err, traceID)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id, ok := auth.FromContext(r.Context())
	if !ok {
		handleError(h.logger, w, "Authentication required", nil, traceID, http.StatusUnauthorized)
		return
	}

	var req dto.UpdateProfileRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		handleError(h.logger, w, "Invalid JSON body", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.UpdateProfile(r.Context(), id, &req)
	if err != nil {
		handleServiceError(h.logger, w, err, traceID)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
