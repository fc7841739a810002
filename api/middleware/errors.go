package middleware

import (
	"encoding/json"
	"net/http"

	"hdrEnhancer/api/dto"
)

func writeError(w http.ResponseWriter, status int, message, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}
