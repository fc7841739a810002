package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
)

// Auth resolves the caller's identity and stores it in the request context.
// When requiredGroup is set the identity must be a member of it.
func Auth(authenticator auth.Authenticator, requiredGroup string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := GetTraceID(r.Context())

			id, err := authenticator.Authenticate(r)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingCredentials):
					writeError(w, http.StatusUnauthorized, "Authorization header required", traceID)
				case errors.Is(err, auth.ErrExpiredToken):
					writeError(w, http.StatusUnauthorized, "Token expired", traceID)
				case errors.Is(err, auth.ErrInvalidToken):
					writeError(w, http.StatusUnauthorized, "Invalid token", traceID)
				default:
					logger.Error("Authentication failed",
						zap.String("trace_id", traceID),
						zap.Error(err),
					)
					writeError(w, http.StatusInternalServerError, "Authentication error", traceID)
				}
				return
			}

			if requiredGroup != "" && !id.InGroup(requiredGroup) {
				logger.Warn("Access denied",
					zap.String("trace_id", traceID),
					zap.String("user", id.Username),
					zap.String("required_group", requiredGroup),
				)
				writeError(w, http.StatusForbidden, "Access denied", traceID)
				return
			}

			setRequestOwner(r.Context(), id.Username)
			next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), id)))
		})
	}
}
