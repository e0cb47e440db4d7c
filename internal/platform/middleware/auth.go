package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	id "terrasync/pkg/domain"
	"terrasync/pkg/requestcontext"
)

// TokenValidator validates a collector bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims are the claims the sync endpoints need from a device token.
type TokenClaims struct {
	CollectorID id.CollectorID
	DeviceID    string
}

// RequireCollectorAuth rejects requests without a valid collector bearer
// token and places the collector and device identity in the context.
func RequireCollectorAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w)
				return
			}
			ctx := requestcontext.WithCollectorID(r.Context(), claims.CollectorID)
			ctx = requestcontext.WithDeviceID(ctx, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}

// DeviceDescription summarizes the calling device from its User-Agent for
// sync session bookkeeping. Best effort; an empty header yields "unknown".
func DeviceDescription(r *http.Request) string {
	raw := r.Header.Get("User-Agent")
	if raw == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	parts := []string{}
	if ua.Platform() != "" {
		parts = append(parts, ua.Platform())
	}
	if ua.OS() != "" {
		parts = append(parts, ua.OS())
	}
	if name != "" {
		parts = append(parts, name+"/"+version)
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, " ")
}
