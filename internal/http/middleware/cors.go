package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORSConfig is filled from the CORS_* settings.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS admits the browser front end. PATCH edits stories, DELETE removes
// chapters and stories, and Idempotency-Key makes payment retries safe.
// X-Request-Id is accepted and echoed back by chi's RequestID.
func CORS(c CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: c.AllowCredentials,
		MaxAge:           int(c.MaxAge / time.Second),
	})
}
