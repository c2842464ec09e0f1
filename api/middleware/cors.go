package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS applies the storefront origin policy. The session header is exposed so
// browser clients can persist an issued key.
func CORS(origins []string, sessionHeader string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionHeader, "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{sessionHeader, "Location", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
