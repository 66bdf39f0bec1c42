package rest

import (
	"net/http"

	"github.com/heartmarshall/dutchstory-backend/internal/transport/middleware"
)

// NewRouter registers all routes. askLimit wraps /ask only; unknown paths
// get the mux's 404.
func NewRouter(tutor *TutorHandler, health *HealthHandler, askLimit middleware.Middleware) *http.ServeMux {
	if askLimit == nil {
		askLimit = func(next http.Handler) http.Handler { return next }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", tutor.Root)
	mux.Handle("GET /ask", askLimit(http.HandlerFunc(tutor.Ask)))
	mux.HandleFunc("GET /live", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.HandleFunc("GET /health", health.Health)
	return mux
}
