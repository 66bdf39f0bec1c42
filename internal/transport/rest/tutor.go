package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/pkg/ctxutil"
)

// Usage is the static text served at the root path.
const Usage = `Dutch Language Learning API
--------------------------
Access the API at /ask with a 'query' parameter.
Example: /ask?query="Tell me a story about a cat in Dutch. I am a beginner."

Options:
- format: Set to "json" for JSON output (default is "text")

Health checks are available at /live, /ready and /health.
`

// askService defines the minimal interface needed by TutorHandler.
type askService interface {
	Ask(ctx context.Context, query string) (*domain.LearningParagraph, error)
}

// TutorHandler serves the root usage text and the /ask endpoint.
type TutorHandler struct {
	svc     askService
	timeout time.Duration
	log     *slog.Logger
}

// NewTutorHandler creates a TutorHandler. A positive timeout bounds each
// /ask pipeline run.
func NewTutorHandler(svc askService, timeout time.Duration, logger *slog.Logger) *TutorHandler {
	return &TutorHandler{svc: svc, timeout: timeout, log: logger.With("handler", "tutor")}
}

// Root handles GET /.
func (h *TutorHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, Usage)
}

// Ask handles GET /ask?query=...&format=text|json.
func (h *TutorHandler) Ask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	asJSON := strings.EqualFold(strings.TrimSpace(q.Get("format")), "json")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	paragraph, err := h.svc.Ask(ctx, query)
	if err != nil {
		h.writeAskError(ctx, w, err)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusOK, paragraph)
		return
	}
	writeText(w, http.StatusOK, FormatText(paragraph))
}

func (h *TutorHandler) writeAskError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	var message string
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSchemaViolation):
		status, message = http.StatusBadGateway, "the model returned a malformed paragraph"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "generation timed out"
	default:
		status, message = http.StatusInternalServerError, "generation failed"
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.log.Log(ctx, level, "ask failed",
		slog.Int("status", status),
		slog.String("error", err.Error()),
		ctxutil.RequestIDAttr(ctx),
	)

	writeError(w, status, message)
}
