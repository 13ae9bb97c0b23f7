package report

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes PDF backend health.
type Handler struct {
	converter Converter
	logger    *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(converter Converter, logger *slog.Logger) *Handler {
	return &Handler{converter: converter, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.converter.Ping(r.Context()); err != nil {
		h.logger.Warn("pdf backend ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
