package reference

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/polarline/hvacdesk/internal/platform/httpx"
)

// Handler serves the catalog endpoints.
type Handler struct {
	provider *Provider
	logger   *slog.Logger
}

// NewHandler builds the catalog handler.
func NewHandler(provider *Provider, logger *slog.Logger) *Handler {
	return &Handler{provider: provider, logger: logger}
}

// MountRoutes registers /products, /tiers and /tax.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.products)
	r.Get("/tiers", h.tiers)
	r.Get("/tax", h.tax)
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.load(w, r)
	if !ok {
		return
	}
	category := r.URL.Query().Get("category")
	products := make([]Product, 0, len(ref.Products))
	for _, p := range ref.Products {
		if category == "" || p.Category == category {
			products = append(products, p)
		}
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) tiers(w http.ResponseWriter, r *http.Request) {
	if ref, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, ref.Tiers)
	}
}

func (h *Handler) tax(w http.ResponseWriter, r *http.Request) {
	if ref, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, ref.Tax)
	}
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Reference, bool) {
	ref, err := h.provider.Get(r.Context())
	if err != nil {
		h.logger.Error("load reference data", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Reference Data Unavailable", "")
		return Reference{}, false
	}
	return ref, true
}
