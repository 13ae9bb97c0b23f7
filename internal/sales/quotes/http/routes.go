package quoteshttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the quote endpoints relative to the mount point.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.newDraft)
	r.Get("/next-number", h.nextNumber)
	r.Post("/calculate", h.calculate)
	r.Post("/preview", h.preview)
	r.Post("/pdf", h.pdf)
	r.Post("/", h.save)
	r.Get("/{key}", h.load)
	r.Delete("/{key}", h.remove)
	r.Post("/{key}/status", h.setStatus)
	r.Post("/{key}/archive", h.archive)
}
