// Package quoteshttp exposes the quote editor API.
package quoteshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/polarline/hvacdesk/internal/platform/httpx"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
	"github.com/polarline/hvacdesk/report"
)

// Enqueuer schedules background archiving of a saved quote.
type Enqueuer interface {
	EnqueueQuoteArchive(ctx context.Context, key string, opts quotes.DocumentOptions) (string, error)
}

// Handler serves /quotes.
type Handler struct {
	service      *quotes.Service
	ref          quotes.ReferenceSource
	converter    report.Converter
	jobs         Enqueuer
	defaultForex float64
	logger       *slog.Logger
}

// Params wires the handler. Converter and Jobs are optional; the endpoints
// that need them answer 503 when absent.
type Params struct {
	Service      *quotes.Service
	Reference    quotes.ReferenceSource
	Converter    report.Converter
	Jobs         Enqueuer
	DefaultForex float64
	Logger       *slog.Logger
}

// NewHandler builds the quote handler.
func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:      p.Service,
		ref:          p.Reference,
		converter:    p.Converter,
		jobs:         p.Jobs,
		defaultForex: p.DefaultForex,
		logger:       logger,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	desc, _ := strconv.ParseBool(query.Get("desc"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	list, err := h.service.List(r.Context(), quotes.ListOptions{
		OrderBy:    query.Get("order_by"),
		Descending: desc,
		Limit:      limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]quoteSummary, 0, len(list))
	for _, q := range list {
		out = append(out, summarize(q))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) newDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.NewDraft(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.NextNumber(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"next_number": n})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summarize(r.Context(), q)
	if err != nil {
		h.logger.Error("calculate quote", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	html, err := h.service.Preview(r.Context(), q)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	httpx.HTML(w, http.StatusOK, html)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	if h.converter == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "PDF Unavailable", "no PDF backend configured")
		return
	}
	q, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	html, err := h.service.Preview(r.Context(), q)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	pdf, err := h.converter.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("convert quote to pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "PDF Conversion Failed", err.Error())
		return
	}
	name := "quote.pdf"
	if q.Control.QuoteNumber > 0 {
		name = fmt.Sprintf("QN%04d.pdf", q.Control.QuoteNumber)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	saved, err := h.service.Save(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Load(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, "unknown status", map[string]string{"status": "must be a known status"})
		return
	}
	q, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "key"), req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarize(q))
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Archive Unavailable", "no job queue configured")
		return
	}
	key := chi.URLParam(r, "key")
	q, err := h.service.Load(r.Context(), key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req archiveRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	opts := q.Options
	if req.Options != nil {
		opts = *req.Options
	}
	taskID, err := h.jobs.EnqueueQuoteArchive(r.Context(), q.Key, opts)
	if err != nil {
		h.logger.Error("enqueue quote archive", slog.String("key", key), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "key": q.Key})
}

// decodeDraft parses the request body into a quote and applies the customer
// tier discount when none was sent.
func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (*quotes.Quote, bool) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return nil, false
	}
	ref, err := h.ref.Get(r.Context())
	if err != nil {
		h.logger.Error("load reference", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Reference Data Unavailable", "")
		return nil, false
	}
	q, err := req.toQuote(ref, h.defaultForex)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	if !req.hasDiscount() {
		if err := h.service.ApplyTier(r.Context(), q); err != nil {
			h.logger.Warn("apply pricing tier", slog.Any("error", err))
		}
	}
	return q, true
}

func (h *Handler) respondRenderError(w http.ResponseWriter, err error) {
	if quotes.IsValidation(err) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error("render quote", slog.Any("error", err))
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.Problem(w, http.StatusGatewayTimeout, "Render Timeout", "")
		return
	}
	httpx.Problem(w, http.StatusInternalServerError, "Render Failed", "")
}
