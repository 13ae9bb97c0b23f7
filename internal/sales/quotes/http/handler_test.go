package quoteshttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
	"github.com/polarline/hvacdesk/internal/platform/httpx"
	"github.com/polarline/hvacdesk/internal/sales/documents"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

type stubConverter struct{ err error }

func (s stubConverter) RenderHTML(_ context.Context, html string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7 " + html[:15]), nil
}

func (stubConverter) Ping(context.Context) error { return nil }

type stubEnqueuer struct {
	keys []string
	opts []quotes.DocumentOptions
}

func (s *stubEnqueuer) EnqueueQuoteArchive(_ context.Context, key string, opts quotes.DocumentOptions) (string, error) {
	s.keys = append(s.keys, key)
	s.opts = append(s.opts, opts)
	return "task-1", nil
}

type fixture struct {
	router http.Handler
	jobs   *stubEnqueuer
}

func newFixture(t *testing.T, converter stubConverter) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ref := reference.NewProvider(nil, nil, reference.MustDefault(), logger)
	renderer, err := documents.NewRenderer(ref)
	require.NoError(t, err)
	repo := quotes.NewRepository(docstore.NewMemory(), quotes.Defaults{ForexRate: 58.5, SaleType: pricing.SaleDomestic}, logger)
	svc := quotes.NewService(repo, ref, renderer, quotes.Config{SeedNumber: 1, DefaultForexRate: 58.5}, logger)

	jobs := &stubEnqueuer{}
	h := NewHandler(Params{
		Service:      svc,
		Reference:    ref,
		Converter:    converter,
		Jobs:         jobs,
		DefaultForex: 58.5,
		Logger:       logger,
	})
	router := chi.NewRouter()
	router.Route("/quotes", h.MountRoutes)
	return &fixture{router: router, jobs: jobs}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

const scenarioBody = `{
	"customer": {"name": "Northwind Cold Storage", "billing_address": "12 Pier Road, Navotas", "sale_type": "Domestic"},
	"terms": {"discount_pct": "10"},
	"costing": {"forex_rate": 58.5},
	"items": [
		{"product_id": "DCT-5.0TR", "quantity": "2"},
		{"kind": "manual", "name": "Installation", "sale_price": "$500.00", "quantity": 1}
	]
}`

func TestCalculateScenario(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodPost, "/quotes/calculate", scenarioBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var summary quotes.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 5592.00, summary.Totals.Subtotal)
	assert.Equal(t, 559.20, summary.Totals.DiscountAmount)
	assert.Equal(t, 5032.80, summary.Totals.FinalSalePrice)
	assert.Equal(t, 2546.00, summary.Totals.CostSubtotal)
	assert.Equal(t, 2486.80, summary.Totals.GrossMargin)
	assert.Equal(t, 49.41, summary.Totals.MarginPct)
}

func TestCalculateAppliesTierWhenDiscountOmitted(t *testing.T) {
	f := newFixture(t, stubConverter{})
	body := `{"customer": {"name": "Reseller", "pricing_tier": "Dealer"}, "items": [{"kind": "manual", "name": "Unit", "sale_price": 1000, "quantity": "abc"}]}`
	rr := f.do(t, http.MethodPost, "/quotes/calculate", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary quotes.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 1000.0, summary.Totals.Subtotal)
	assert.Equal(t, 900.0, summary.Totals.FinalSalePrice)
}

func TestPreviewRejectsEmptyQuote(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodPost, "/quotes/preview", `{"customer": {"name": "Nobody"}, "items": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "line item")
}

func TestPreviewReturnsHTML(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodPost, "/quotes/preview", scenarioBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "Sales Quotation")
	assert.Contains(t, rr.Body.String(), "$5,032.80")
}

func TestUnknownProductAndBadJSON(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodPost, "/quotes/calculate", `{"customer": {"name": "X"}, "items": [{"product_id": "NOPE"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "items[0]")

	rr = f.do(t, http.MethodPost, "/quotes", `{"customer":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveLoadListLifecycle(t *testing.T) {
	f := newFixture(t, stubConverter{})

	rr := f.do(t, http.MethodPost, "/quotes", scenarioBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var saved quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))
	assert.True(t, strings.HasPrefix(saved.Key, "QN0001-"), saved.Key)
	assert.Equal(t, quotes.StatusDraft, saved.Status)

	rr = f.do(t, http.MethodGet, "/quotes/"+saved.Key, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/quotes/next-number", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"next_number": 2}`, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/quotes?order_by=id&desc=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []quoteSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 5032.80, list[0].FinalPrice)

	rr = f.do(t, http.MethodPost, "/quotes/"+saved.Key+"/status", `{"status": "SENT"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(t, http.MethodPost, "/quotes/"+saved.Key+"/status", `{"status": "INVOICED"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = f.do(t, http.MethodPost, "/quotes/"+saved.Key+"/status", `{"status": "LOST"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodPost, "/quotes/"+saved.Key+"/archive", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []string{saved.Key}, f.jobs.keys)
	assert.True(t, f.jobs.opts[0].Quotation)

	rr = f.do(t, http.MethodDelete, "/quotes/"+saved.Key, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodGet, "/quotes/"+saved.Key, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(t, http.MethodPost, "/quotes/"+saved.Key+"/archive", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoadedQuoteSavesBackInPlace(t *testing.T) {
	f := newFixture(t, stubConverter{})

	rr := f.do(t, http.MethodPost, "/quotes", scenarioBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var saved quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))

	rr = f.do(t, http.MethodGet, "/quotes/"+saved.Key, "")
	require.Equal(t, http.StatusOK, rr.Code)
	loadedBody := rr.Body.String()

	rr = f.do(t, http.MethodPost, "/quotes", loadedBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resaved quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resaved))
	assert.Equal(t, saved.Key, resaved.Key)
	assert.Equal(t, saved.Items, resaved.Items)
	assert.Equal(t, "Installation", resaved.Items[1].Name())
	assert.Equal(t, 5032.80, resaved.Totals.FinalSalePrice)

	var edited map[string]any
	require.NoError(t, json.Unmarshal([]byte(loadedBody), &edited))
	edited["control"].(map[string]any)["revision"] = "B"
	body, err := json.Marshal(edited)
	require.NoError(t, err)

	rr = f.do(t, http.MethodPost, "/quotes", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var revised quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &revised))
	assert.Equal(t, saved.Key, revised.Key)
	assert.True(t, strings.HasSuffix(revised.ID, " - Rev B"), revised.ID)

	rr = f.do(t, http.MethodGet, "/quotes", "")
	var list []quoteSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestNewDraftsWithSameNumberBothPersist(t *testing.T) {
	f := newFixture(t, stubConverter{})
	first := `{"customer": {"name": "First Co"}, "control": {"quote_number": 1}, "items": [{"kind": "manual", "name": "Survey", "sale_price": 100, "quantity": 1}]}`
	second := `{"customer": {"name": "Second Co"}, "control": {"quote_number": 1}, "items": [{"kind": "manual", "name": "Survey", "sale_price": 100, "quantity": 1}]}`

	rr := f.do(t, http.MethodPost, "/quotes", first)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var a quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))

	rr = f.do(t, http.MethodPost, "/quotes", second)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var b quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, 2, b.Control.QuoteNumber)

	rr = f.do(t, http.MethodGet, "/quotes/"+a.Key, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "First Co")

	rr = f.do(t, http.MethodPost, "/quotes", `{"key": "QN0404-2025", "customer": {"name": "Ghost"}, "items": [{"kind": "manual", "name": "X", "sale_price": 1}]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewDraftEndpoint(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodGet, "/quotes/new", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var draft quotes.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &draft))
	assert.Equal(t, 1, draft.Control.QuoteNumber)
	assert.True(t, draft.Options.Quotation)
}

func TestPDFEndpoint(t *testing.T) {
	f := newFixture(t, stubConverter{})
	rr := f.do(t, http.MethodPost, "/quotes/pdf", scenarioBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF-1.7"))

	failing := newFixture(t, stubConverter{err: errors.New("gotenberg down")})
	rr = failing.do(t, http.MethodPost, "/quotes/pdf", scenarioBody)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestFlexNumber(t *testing.T) {
	var v struct {
		A flexNumber   `json:"a"`
		B flexNumber   `json:"b"`
		C flexNumber   `json:"c"`
		D flexQuantity `json:"d"`
		E flexQuantity `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "₱1,250.50", "b": "oops", "c": null, "d": "2.9", "e": -4}`), &v))
	assert.Equal(t, 1250.5, float64(v.A))
	assert.Zero(t, float64(v.B))
	assert.Zero(t, float64(v.C))
	assert.Equal(t, 2, int(v.D))
	assert.Zero(t, int(v.E))
}
