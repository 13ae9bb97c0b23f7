package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/polarline/hvacdesk/internal/jobs"
	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/platform/archive"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
	"github.com/polarline/hvacdesk/internal/sales/documents"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

type fakeConverter struct{ calls int }

func (f *fakeConverter) RenderHTML(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte("%PDF-1.7 fake"), nil
}

func (f *fakeConverter) Ping(context.Context) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQuoteService(t *testing.T, now func() time.Time) (*quotes.Service, *documents.Renderer) {
	t.Helper()
	ref := reference.NewProvider(nil, nil, reference.MustDefault(), discardLogger())
	renderer, err := documents.NewRenderer(ref)
	require.NoError(t, err)
	repo := quotes.NewRepository(docstore.NewMemory(), quotes.Defaults{ForexRate: 58.5, SaleType: pricing.SaleDomestic}, discardLogger())
	return quotes.NewService(repo, ref, renderer, quotes.Config{DefaultForexRate: 58.5, Now: now}, discardLogger()), renderer
}

func savedQuote(t *testing.T, svc *quotes.Service) *quotes.Quote {
	t.Helper()
	q, err := svc.Save(context.Background(), &quotes.Quote{
		Customer: quotes.Customer{Name: "Harbor Foods Inc.", SaleType: pricing.SaleDomestic},
		Costing:  pricing.Costing{ForexRate: 58.5},
		Options:  quotes.DocumentOptions{Quotation: true},
		Items:    []quotes.LineItem{quotes.NewManualItem("Chiller service", "", 1000, nil, 1)},
	})
	require.NoError(t, err)
	return q
}

func TestQuoteArchiveJobStoresAndAttaches(t *testing.T) {
	ctx := context.Background()
	svc, renderer := newQuoteService(t, nil)
	q := savedQuote(t, svc)

	dir := t.TempDir()
	converter := &fakeConverter{}
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewQuoteArchiveJob(svc, renderer, converter, archive.NewLocal(dir, ""), discardLogger(), metrics)

	task, err := NewQuoteArchiveTask(QuoteArchivePayload{Key: q.Key, Options: quotes.DocumentOptions{ProForma: true}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	assert.Equal(t, 1, converter.calls)

	loaded, err := svc.Load(ctx, q.Key)
	require.NoError(t, err)
	require.Len(t, loaded.Archives, 1)
	stored := loaded.Archives[0]
	assert.True(t, stored.Options.ProForma)
	assert.Equal(t, "application/pdf", stored.ContentType)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(stored.Key)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(data))

	expected := `
# HELP hvacdesk_quote_archives_total Quote PDFs written to object storage.
# TYPE hvacdesk_quote_archives_total counter
hvacdesk_quote_archives_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "hvacdesk_quote_archives_total"))
}

func TestQuoteArchiveJobSkipsMissingQuote(t *testing.T) {
	svc, renderer := newQuoteService(t, nil)
	job := NewQuoteArchiveJob(svc, renderer, &fakeConverter{}, archive.NewLocal(t.TempDir(), ""), discardLogger(), nil)

	task, err := NewQuoteArchiveTask(QuoteArchivePayload{Key: "QN0404-2025"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), asynq.NewTask(TaskQuoteArchive, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	var unconfigured *QuoteArchiveJob
	assert.Error(t, unconfigured.Handle(context.Background(), task))
}

func TestQuoteExpireJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newQuoteService(t, func() time.Time { return now })
	q := savedQuote(t, svc)
	_, err := svc.SetStatus(ctx, q.Key, quotes.StatusSent)
	require.NoError(t, err)

	job := NewQuoteExpireJob(svc, discardLogger(), nil)
	task, err := NewQuoteExpireTask(30)
	require.NoError(t, err)

	require.NoError(t, job.Handle(ctx, task))
	loaded, err := svc.Load(ctx, q.Key)
	require.NoError(t, err)
	assert.Equal(t, quotes.StatusSent, loaded.Status)

	now = now.Add(45 * 24 * time.Hour)
	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskQuoteExpire, nil)))
	loaded, err = svc.Load(ctx, q.Key)
	require.NoError(t, err)
	assert.Equal(t, quotes.StatusExpired, loaded.Status)
}

func TestTaskPayloads(t *testing.T) {
	task, err := NewQuoteArchiveTask(QuoteArchivePayload{Key: "QN0001-2025", Options: quotes.DocumentOptions{TaxInvoice: true}})
	require.NoError(t, err)
	assert.Equal(t, TaskQuoteArchive, task.Type())

	var payload QuoteArchivePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "QN0001-2025", payload.Key)
	assert.True(t, payload.Options.TaxInvoice)
}

func TestHealthWithoutInspector(t *testing.T) {
	router := chi.NewRouter()
	router.Route("/jobs", NewHandler(nil, discardLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0,"connected":false}`, rr.Body.String())
}
