package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/observability"
	quoteshttp "github.com/polarline/hvacdesk/internal/sales/quotes/http"
	_ "github.com/polarline/hvacdesk/testing"
)

func TestTestModeFlagIsSet(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 58.5, cfg.DefaultForexRate)
	assert.Equal(t, 30, cfg.QuoteValidityDays)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownBackends(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":       "dynamo",
		"PDF_BACKEND":        "wkhtmltopdf",
		"ARCHIVE_BACKEND":    "ftp",
		"DEFAULT_FOREX_RATE": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidateNeedsBucketForCloudArchive(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.ArchiveBackend = "s3"
	assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")
	cfg.S3Bucket = "quotes"
	assert.NoError(t, cfg.Validate())
}

func TestRouterServesQuotesAndHealth(t *testing.T) {
	ctx := context.Background()
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.RedisAddr = ""

	logger := NewLogger(cfg)
	metrics := observability.NewMetrics()
	stack, err := BuildQuoteStack(ctx, cfg, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close(ctx) })

	router := NewRouter(RouterParams{
		Logger: logger,
		Config: cfg,
		QuotesHandler: quoteshttp.NewHandler(quoteshttp.Params{
			Service:      stack.Quotes,
			Reference:    stack.Reference,
			DefaultForex: cfg.DefaultForexRate,
			Logger:       logger,
		}),
		ReferenceHandler: reference.NewHandler(stack.Reference, logger),
		Metrics:          metrics,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quotes/next-number", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body["next_number"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/tiers", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `hvacdesk_http_requests_total{code="200",route="/healthz"} 1`)
}
