package reference

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarline/hvacdesk/internal/platform/cache"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultTables(t *testing.T) {
	ref := MustDefault()

	product, ok := ref.Product("DCT-5.0TR")
	require.True(t, ok)
	assert.Equal(t, 2546.0, product.SalePrice)
	assert.Equal(t, 1273.0, product.CostPrice)

	tier, ok := ref.Tier("dealer")
	require.True(t, ok)
	assert.Equal(t, 10.0, tier.DiscountPct)

	bank, ok := ref.Bank("usd")
	require.True(t, ok)
	assert.Equal(t, "BOPIPHMM", bank.SwiftCode)

	assert.Equal(t, 12.0, ref.VATRate())
	assert.Equal(t, DefaultVATRate, Reference{}.VATRate())

	_, ok = ref.Product("missing")
	assert.False(t, ok)
}

func TestLoadFileOverlaysNonEmptyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tiers":[{"name":"VIP","discount_pct":20}]}`), 0o600))

	ref, err := LoadFile(path, MustDefault())
	require.NoError(t, err)
	require.Len(t, ref.Tiers, 1)
	assert.Equal(t, "VIP", ref.Tiers[0].Name)
	assert.NotEmpty(t, ref.Products)
	assert.Equal(t, "Polarline Aircon Trading Corp.", ref.Company.Name)
}

func TestProviderFallsBackToBaseCatalog(t *testing.T) {
	provider := NewProvider(docstore.NewMemory(), nil, MustDefault(), discardLogger())
	ref, err := provider.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, ref.Products, len(MustDefault().Products))
}

func TestProviderReadsStoreAndCaches(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := docstore.NewMemory()
	body, _ := json.Marshal(Product{ID: "SPL-X", Name: "Special", SalePrice: 100, CostPrice: 60})
	_, err := store.Create(ctx, ProductsCollection, docstore.Document{ID: "SPL-X", Body: body})
	require.NoError(t, err)

	provider := NewProvider(store, cache.NewVersioned(client, "reference", time.Minute), MustDefault(), discardLogger())
	ref, err := provider.Get(ctx)
	require.NoError(t, err)
	require.Len(t, ref.Products, 1)
	assert.Equal(t, "Special", ref.Products[0].Name)

	// A store change is invisible until the cache version moves.
	require.NoError(t, store.Update(ctx, ProductsCollection, "SPL-X", json.RawMessage(`{"name":"Renamed"}`)))
	cached, err := provider.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Special", cached.Products[0].Name)

	written, err := provider.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(MustDefault().Products), written)

	fresh, err := provider.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Products, len(MustDefault().Products)+1)
}

func TestHandlerFiltersByCategory(t *testing.T) {
	provider := NewProvider(nil, nil, MustDefault(), discardLogger())
	router := chi.NewRouter()
	router.Route("/catalog", NewHandler(provider, discardLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products?category=VRF", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var products []Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &products))
	require.Len(t, products, 2)
	for _, p := range products {
		assert.Equal(t, "VRF", p.Category)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/tiers", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Distributor")
}
