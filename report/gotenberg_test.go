package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipartForm(t *testing.T) {
	var gotHTML, gotWidth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		file, _, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		gotHTML = string(data)
		gotWidth = r.FormValue("paperWidth")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	pdf, err := client.RenderHTML(context.Background(), "<html><body>Quote</body></html>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(pdf))
	assert.Equal(t, "<html><body>Quote</body></html>", gotHTML)
	assert.Equal(t, "8.5", gotWidth)
}

func TestRenderHTMLSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<html></html>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gotenberg response 500")
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestPingHandler(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router := chi.NewRouter()
	router.Route("/report", NewHandler(NewClient(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	healthy.Store(false)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestNewConverter(t *testing.T) {
	conv, err := NewConverter("chromium", "", "/usr/bin/chromium")
	require.NoError(t, err)
	assert.IsType(t, &Chromium{}, conv)

	conv, err = NewConverter("", "http://gotenberg:3000", "")
	require.NoError(t, err)
	assert.IsType(t, &Client{}, conv)

	_, err = NewConverter("wkhtmltopdf", "", "")
	assert.Error(t, err)
}
