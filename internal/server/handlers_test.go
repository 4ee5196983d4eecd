package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/cache"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/coordinator"
	"github.com/hyperjump/shirabe/internal/fingerprint"
	"github.com/hyperjump/shirabe/internal/index"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/producer"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/storage"
)

const testDims = 4

func newTestServer(t *testing.T) (*Server, *producer.MockProducer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "documents.db")
	cfg.Producer.Dimensions = testDims
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	vc := cache.NewMemoryCache()
	idx, err := index.New(testDims)
	if err != nil {
		t.Fatal(err)
	}
	prod := producer.NewMockProducer(testDims)
	coord := coordinator.New(store, vc, fingerprint.NewStore(vc), idx, prod, coordinator.Options{})
	engine := search.NewEngine(store, prod, idx, &cfg.Search)
	return NewServer(engine, coord, store, cfg, zap.NewNop()), prod
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleSyncAndGetDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID: "cats", Title: "cats.txt", Text: "cats are great",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created["id"] != "cats" || created["status"] != "up_to_date" {
		t.Errorf("created = %v", created)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/documents/cats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Text != "cats are great" {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestHandleSyncDocumentGeneratesID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/v1/documents", models.DocumentInput{
		Text: "anonymous text",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created["id"] == "" {
		t.Error("missing generated id")
	}
}

func TestHandleSyncDocumentRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, prod := newTestServer(t)
	router := srv.Router()

	for _, d := range []models.DocumentInput{
		{ID: "cats", Text: "cats are great"},
		{ID: "dogs", Text: "dogs bark"},
	} {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/documents", d)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed %s: status = %d", d.ID, rec.Code)
		}
	}
	prod.Stub("cats", []float32{1, 0, 0, 0})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "cats", TopK: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d", len(resp.Results))
	}
	if len(resp.Results) > 0 && resp.Results[0].Rank != 1 {
		t.Errorf("rank = %d", resp.Results[0].Rank)
	}
}

func TestHandleSearchValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "x", TopK: -2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative top_k: status = %d", rec.Code)
	}
}

func TestHandleSearchTopKZeroUsesDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, d := range []models.DocumentInput{
		{ID: "a", Text: "alpha"},
		{ID: "b", Text: "beta"},
		{ID: "c", Text: "gamma"},
	} {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/documents", d)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed %s: status = %d", d.ID, rec.Code)
		}
	}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "alpha", TopK: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("top_k 0: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// Default limit (10) exceeds the corpus, so everything ranks.
	if len(resp.Results) != 3 {
		t.Errorf("results = %d, want all 3 under the default limit", len(resp.Results))
	}
}

func TestHandleSearchProducerDown(t *testing.T) {
	srv, prod := newTestServer(t)
	prod.FailWith("q", context.DeadlineExceeded)

	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "q"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "a", Text: "x"})
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/documents/a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/documents/a", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleGetDocumentNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/api/v1/documents/absent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "a", Text: "x"})
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["documents"].(float64) != 1 {
		t.Errorf("documents = %v", resp["documents"])
	}
	if resp["index_size"].(float64) != 1 {
		t.Errorf("index_size = %v", resp["index_size"])
	}
	states := resp["states"].(map[string]interface{})
	if states["up_to_date"].(float64) != 1 {
		t.Errorf("states = %v", states)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
