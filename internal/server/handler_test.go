package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blackroad/searchcore/internal/engine"
	"github.com/blackroad/searchcore/internal/engine/storage"
	"github.com/blackroad/searchcore/pkg/health"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng, err := engine.New(context.Background(), storage.NewMemStore())
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	h := New(eng, nil, nil, nil, 0)
	srv := httptest.NewServer(NewRouter(h, health.NewChecker(), nil, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if buf.Len() == 0 {
		return resp, nil
	}
	var decoded any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding response %q: %v", buf.String(), err)
	}
	obj, _ := decoded.(map[string]any)
	return resp, obj
}

func seedServer(t *testing.T, base string) {
	t.Helper()
	resp, _ := doJSON(t, "POST", base+"/indexes", `{"uid":"books"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create index: expected 201, got %d", resp.StatusCode)
	}
	batch := `[
		{"id":"1","title":"Dune","body":"Paul Atreides travels from Caladan","genre":"sci-fi"},
		{"id":"2","title":"Dune Messiah","body":"Twelve years after the jihad","genre":"sci-fi"},
		{"id":"3","title":"Neuromancer","body":"Console cowboys in cyberspace","genre":"cyberpunk"}
	]`
	resp, body := doJSON(t, "POST", base+"/indexes/books/documents", batch)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest: expected 202, got %d (%v)", resp.StatusCode, body)
	}
	if got := body["ingested"]; got != float64(3) {
		t.Fatalf("ingested = %v, want 3", got)
	}
}

func TestCreateIndexEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, "POST", srv.URL+"/indexes", `{"uid":"books","name":"Books"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["uid"] != "books" || body["name"] != "Books" {
		t.Errorf("unexpected body: %v", body)
	}
	// The primary key defaults to "id" when omitted.
	if body["primary_key"] != "id" {
		t.Errorf("primary_key = %v, want id", body["primary_key"])
	}

	resp, body = doJSON(t, "POST", srv.URL+"/indexes", `{"uid":"books"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create: expected 409, got %d (%v)", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, "POST", srv.URL+"/indexes", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing uid: expected 400, got %d", resp.StatusCode)
	}
}

func TestGetIndexEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "GET", srv.URL+"/indexes/books", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["total_documents"] != float64(3) {
		t.Errorf("total_documents = %v, want 3", body["total_documents"])
	}

	resp, _ = doJSON(t, "GET", srv.URL+"/indexes/ghost", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	for _, kind := range []string{"searchable", "filterable", "sortable"} {
		url := fmt.Sprintf("%s/indexes/books/settings/%s-attributes", srv.URL, kind)
		resp, body := doJSON(t, "PUT", url, `{"attributes":["title","genre"]}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%v)", kind, resp.StatusCode, body)
		}
		attrs, ok := body[kind+"_attrs"].([]any)
		if !ok || len(attrs) != 2 {
			t.Errorf("%s_attrs = %v, want 2 entries", kind, body[kind+"_attrs"])
		}
	}
}

func TestDocumentEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "GET", srv.URL+"/indexes/books/documents/1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	if body["title"] != "Dune" {
		t.Errorf("title = %v", body["title"])
	}

	resp, _ = doJSON(t, "GET", srv.URL+"/indexes/books/documents/999", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing doc: expected 404, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, "PATCH", srv.URL+"/indexes/books/documents/1", `{"body":"rewritten"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["body"] != "rewritten" || body["title"] != "Dune" {
		t.Errorf("merged document wrong: %v", body)
	}

	resp, _ = doJSON(t, "DELETE", srv.URL+"/indexes/books/documents/1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", srv.URL+"/indexes/books/documents/1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted doc still served: %d", resp.StatusCode)
	}
}

func TestIngestRejectsInvalidBatch(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, _ := doJSON(t, "POST", srv.URL+"/indexes/books/documents", `[{"title":"no id"}]`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing primary key, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, "POST", srv.URL+"/indexes/books/documents", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "POST", srv.URL+"/indexes/books/search",
		`{"q":"dune","facets":["genre"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["total"] != float64(2) {
		t.Errorf("total = %v, want 2", body["total"])
	}
	hits, ok := body["hits"].([]any)
	if !ok || len(hits) != 2 {
		t.Fatalf("hits = %v", body["hits"])
	}
	first := hits[0].(map[string]any)
	if first["id"] != "1" {
		t.Errorf("first hit id = %v, want 1", first["id"])
	}

	facets, ok := body["facet_distribution"].(map[string]any)
	if !ok {
		t.Fatalf("facet_distribution missing: %v", body)
	}
	genre := facets["genre"].(map[string]any)
	if genre["sci-fi"] != float64(2) || genre["cyberpunk"] != float64(1) {
		t.Errorf("genre facets = %v", genre)
	}

	resp, _ = doJSON(t, "POST", srv.URL+"/indexes/ghost/search", `{"q":"dune"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown index: expected 404, got %d", resp.StatusCode)
	}
}

func TestSearchEndpointWithFilters(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "POST", srv.URL+"/indexes/books/search",
		`{"q":"dune","filters":{"genre":"cyberpunk"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["total"] != float64(0) {
		t.Errorf("total = %v, want 0", body["total"])
	}
}

func TestMultiSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "POST", srv.URL+"/multi-search", `{
		"queries":[
			{"index_uid":"books","q":"dune"},
			{"index_uid":"books","q":"neuromancer"}
		]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, body)
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("results = %v", body["results"])
	}
	first := results[0].(map[string]any)
	second := results[1].(map[string]any)
	if first["query"] != "dune" || first["total"] != float64(2) {
		t.Errorf("result 0 = %v", first)
	}
	if second["query"] != "neuromancer" || second["total"] != float64(1) {
		t.Errorf("result 1 = %v", second)
	}

	resp, _ = doJSON(t, "POST", srv.URL+"/multi-search",
		`{"queries":[{"index_uid":"ghost","q":"x"}]}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown index: expected 404, got %d", resp.StatusCode)
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedServer(t, srv.URL)

	resp, body := doJSON(t, "GET", srv.URL+"/indexes/books/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["uid"] != "books" || body["documents"] != float64(3) {
		t.Errorf("stats = %v", body)
	}
	if size, ok := body["index_size_bytes"].(float64); !ok || size <= 0 {
		t.Errorf("index_size_bytes = %v", body["index_size_bytes"])
	}

	resp, body = doJSON(t, "GET", srv.URL+"/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["indexes"] != float64(1) || body["total_documents"] != float64(3) {
		t.Errorf("aggregate stats = %v", body)
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, "GET", srv.URL+"/cache/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["enabled"] != false {
		t.Errorf("expected cache reported disabled, got %v", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "GET", srv.URL+"/health/live", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", srv.URL+"/health/ready", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "GET", srv.URL+"/indexes", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}
