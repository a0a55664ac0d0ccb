package vespa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		want      string
		wantError bool
	}{
		{name: "valid http endpoint", endpoint: "http://localhost:8080", want: "http://localhost:8080"},
		{name: "valid https endpoint", endpoint: "https://vespa.example.com:8080", want: "https://vespa.example.com:8080"},
		{name: "strips trailing slash", endpoint: "http://localhost:8080/", want: "http://localhost:8080"},
		{name: "rejects empty string", endpoint: "", wantError: true},
		{name: "rejects file scheme", endpoint: "file:///etc/passwd", wantError: true},
		{name: "rejects no scheme", endpoint: "localhost:8080", wantError: true},
		{name: "rejects javascript scheme", endpoint: "javascript:alert(1)", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateEndpoint(tt.endpoint)
			if tt.wantError {
				if err == nil {
					t.Errorf("validateEndpoint(%q) expected error, got nil", tt.endpoint)
				}
				return
			}
			if err != nil {
				t.Errorf("validateEndpoint(%q) unexpected error: %v", tt.endpoint, err)
				return
			}
			if got != tt.want {
				t.Errorf("validateEndpoint(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func newTestIndex(t *testing.T, handler http.HandlerFunc) *VectorIndex {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	idx, err := NewVectorIndex(DefaultConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewVectorIndex() error = %v", err)
	}
	return idx
}

func TestVectorIndexQuery(t *testing.T) {
	var received map[string]interface{}
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"root":{"children":[
			{"relevance":0.91,"fields":{"id":"doc_1","kind":"document","chunk_id":"chk_1","workspace_id":"ws_123",
				"organization_id":"org_1","title":"Billing outage","content":"payments failed","occurred_at":1767225600,
				"significance":70,"labels":["billing"],"visibility":"workspace"}},
			{"relevance":0.42,"fields":{"id":"obs_2","kind":"observation","title":"Deploy"}}
		]}}`))
	})

	after := time.Unix(1700000000, 0)
	hits, err := idx.Query(context.Background(), driven.VectorQuery{
		Namespace:      "ws_123:chunks",
		OrganizationID: "org_1",
		Vector:         []float32{0.1, 0.2},
		TopK:           5,
		Filters:        domain.Filters{Sources: []string{"GitHub"}, After: &after},
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score != 0.91 || hits[0].Item.ID != "doc_1" || hits[0].Item.ChunkID != "chk_1" {
		t.Errorf("unexpected first hit %+v", hits[0].Item)
	}
	if hits[0].Item.Visibility != domain.VisibilityWorkspace || hits[0].Item.OccurredAt.Year() != 2026 {
		t.Errorf("unexpected item fields %+v", hits[0].Item)
	}
	if !hits[1].Item.OccurredAt.IsZero() {
		t.Error("missing occurred_at should stay zero for hydration")
	}

	yql, _ := received["yql"].(string)
	for _, want := range []string{
		`namespace contains "ws_123:chunks"`,
		`organization_id contains "org_1"`,
		`{targetHits:10}nearestNeighbor(embedding,embedding)`,
		`(source contains "github")`,
		`occurred_at >= 1700000000`,
	} {
		if !strings.Contains(yql, want) {
			t.Errorf("yql %q missing %q", yql, want)
		}
	}
	if received["ranking.profile"] != "cosine" || received["hits"] != float64(5) {
		t.Errorf("unexpected request %v", received)
	}
}

func TestBuildYQLWithoutOrganization(t *testing.T) {
	yql := buildYQL("ws_1:chunks", "", 20, domain.Filters{})
	if strings.Contains(yql, "organization_id") {
		t.Errorf("unexpected organization condition in %q", yql)
	}
}

func TestVectorIndexQueryErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		_, err := idx.Query(context.Background(), driven.VectorQuery{Namespace: "ws_1:chunks", Vector: []float32{1}})
		if err == nil || !strings.Contains(err.Error(), "503") {
			t.Fatalf("expected 503 error, got %v", err)
		}
	})

	t.Run("error payload", func(t *testing.T) {
		idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"root":{"errors":[{"message":"timeout"}]}}`))
		})
		_, err := idx.Query(context.Background(), driven.VectorQuery{Namespace: "ws_1:chunks", Vector: []float32{1}})
		if err == nil || !strings.Contains(err.Error(), "timeout") {
			t.Fatalf("expected timeout error, got %v", err)
		}
	})

	t.Run("empty vector", func(t *testing.T) {
		idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		if _, err := idx.Query(context.Background(), driven.VectorQuery{Namespace: "ws_1:chunks"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestVectorIndexFetch(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/document/v1/lightfast/item/group/ws_123:chunks/chk_a":
			_, _ = w.Write([]byte(`{"fields":{"id":"doc_a","embedding":[0.5,0.25]}}`))
		case "/document/v1/lightfast/item/group/ws_123:chunks/chk_empty":
			_, _ = w.Write([]byte(`{"fields":{"id":"doc_b"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	vec, err := idx.Fetch(context.Background(), "ws_123:chunks", "chk_a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vector = %v", vec)
	}

	for _, id := range []string{"chk_missing", "chk_empty"} {
		if _, err := idx.Fetch(context.Background(), "ws_123:chunks", id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Fetch(%s) expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestVectorIndexHealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state/v1/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	if err := idx.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	unhealthy.Store(true)
	if err := idx.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected unhealthy error")
	}
}

func TestQuoteEscapes(t *testing.T) {
	if got := quote(`say "hi" \ bye`); got != `"say \"hi\" \\ bye"` {
		t.Errorf("quote() = %s", got)
	}
}
