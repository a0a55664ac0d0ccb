package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTEIReranker(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewTEIReranker(TEIConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "base URL is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		r, err := NewTEIReranker(TEIConfig{BaseURL: "http://localhost:8081/"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8081", r.baseURL)
		assert.Equal(t, "tei", r.Name())
		assert.NotZero(t, r.client.Timeout)
	})
}

func TestTEIRerankerAlignsScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "who owns billing", req.Query)
		assert.Len(t, req.Texts, 3)
		assert.True(t, req.Truncate)
		assert.False(t, req.RawScores)

		// TEI returns results sorted by score
		_ = json.NewEncoder(w).Encode([]teiResult{
			{Index: 1, Score: 0.95},
			{Index: 0, Score: 0.72},
			{Index: 2, Score: 1.3},
		})
	}))
	defer server.Close()

	r, err := NewTEIReranker(TEIConfig{BaseURL: server.URL, Model: "bge-reranker"})
	require.NoError(t, err)

	scores, err := r.Rerank(context.Background(), "who owns billing", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.72, 0.95, 1}, scores)
	assert.Equal(t, "bge-reranker", r.Name())
}

func TestTEIRerankerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, "model loading"},
		{"bad json", http.StatusOK, "nope"},
		{"missing score", http.StatusOK, `[{"index":0,"score":0.5}]`},
		{"index out of range", http.StatusOK, `[{"index":0,"score":0.5},{"index":7,"score":0.1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			r, err := NewTEIReranker(TEIConfig{BaseURL: server.URL})
			require.NoError(t, err)
			_, err = r.Rerank(context.Background(), "q", []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

func TestTEIRerankerEmptyInput(t *testing.T) {
	r, err := NewTEIReranker(TEIConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	scores, err := r.Rerank(context.Background(), "q", nil)
	assert.NoError(t, err)
	assert.Nil(t, scores)
}

func TestOverlapReranker(t *testing.T) {
	r := NewOverlapReranker()
	scores, err := r.Rerank(context.Background(), "billing incidents", []string{
		"Billing incidents. Postmortem for the March billing incidents.",
		"Incidents in billing land",
		"Payments squad rotation",
		"",
	})
	require.NoError(t, err)
	require.Len(t, scores, 4)

	assert.InDelta(t, 1.0, scores[0], 1e-9, "full overlap plus phrase")
	assert.InDelta(t, 0.8, scores[1], 1e-9, "full overlap without phrase")
	assert.Zero(t, scores[2])
	assert.Zero(t, scores[3])
	assert.Equal(t, "token-overlap", r.Name())
}

func TestOverlapRerankerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOverlapReranker().Rerank(ctx, "q", []string{"q"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	r, err := New("TEI", "http://tei:8081", 0)
	require.NoError(t, err)
	assert.IsType(t, &TEIReranker{}, r)

	r, err = New("overlap", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &OverlapReranker{}, r)

	r, err = New("none", "", 0)
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = New("tei", "", 0)
	assert.Error(t, err)

	_, err = New("cohere", "", 0)
	assert.Error(t, err)
}
