package eino

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-rag-api/internal/config"
	infraembedding "video-rag-api/internal/infrastructure/embedding"
	"video-rag-api/pkg/metrics"
)

func TestEmbeddingCallbacksRecordMetrics(t *testing.T) {
	Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"usage": map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	embedder, err := infraembedding.NewEinoEmbedder(context.Background(), &config.EmbeddingConfig{
		Provider: config.EmbeddingProviderOpenAI,
		Model:    "text-embedding-3-small",
		Endpoint: srv.URL,
		APIKey:   "test-key",
	})
	require.NoError(t, err)

	success := metrics.EmbeddingCallTotal.WithLabelValues(config.EmbeddingProviderOpenAI, "success")
	before := testutil.ToFloat64(success)

	vectors, err := embedder.EmbedStrings(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 3)

	assert.Equal(t, before+1, testutil.ToFloat64(success))
}

func TestEmbeddingCallbacksRecordErrors(t *testing.T) {
	Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	embedder, err := infraembedding.NewEinoEmbedder(context.Background(), &config.EmbeddingConfig{
		Provider: config.EmbeddingProviderOpenAI,
		Model:    "text-embedding-3-small",
		Endpoint: srv.URL,
		APIKey:   "test-key",
	})
	require.NoError(t, err)

	failed := metrics.EmbeddingCallTotal.WithLabelValues(config.EmbeddingProviderOpenAI, "error")
	before := testutil.ToFloat64(failed)

	_, err = embedder.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}
