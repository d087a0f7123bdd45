package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/embedding"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-rag-api/internal/config"
	"video-rag-api/internal/infrastructure/persistence/redis"
)

func newEmbedServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := embedResponse{}
		for i, text := range req.Texts {
			vec := make([]float64, dim)
			vec[0] = float64(len(text))
			vec[1] = float64(i)
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEmbedStringsBatches(t *testing.T) {
	var calls int32
	srv := newEmbedServer(t, 4, &calls)
	client := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, BatchSize: 2, Dimension: 4})

	vecs, err := client.EmbedStrings(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	for i, vec := range vecs {
		assert.Len(t, vec, 4)
		assert.Equal(t, float64(i+1), vec[0])
	}
}

func TestClientEmptyInput(t *testing.T) {
	client := NewClient(&config.EmbeddingConfig{Endpoint: "http://127.0.0.1:1"})
	vecs, err := client.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestClientDimensionMismatch(t *testing.T) {
	var calls int32
	srv := newEmbedServer(t, 4, &calls)
	client := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, Dimension: 384})

	_, err := client.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})
	_, err := client.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestClientCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer srv.Close()

	client := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})
	_, err := client.EmbedStrings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, &config.EmbeddingConfig{Provider: config.EmbeddingProviderHTTP, Endpoint: "http://embed:8000"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, e)

	_, err = NewEmbedder(ctx, &config.EmbeddingConfig{Provider: config.EmbeddingProviderHTTP})
	require.Error(t, err)

	_, err = NewEmbedder(ctx, &config.EmbeddingConfig{Provider: "bogus", Endpoint: "http://embed:8000"})
	require.Error(t, err)
}

type countingEmbedder struct {
	calls int32
	err   error
}

func (e *countingEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 0.5}
	}
	return out, nil
}

func newTestCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.NewCache(redis.NewClientWithRedis(rdb)), mr
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("mini", "what is rag")
	assert.Regexp(t, `^emb:mini:[0-9a-f]{64}$`, key)
	assert.Equal(t, key, CacheKey("mini", "what is rag"))
	assert.NotEqual(t, key, CacheKey("other", "what is rag"))
}

func TestCachedEmbedderSingleText(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache, "mini", time.Hour)
	ctx := context.Background()

	first, err := e.EmbedStrings(ctx, []string{"what is rag"})
	require.NoError(t, err)
	second, err := e.EmbedStrings(ctx, []string{"what is rag"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	assert.True(t, mr.Exists(CacheKey("mini", "what is rag")))
}

func TestCachedEmbedderBatchBypassesCache(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache, "mini", time.Hour)

	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedderLoaderErrorIsReturned(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingEmbedder{err: errors.New("model offline")}
	e := NewCachedEmbedder(inner, cache, "mini", time.Hour)

	_, err := e.EmbedStrings(context.Background(), []string{"q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	assert.Empty(t, mr.Keys())
}

// sharedFlightCache 首次调用执行 loader，其后的调用直接拿到同一结果，模拟并发等待方
type sharedFlightCache struct {
	done bool
	data []byte
	err  error
}

func (c *sharedFlightCache) GetOrLoadSafe(_ context.Context, _ string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if !c.done {
		c.done = true
		v, err := loader()
		if err != nil {
			c.err = err
		} else {
			c.data, c.err = json.Marshal(v)
		}
	}
	return c.data, c.err
}

func TestCachedEmbedderSharedLoaderErrorNotRetried(t *testing.T) {
	embedErr := errors.New("model offline")
	inner := &countingEmbedder{err: embedErr}
	e := NewCachedEmbedder(inner, &sharedFlightCache{}, "mini", time.Hour)

	for i := 0; i < 3; i++ {
		_, err := e.EmbedStrings(context.Background(), []string{"q"})
		require.ErrorIs(t, err, embedErr)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedEmbedderDegradesWhenCacheDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache, "mini", time.Hour)

	vecs, err := e.EmbedStrings(context.Background(), []string{"q"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedEmbedderDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, nil, "mini", time.Hour)

	_, err := e.EmbedStrings(context.Background(), []string{"q"})
	require.NoError(t, err)
	_, err = e.EmbedStrings(context.Background(), []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}
