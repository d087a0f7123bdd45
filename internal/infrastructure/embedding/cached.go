package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"video-rag-api/pkg/logger"
	"video-rag-api/pkg/metrics"
)

// LoadingCache Read-Through 缓存，由 redis.Cache 实现
type LoadingCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// CachedEmbedder 为单条文本（检索问题）缓存向量；批量调用直接透传。
// 缓存不可用时退化为直接调用。
type CachedEmbedder struct {
	inner embedding.Embedder
	cache LoadingCache
	model string
	ttl   time.Duration
}

var _ embedding.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner embedding.Embedder, cache LoadingCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, model: model, ttl: ttl}
}

// embedLoadError 标记 loader 内嵌入调用的失败；singleflight 共享同一次 loader 时，等待方收到的是同一个错误值
type embedLoadError struct {
	err error
}

func (e *embedLoadError) Error() string { return e.err.Error() }

func (e *embedLoadError) Unwrap() error { return e.err }

// CacheKey emb:<model>:<sha256(text)>
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%s", model, hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if c.cache == nil || c.ttl <= 0 || len(texts) != 1 {
		return c.inner.EmbedStrings(ctx, texts, opts...)
	}

	var loaded bool
	data, err := c.cache.GetOrLoadSafe(ctx, CacheKey(c.model, texts[0]), c.ttl, func() (interface{}, error) {
		loaded = true
		vecs, err := c.inner.EmbedStrings(ctx, texts, opts...)
		if err == nil && len(vecs) != 1 {
			err = fmt.Errorf("embedding count mismatch: got %d, want 1", len(vecs))
		}
		if err != nil {
			return nil, &embedLoadError{err: err}
		}
		return vecs[0], nil
	})
	if err != nil {
		var loadErr *embedLoadError
		if errors.As(err, &loadErr) {
			return nil, loadErr.err
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "embedding cache unavailable, calling embedder directly", "error", err.Error())
		return c.inner.EmbedStrings(ctx, texts, opts...)
	}

	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		if err == nil {
			err = errors.New("empty cached vector")
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "invalid cached embedding, calling embedder directly", "error", err.Error())
		return c.inner.EmbedStrings(ctx, texts, opts...)
	}

	if loaded {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	}
	return [][]float64{vec}, nil
}
