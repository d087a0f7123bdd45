package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"

	"video-rag-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino 的 Embedder（OpenAI 兼容接口）
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return &callbackEmbedder{
		inner: embedder,
		info: &callbacks.RunInfo{
			Name:      "video-rag-embedder",
			Type:      config.EmbeddingProviderOpenAI,
			Component: components.ComponentOfEmbedding,
		},
	}, nil
}

// callbackEmbedder 直接调用组件时注入回调上下文，使全局 callbacks 生效
type callbackEmbedder struct {
	inner embedding.Embedder
	info  *callbacks.RunInfo
}

func (e *callbackEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	ctx = callbacks.InitCallbacks(ctx, e.info)
	return e.inner.EmbedStrings(ctx, texts, opts...)
}

// NewEmbedder 按 provider 创建 Embedder
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		return NewEinoEmbedder(ctx, cfg)
	case config.EmbeddingProviderHTTP, "":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedding endpoint is required")
		}
		return NewClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
