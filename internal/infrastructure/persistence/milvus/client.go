// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-rag-api/internal/config"
)

var tracer = otel.Tracer("milvus")

// Client Milvus 客户端
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 创建 Milvus 客户端，仅在配置了用户名和密码时启用认证
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	clientCfg := client.Config{
		Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	if cfg.User != "" && cfg.Password != "" {
		clientCfg.Username = cfg.User
		clientCfg.Password = cfg.Password
	}

	milvusClient, err := client.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		milvus: milvusClient,
		config: cfg,
	}, nil
}

// Milvus 获取底层 Milvus 客户端
func (c *Client) Milvus() client.Client {
	return c.milvus
}

// Close 关闭 Milvus 连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 探测分段集合：连接失败或集合已建但未加载时返回错误。
// 集合尚未创建（未执行 bootstrap 且无写入）视为健康。
func (c *Client) HealthCheck(ctx context.Context) error {
	name := c.CollectionName(CollectionSegments)
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	state, err := c.milvus.GetLoadState(ctx, name, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	span.SetAttributes(attribute.String("collection.load_state", loadStateName(state)))
	if state == entity.LoadStateNotLoad {
		return fmt.Errorf("health check failed: collection %s is not loaded", name)
	}
	return nil
}

// CollectionName 获取带前缀的集合名称
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix != "" {
		return c.config.CollectionPrefix + "_" + name
	}
	return name
}

// HasCollection 检查集合是否存在
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// EnsureLoaded 集合未加载时同步加载，已加载时只做一次状态查询
func (c *Client) EnsureLoaded(ctx context.Context, name string) error {
	full := c.CollectionName(name)
	ctx, span := tracer.Start(ctx, "milvus.EnsureLoaded",
		trace.WithAttributes(attribute.String("collection", full)))
	defer span.End()

	state, err := c.milvus.GetLoadState(ctx, full, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to get load state: %w", err)
	}
	span.SetAttributes(attribute.String("collection.load_state", loadStateName(state)))

	switch state {
	case entity.LoadStateLoaded:
		return nil
	case entity.LoadStateNotExist:
		return fmt.Errorf("collection %s does not exist", full)
	}

	if err := c.milvus.LoadCollection(ctx, full, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func loadStateName(state entity.LoadState) string {
	switch state {
	case entity.LoadStateNotExist:
		return "not_exist"
	case entity.LoadStateNotLoad:
		return "not_load"
	case entity.LoadStateLoading:
		return "loading"
	case entity.LoadStateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}
