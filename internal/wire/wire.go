//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"video-rag-api/internal/config"
	"video-rag-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 HTTP 应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MessagingSet,
		VectorSet,
		EmbeddingSet,
		TranscriptSet,
		RetrievalSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化入库 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		VectorSet,
		EmbeddingSet,
		TranscriptSet,
		RetrievalSet,
		WorkerSet,
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化建表与建索引所需依赖
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		VectorSet,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}
