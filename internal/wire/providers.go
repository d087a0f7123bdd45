package wire

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"video-rag-api/internal/application/retrieval"
	apptranscript "video-rag-api/internal/application/transcript"
	"video-rag-api/internal/config"
	"video-rag-api/internal/domain/repository"
	infraembedding "video-rag-api/internal/infrastructure/embedding"
	"video-rag-api/internal/infrastructure/messaging"
	"video-rag-api/internal/infrastructure/persistence/milvus"
	"video-rag-api/internal/infrastructure/persistence/postgres"
	"video-rag-api/internal/infrastructure/persistence/redis"
	infratranscript "video-rag-api/internal/infrastructure/transcript"
	"video-rag-api/internal/interfaces/http/handler"
	"video-rag-api/internal/interfaces/http/middleware"
	"video-rag-api/internal/interfaces/http/router"
	"video-rag-api/internal/interfaces/worker"
	"video-rag-api/pkg/crypto"
	"video-rag-api/pkg/logger"
)

// Worker 入库 worker 依赖容器
type Worker struct {
	Consumer *messaging.Consumer
	Indexer  *retrieval.Indexer
}

// Bootstrap 建表与建索引所需依赖
type Bootstrap struct {
	PgClient *postgres.Client
	Vector   retrieval.VectorRepository
	Cache    *redis.Cache
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewVideoRepository,
	ProvideSegmentRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.VideoRepository), new(*postgres.VideoRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	ProvideSessionStore,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	wire.Bind(new(repository.SessionRepository), new(*redis.SessionStore)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(handler.IngestPublisher), new(*messaging.Producer)),
)

// VectorSet 向量存储提供者集合，按 vector.backend 选择实现
var VectorSet = wire.NewSet(
	ProvideMilvusClient,
	ProvideVectorRepository,
)

// EmbeddingSet Embedding 提供者集合
var EmbeddingSet = wire.NewSet(
	ProvideEmbedder,
)

// TranscriptSet 字幕抓取与加密缓存提供者集合
var TranscriptSet = wire.NewSet(
	ProvideCipher,
	ProvideTranscriptFetcher,
	apptranscript.NewCache,
	wire.Bind(new(apptranscript.Cipher), new(*crypto.Gate)),
	wire.Bind(new(retrieval.TranscriptStore), new(*apptranscript.Cache)),
	wire.Bind(new(retrieval.TranscriptFetcher), new(*infratranscript.YouTubeFetcher)),
)

// RetrievalSet 入库与检索编排提供者集合
var RetrievalSet = wire.NewSet(
	ProvideSplitter,
	ProvideRetrievalEngine,
	ProvideRetrievalIndexer,
)

// RouterSet HTTP 路由提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewVideoHandler,
	handler.NewRetrievalHandler,
	handler.NewSessionHandler,
	wire.Bind(new(handler.VideoProcessor), new(*retrieval.Indexer)),
	wire.Bind(new(handler.ChunkRetriever), new(*retrieval.Engine)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// WorkerSet 入库 worker 提供者集合
var WorkerSet = wire.NewSet(
	ProvideIngestConsumer,
	wire.Struct(new(Worker), "*"),
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideSegmentRepository 提供 pgvector 分段仓储
func ProvideSegmentRepository(client *postgres.Client, cfg *config.Config) *postgres.SegmentRepository {
	return postgres.NewSegmentRepository(client, cfg.Vector.Pgvector, cfg.Embedding.Dimension)
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideSessionStore 提供活动视频会话存储
func ProvideSessionStore(client *redis.Client, cfg *config.Config) *redis.SessionStore {
	return redis.NewSessionStore(client, cfg.Session.TTL)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideMilvusClient 仅在 backend=milvus 时连接，其余情况返回 nil
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if cfg.Vector.Backend != config.VectorBackendMilvus {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideVectorRepository 按配置返回 pgvector 或 Milvus 实现
func ProvideVectorRepository(cfg *config.Config, segments *postgres.SegmentRepository, milvusClient *milvus.Client) (retrieval.VectorRepository, error) {
	switch cfg.Vector.Backend {
	case "", config.VectorBackendPgvector:
		return segments, nil
	case config.VectorBackendMilvus:
		if milvusClient == nil {
			return nil, fmt.Errorf("milvus backend selected but client is not initialized")
		}
		return milvus.NewRetrievalVectorRepository(milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}
}

// ProvideEmbedder 提供 Embedding 客户端，cache_ttl > 0 时叠加 Redis 缓存
func ProvideEmbedder(ctx context.Context, cfg *config.Config, cache *redis.Cache) (einoembedding.Embedder, error) {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheTTL <= 0 {
		return embedder, nil
	}
	logger.Debug(ctx, "embedding cache enabled", "ttl", cfg.Embedding.CacheTTL.String())
	return infraembedding.NewCachedEmbedder(embedder, cache, cfg.Embedding.Model, cfg.Embedding.CacheTTL), nil
}

// ProvideCipher 提供字幕加解密门面
func ProvideCipher(cfg *config.Config) (*crypto.Gate, error) {
	return crypto.NewGate(cfg.Security.Encryption.Key, crypto.WithCompression(cfg.Security.Encryption.Compress))
}

// ProvideTranscriptFetcher 提供 YouTube 字幕抓取器
func ProvideTranscriptFetcher(cfg *config.Config) *infratranscript.YouTubeFetcher {
	return infratranscript.NewYouTubeFetcher(&cfg.Transcript)
}

// ProvideSplitter 提供分段器
func ProvideSplitter(cfg *config.Config) (*retrieval.Splitter, error) {
	return retrieval.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
}

// ProvideRetrievalEngine 提供检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Engine {
	return retrieval.NewEngine(embedder, vectorRepo, retrieval.EngineOptions{
		DefaultTopK:    cfg.Retrieval.DefaultTopK,
		MaxTopK:        cfg.Retrieval.MaxTopK,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		Dimension:      cfg.Embedding.Dimension,
	})
}

// ProvideRetrievalIndexer 提供入库编排
func ProvideRetrievalIndexer(
	cfg *config.Config,
	transcripts retrieval.TranscriptStore,
	fetcher retrieval.TranscriptFetcher,
	splitter *retrieval.Splitter,
	embedder einoembedding.Embedder,
	vectorRepo retrieval.VectorRepository,
	tx repository.Transactor,
) *retrieval.Indexer {
	return retrieval.NewIndexer(transcripts, fetcher, splitter, embedder, vectorRepo, tx, retrieval.IndexerOptions{
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		Dimension:          cfg.Embedding.Dimension,
	})
}

// ProvideHealthHandler 提供健康检查处理器，未启用 Milvus 时不探测
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *handler.HealthHandler {
	if milvusClient == nil {
		return handler.NewHealthHandler(cfg.App.Version, pg, redisClient, nil)
	}
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient, milvusClient)
}

// ProvideIngestConsumer 提供入库任务消费者并注册处理器
func ProvideIngestConsumer(cfg *config.Config, redisClient *redis.Client, indexer *retrieval.Indexer) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamIngest,
		Group:         messaging.ConsumerGroupIngestWorker.WithPrefix(rs.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(rs.RetryBackoff),
	})
	worker.NewIngestHandler(indexer).Register(consumer)
	return consumer
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
