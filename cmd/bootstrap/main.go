package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"video-rag-api/internal/config"
	"video-rag-api/internal/wire"
)

func main() {
	flushEmbeddings := flag.Bool("flush-embedding-cache", false, "delete cached query embeddings (emb:*) after schema changes")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层
	deps, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 建表（videos / segments）
	fmt.Printf("Migrating schema (dimension=%d)...\n", cfg.Embedding.Dimension)
	if err := deps.PgClient.Migrate(ctx, cfg.Embedding.Dimension); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 4. 建向量索引
	fmt.Printf("Ensuring vector index on %s backend...\n", backendName(cfg))
	if err := deps.Vector.EnsureIndex(ctx, ""); err != nil {
		log.Fatalf("failed to ensure vector index: %v", err)
	}

	// 5. 可选：清理查询向量缓存
	if *flushEmbeddings {
		if err := deps.Cache.InvalidatePattern(ctx, "emb:*"); err != nil {
			log.Fatalf("failed to flush embedding cache: %v", err)
		}
		fmt.Println("Embedding cache flushed.")
	}

	fmt.Println("Bootstrap completed successfully.")
}

func backendName(cfg *config.Config) string {
	if cfg.Vector.Backend == "" {
		return config.VectorBackendPgvector
	}
	return cfg.Vector.Backend
}
