package postgres

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"video-rag-api/internal/application/retrieval"
	"video-rag-api/internal/config"
	"video-rag-api/internal/domain/entity"
	"video-rag-api/pkg/metrics"
)

const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"

	defaultIndexName   = "segments_embedding_idx"
	defaultInsertBatch = 500

	maxHNSWEfSearch = 1000
)

// SegmentRepository 基于 pgvector 的分段向量仓储，实现 retrieval.VectorRepository
type SegmentRepository struct {
	client    *Client
	cfg       config.PgvectorConfig
	dimension int
}

var _ retrieval.VectorRepository = (*SegmentRepository)(nil)

// NewSegmentRepository 创建分段仓储，dimension 大于 0 时在查询前校验向量维度
func NewSegmentRepository(client *Client, cfg config.PgvectorConfig, dimension int) *SegmentRepository {
	if cfg.IndexName == "" {
		cfg.IndexName = defaultIndexName
	}
	if cfg.IndexType == "" {
		cfg.IndexType = IndexTypeHNSW
	}
	if cfg.InsertBatch <= 0 {
		cfg.InsertBatch = defaultInsertBatch
	}
	return &SegmentRepository{
		client:    client,
		cfg:       cfg,
		dimension: dimension,
	}
}

// EnsureIndex 幂等创建 ANN 索引。
// 每次调用都查询 pg_indexes，索引被删除后会重建；并发创建时的"已存在"冲突视为成功。
func (r *SegmentRepository) EnsureIndex(ctx context.Context, _ string) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.EnsureIndex")
	defer span.End()

	db := r.client.db.WithContext(ctx)

	var exists bool
	err := db.Raw(
		"SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = ? AND indexname = ?)",
		segmentsTable, r.cfg.IndexName,
	).Scan(&exists).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check vector index: %w", err)
	}

	if !exists {
		if err := db.Exec(r.indexDDL()).Error; err != nil && !isAlreadyExists(err) {
			span.RecordError(err)
			return fmt.Errorf("failed to create vector index: %w", err)
		}
	}
	return nil
}

func (r *SegmentRepository) indexDDL() string {
	name := pq.QuoteIdentifier(r.cfg.IndexName)
	switch r.cfg.IndexType {
	case IndexTypeIVFFlat:
		lists := r.cfg.IVFFlatLists
		if lists <= 0 {
			lists = 100
		}
		return fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_l2_ops) WITH (lists = %d)",
			name, segmentsTable, lists,
		)
	default:
		m, ef := r.cfg.HNSWM, r.cfg.HNSWEfConstruction
		if m <= 0 {
			m = 16
		}
		if ef <= 0 {
			ef = 64
		}
		return fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_l2_ops) WITH (m = %d, ef_construction = %d)",
			name, segmentsTable, m, ef,
		)
	}
}

// searchSettings 查询期索引参数。
// 索引先按距离取候选再按 video_id 过滤，迭代扫描保证过滤后仍能凑满 topK。
func (r *SegmentRepository) searchSettings(topK int) []string {
	var stmts []string
	switch r.cfg.IndexType {
	case IndexTypeIVFFlat:
		if r.cfg.IVFFlatProbes > 0 {
			stmts = append(stmts, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", r.cfg.IVFFlatProbes))
		}
		if r.cfg.IterativeScan == "relaxed_order" {
			stmts = append(stmts, "SET LOCAL ivfflat.iterative_scan = relaxed_order")
		}
	default:
		if r.cfg.HNSWEfSearch > 0 {
			ef := min(max(r.cfg.HNSWEfSearch, topK), maxHNSWEfSearch)
			stmts = append(stmts, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", ef))
		}
		switch r.cfg.IterativeScan {
		case "off", "strict_order", "relaxed_order":
			stmts = append(stmts, "SET LOCAL hnsw.iterative_scan = "+r.cfg.IterativeScan)
		}
	}
	return stmts
}

// BulkInsert 单事务写入一个视频的全部分段
func (r *SegmentRepository) BulkInsert(ctx context.Context, videoID string, texts []string, embeddings [][]float32) error {
	if err := retrieval.ValidateBulkInsert(videoID, texts, embeddings); err != nil {
		return err
	}
	if r.dimension > 0 && len(embeddings[0]) != r.dimension {
		return fmt.Errorf("segment dimension %d, configured %d: %w", len(embeddings[0]), r.dimension, retrieval.ErrDimensionMismatch)
	}

	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.BulkInsert")
	defer span.End()

	now := time.Now()
	rows := make([]*segmentModel, 0, len(texts))
	for i := range texts {
		rows = append(rows, newSegmentModel(&entity.Segment{
			VideoID:   videoID,
			Index:     i,
			Content:   texts[i],
			Embedding: embeddings[i],
			CreatedAt: now,
		}))
	}

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, r.cfg.InsertBatch).Error
	})
	if err != nil {
		span.RecordError(err)
		if isDimensionError(err) {
			return fmt.Errorf("%v: %w", err, retrieval.ErrDimensionMismatch)
		}
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// Search 在 video_id 范围内按 L2 距离升序返回至多 TopK 条
func (r *SegmentRepository) Search(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if params == nil || params.VideoID == "" || len(params.QueryVector) == 0 || params.TopK <= 0 {
		return nil, fmt.Errorf("invalid search params")
	}
	if r.dimension > 0 && len(params.QueryVector) != r.dimension {
		return nil, fmt.Errorf("query dimension %d, configured %d: %w", len(params.QueryVector), r.dimension, retrieval.ErrDimensionMismatch)
	}

	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.Search")
	defer span.End()

	start := time.Now()
	vec := pgvector.NewVector(params.QueryVector)
	var rows []searchRow
	query := func(db *gorm.DB) error {
		return db.Raw(
			"SELECT segment_index, content, embedding <-> ? AS distance FROM segments WHERE video_id = ? ORDER BY embedding <-> ? LIMIT ?",
			vec, params.VideoID, vec, params.TopK,
		).Scan(&rows).Error
	}

	var err error
	settings := r.searchSettings(params.TopK)
	if len(settings) == 0 {
		err = query(getDB(ctx, r.client.db))
	} else {
		// SET LOCAL 只在事务内生效
		err = getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
			for _, stmt := range settings {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return query(tx)
		})
	}
	metrics.VectorSearchDuration.WithLabelValues(config.VectorBackendPgvector).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorSearchTotal.WithLabelValues(config.VectorBackendPgvector, "error").Inc()
		span.RecordError(err)
		if isDimensionError(err) {
			return nil, fmt.Errorf("%v: %w", err, retrieval.ErrDimensionMismatch)
		}
		return nil, fmt.Errorf("failed to search segments: %w", err)
	}
	metrics.VectorSearchTotal.WithLabelValues(config.VectorBackendPgvector, "ok").Inc()

	// relaxed_order 迭代扫描返回的顺序可能不严格
	slices.SortStableFunc(rows, func(a, b searchRow) int { return cmp.Compare(a.Distance, b.Distance) })

	out := make([]*retrieval.VectorSearchResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, &retrieval.VectorSearchResult{
			SegmentIndex: row.SegmentIndex,
			Content:      row.Content,
			Distance:     row.Distance,
		})
	}
	return out, nil
}

// DeleteByVideo 删除视频的全部分段
func (r *SegmentRepository) DeleteByVideo(ctx context.Context, videoID string) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.DeleteByVideo")
	defer span.End()

	if err := getDB(ctx, r.client.db).Where("video_id = ?", videoID).Delete(&segmentModel{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}
