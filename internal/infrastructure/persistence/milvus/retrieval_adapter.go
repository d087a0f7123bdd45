package milvus

import (
	"context"
	"fmt"
	"time"

	"video-rag-api/internal/application/retrieval"
	"video-rag-api/internal/config"
	"video-rag-api/pkg/metrics"
)

// RetrievalVectorRepository 将 Repository 适配为 retrieval.VectorRepository
type RetrievalVectorRepository struct {
	repo *Repository
}

func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

// EnsureIndex 每次都向 Milvus 确认集合、索引与加载状态
func (r *RetrievalVectorRepository) EnsureIndex(ctx context.Context, _ string) error {
	return r.repo.EnsureSegmentsCollection(ctx)
}

func (r *RetrievalVectorRepository) BulkInsert(ctx context.Context, videoID string, texts []string, embeddings [][]float32) error {
	if err := retrieval.ValidateBulkInsert(videoID, texts, embeddings); err != nil {
		return err
	}
	if err := r.checkDimension(len(embeddings[0])); err != nil {
		return err
	}
	if err := r.EnsureIndex(ctx, videoID); err != nil {
		return err
	}

	segments := make([]*Segment, 0, len(texts))
	for i := range texts {
		segments = append(segments, &Segment{
			VideoID:      videoID,
			SegmentIndex: i,
			Content:      texts[i],
			Vector:       embeddings[i],
		})
	}
	if err := r.repo.InsertSegments(ctx, segments); err != nil {
		// 单次 Insert 失败时清理可能的残留
		_ = r.repo.DeleteSegmentsByVideo(ctx, videoID)
		return err
	}
	return nil
}

func (r *RetrievalVectorRepository) Search(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if params == nil || params.VideoID == "" || len(params.QueryVector) == 0 || params.TopK <= 0 {
		return nil, fmt.Errorf("invalid search params")
	}
	if err := r.checkDimension(len(params.QueryVector)); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.repo.SearchSegments(ctx, params.VideoID, params.QueryVector, params.TopK)
	metrics.VectorSearchDuration.WithLabelValues(config.VectorBackendMilvus).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorSearchTotal.WithLabelValues(config.VectorBackendMilvus, "error").Inc()
		return nil, err
	}
	metrics.VectorSearchTotal.WithLabelValues(config.VectorBackendMilvus, "ok").Inc()

	return toRetrievalResults(out, params.TopK), nil
}

func toRetrievalResults(out []*SearchResult, topK int) []*retrieval.VectorSearchResult {
	results := make([]*retrieval.VectorSearchResult, 0, len(out))
	for _, v := range out {
		if v == nil || len(results) >= topK {
			continue
		}
		results = append(results, &retrieval.VectorSearchResult{
			SegmentIndex: v.SegmentIndex,
			Content:      v.Content,
			Distance:     distanceFromL2Score(v.Score),
		})
	}
	return results
}

func (r *RetrievalVectorRepository) DeleteByVideo(ctx context.Context, videoID string) error {
	return r.repo.DeleteSegmentsByVideo(ctx, videoID)
}

func (r *RetrievalVectorRepository) checkDimension(dim int) error {
	if r.repo != nil && r.repo.dimension > 0 && dim != r.repo.dimension {
		return fmt.Errorf("vector dimension %d, collection %d: %w", dim, r.repo.dimension, retrieval.ErrDimensionMismatch)
	}
	return nil
}
