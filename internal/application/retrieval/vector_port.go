package retrieval

import (
	"context"
	"errors"
)

// ErrDimensionMismatch 查询向量与已存向量维度不一致
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（pgvector 或 Milvus）。
type VectorRepository interface {
	// EnsureIndex 幂等创建 ANN 索引，并发调用安全
	EnsureIndex(ctx context.Context, videoID string) error
	// BulkInsert 原子写入一个视频的全部分段，下标按输入顺序为 0..N-1
	BulkInsert(ctx context.Context, videoID string, texts []string, embeddings [][]float32) error
	// Search 在 videoID 范围内按 L2 距离升序返回至多 TopK 条
	Search(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	// DeleteByVideo 删除视频的全部分段
	DeleteByVideo(ctx context.Context, videoID string) error
}

type VectorSearchParams struct {
	VideoID     string
	QueryVector []float32
	TopK        int
}

type VectorSearchResult struct {
	SegmentIndex int
	Content      string
	// Distance 欧氏距离（非平方）
	Distance float64
}
