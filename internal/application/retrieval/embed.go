package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
)

const defaultEmbeddingBatch = 32

// SimilarityFromL2 将欧氏距离转换为相似度：1 - d²/2。
// 对单位向量等价于余弦相似度；随距离单调递减。
func SimilarityFromL2(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 - distance*distance/2
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(x)
	}
	return out
}

// embedBatch 分批计算向量，结果数量必须与输入一致
func embedBatch(ctx context.Context, embedder embedding.Embedder, texts []string, batchSize int) ([][]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatch
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		v64, err := embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(v64) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(v64), end-start)
		}
		for _, vec := range v64 {
			if len(vec) == 0 {
				return nil, fmt.Errorf("empty embedding vector")
			}
			out = append(out, toFloat32(vec))
		}
	}
	return out, nil
}
