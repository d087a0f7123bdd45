package retrieval

import (
	"strconv"

	apperrors "video-rag-api/pkg/errors"
)

func invalidInput(format string, args ...any) *apperrors.AppError {
	return apperrors.Newf(apperrors.CodeInvalidParam, format, args...)
}

// ValidateBulkInsert 校验批量写入参数
func ValidateBulkInsert(videoID string, texts []string, embeddings [][]float32) error {
	if videoID == "" {
		return invalidInput("video_id is required")
	}
	if len(texts) != len(embeddings) {
		return invalidInput("texts and embeddings length mismatch: %d != %d", len(texts), len(embeddings))
	}
	if len(texts) == 0 {
		return invalidInput("no segments to insert")
	}
	dim := len(embeddings[0])
	for i, emb := range embeddings {
		if len(emb) == 0 || len(emb) != dim {
			return apperrors.Wrap(ErrDimensionMismatch, apperrors.CodeEmbeddingDimension, "inconsistent embedding dimension").
				WithDetail("segment " + strconv.Itoa(i))
		}
	}
	return nil
}

// ValidateTopK 校验 top_k 上下界
func ValidateTopK(topK, maxTopK int) error {
	if topK < 1 {
		return invalidInput("top_k must be >= 1, got %d", topK)
	}
	if maxTopK > 0 && topK > maxTopK {
		return invalidInput("top_k must be <= %d, got %d", maxTopK, topK)
	}
	return nil
}
