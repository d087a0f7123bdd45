package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"

	apperrors "video-rag-api/pkg/errors"
	"video-rag-api/pkg/logger"
	"video-rag-api/pkg/metrics"
	"video-rag-api/pkg/tracer"
)

const (
	DefaultTopK           = 5
	DefaultMaxTopK        = 20
	DefaultScoreThreshold = 0.75
)

// EngineOptions 检索参数
type EngineOptions struct {
	DefaultTopK    int
	MaxTopK        int
	ScoreThreshold float64
	// Dimension 大于 0 时校验查询向量维度
	Dimension int
}

// Engine 检索编排：确保索引 -> 计算问题向量 -> 近邻搜索 -> 阈值过滤
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
	opts     EngineOptions
}

func NewEngine(embedder embedding.Embedder, vectorRepo VectorRepository, opts EngineOptions) *Engine {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if opts.DefaultTopK > opts.MaxTopK {
		opts.DefaultTopK = opts.MaxTopK
	}
	return &Engine{
		embedder: embedder,
		vector:   vectorRepo,
		opts:     opts,
	}
}

// Options 返回生效的参数
func (e *Engine) Options() EngineOptions {
	return e.opts
}

// Retrieve 返回通过相似度阈值的分段文本，按相似度降序。
// 没有任何分段或全部低于阈值时返回空切片。
func (e *Engine) Retrieve(ctx context.Context, in RetrieveInput) ([]string, error) {
	out, err := e.retrieve(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.Texts(), nil
}

// Debug 返回全部候选及其得分
func (e *Engine) Debug(ctx context.Context, in RetrieveInput) (*RetrieveOutput, error) {
	return e.retrieve(ctx, in)
}

func (e *Engine) retrieve(ctx context.Context, in RetrieveInput) (out *RetrieveOutput, err error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			metrics.RetrievalTotal.WithLabelValues("failed").Inc()
		case len(out.Passed()) == 0:
			metrics.RetrievalTotal.WithLabelValues("empty").Inc()
			metrics.RetrievalResults.Observe(0)
		default:
			metrics.RetrievalTotal.WithLabelValues("hit").Inc()
			metrics.RetrievalResults.Observe(float64(len(out.Passed())))
		}
	}()

	in.VideoID = strings.TrimSpace(in.VideoID)
	in.Question = strings.TrimSpace(in.Question)
	if in.VideoID == "" {
		return nil, invalidInput("video_id is required")
	}
	if in.Question == "" {
		return nil, invalidInput("question cannot be empty")
	}
	if in.TopK == 0 {
		in.TopK = e.opts.DefaultTopK
	}
	if err := ValidateTopK(in.TopK, e.opts.MaxTopK); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "retrieval.Engine.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("video_id", in.VideoID),
		attribute.Int("top_k", in.TopK),
	)
	ctx = logger.WithVideoID(ctx, in.VideoID)

	if err := e.vector.EnsureIndex(ctx, in.VideoID); err != nil {
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector index unavailable")
	}

	queryVec, err := e.embedQuery(ctx, in.Question)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	results, err := e.vector.Search(ctx, &VectorSearchParams{
		VideoID:     in.VideoID,
		QueryVector: queryVec,
		TopK:        in.TopK,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, classifySearchError(err)
	}

	out = &RetrieveOutput{
		VideoID:    in.VideoID,
		TopK:       in.TopK,
		Threshold:  e.opts.ScoreThreshold,
		Candidates: make([]ScoredSegment, 0, len(results)),
	}
	for _, r := range results {
		if r == nil || len(out.Candidates) >= in.TopK {
			continue
		}
		score := SimilarityFromL2(r.Distance)
		out.Candidates = append(out.Candidates, ScoredSegment{
			SegmentIndex: r.SegmentIndex,
			Text:         r.Content,
			Distance:     r.Distance,
			Score:        score,
			Passed:       score >= e.opts.ScoreThreshold,
		})
	}
	sort.SliceStable(out.Candidates, func(a, b int) bool {
		return out.Candidates[a].Score > out.Candidates[b].Score
	})

	switch {
	case len(out.Candidates) == 0:
		logger.Info(ctx, "no segments found for video")
	case len(out.Passed()) == 0:
		logger.Info(ctx, "no segments above similarity threshold",
			"threshold", e.opts.ScoreThreshold,
			"best_score", out.Candidates[0].Score,
			"candidates", len(out.Candidates),
		)
	default:
		logger.Debug(ctx, "retrieved relevant segments", "count", len(out.Passed()))
	}
	span.SetAttributes(attribute.Int("results", len(out.Passed())))

	return out, nil
}

func (e *Engine) embedQuery(ctx context.Context, question string) ([]float32, error) {
	vecs, err := embedBatch(ctx, e.embedder, []string{question}, 1)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "embedding unavailable")
	}
	if len(vecs) == 0 {
		return nil, apperrors.ErrEmbeddingFailed
	}
	vec := vecs[0]
	if e.opts.Dimension > 0 && len(vec) != e.opts.Dimension {
		return nil, apperrors.Wrap(ErrDimensionMismatch, apperrors.CodeEmbeddingDimension, "query embedding dimension mismatch").
			WithDetail("configured dimension does not match embedder output")
	}
	return vec, nil
}

func classifySearchError(err error) error {
	if errors.Is(err, ErrDimensionMismatch) {
		return apperrors.Wrap(err, apperrors.CodeEmbeddingDimension, "embedding dimension mismatch")
	}
	if apperrors.IsCode(err, apperrors.CodeInvalidParam) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector search failed")
}
