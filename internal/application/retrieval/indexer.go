package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"

	"video-rag-api/internal/domain/repository"
	apperrors "video-rag-api/pkg/errors"
	"video-rag-api/pkg/logger"
	"video-rag-api/pkg/metrics"
	"video-rag-api/pkg/tracer"
)

// IndexerOptions 入库参数
type IndexerOptions struct {
	EmbeddingBatchSize int
	// Dimension 大于 0 时校验分段向量维度
	Dimension int
}

// Indexer 入库编排：查缓存 -> 抓取 -> 加密落库 -> 切分 -> 向量化 -> 写入向量库。
// 线性流程，任一步失败即终止，内部不重试。
type Indexer struct {
	transcripts TranscriptStore
	fetcher     TranscriptFetcher
	splitter    *Splitter
	embedder    embedding.Embedder
	vector      VectorRepository
	tx          repository.Transactor
	opts        IndexerOptions
}

func NewIndexer(
	transcripts TranscriptStore,
	fetcher TranscriptFetcher,
	splitter *Splitter,
	embedder embedding.Embedder,
	vectorRepo VectorRepository,
	tx repository.Transactor,
	opts IndexerOptions,
) *Indexer {
	if opts.EmbeddingBatchSize <= 0 {
		opts.EmbeddingBatchSize = defaultEmbeddingBatch
	}
	return &Indexer{
		transcripts: transcripts,
		fetcher:     fetcher,
		splitter:    splitter,
		embedder:    embedder,
		vector:      vectorRepo,
		tx:          tx,
		opts:        opts,
	}
}

// Process 处理一个视频。已处理过的视频直接返回 cached=true、segment_count=0。
func (i *Indexer) Process(ctx context.Context, videoID string) (res *ProcessResult, err error) {
	start := time.Now()
	defer func() {
		metrics.IngestionDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			metrics.IngestionTotal.WithLabelValues("failed").Inc()
		case res.Cached:
			metrics.IngestionTotal.WithLabelValues("cached").Inc()
		default:
			metrics.IngestionTotal.WithLabelValues("processed").Inc()
			metrics.SegmentsIndexed.Add(float64(res.SegmentCount))
		}
	}()

	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, invalidInput("video_id is required")
	}

	ctx, span := tracer.Start(ctx, "retrieval.Indexer.Process")
	defer span.End()
	span.SetAttributes(attribute.String("video_id", videoID))
	ctx = logger.WithVideoID(ctx, videoID)

	// 1. 查缓存
	exists, err := i.transcripts.Exists(ctx, videoID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, asDependencyError(err, apperrors.CodeDatabaseError, "storage unavailable")
	}
	if exists {
		return cachedResult(videoID), nil
	}

	// 2. 抓取
	text, language, err := i.fetcher.Fetch(ctx, videoID)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(ctx, "transcript fetch failed", "error", err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptUnavailable, "transcript not available")
	}

	// 3. 加密落库
	if err := i.transcripts.Store(ctx, videoID, text, language); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			logger.Info(ctx, "concurrent ingestion won the race, returning cached outcome")
			return cachedResult(videoID), nil
		}
		tracer.RecordError(span, err)
		return nil, asDependencyError(err, apperrors.CodeDatabaseError, "storage unavailable")
	}

	// 4. 切分
	chunks := i.splitter.Split(text)
	if len(chunks) == 0 {
		logger.Warn(ctx, "transcript record persisted without segments", "reason", "empty transcript")
		return nil, apperrors.ErrSegmentationFailed
	}

	// 5. 向量化
	vectors, err := embedBatch(ctx, i.embedder, chunks, i.opts.EmbeddingBatchSize)
	if err != nil || len(vectors) == 0 {
		tracer.RecordError(span, err)
		logger.Error(ctx, "transcript record persisted without segments", err, "reason", "embedding failed")
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "embedding unavailable")
	}
	if i.opts.Dimension > 0 && len(vectors[0]) != i.opts.Dimension {
		return nil, apperrors.Wrap(ErrDimensionMismatch, apperrors.CodeEmbeddingDimension, "segment embedding dimension mismatch")
	}

	// 6. 写入向量库
	if err := i.vector.BulkInsert(ctx, videoID, chunks, vectors); err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "transcript record persisted without segments", err, "reason", "vector insert failed")
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingDimension, "segment embedding dimension mismatch")
		}
		return nil, asDependencyError(err, apperrors.CodeVectorDBError, "vector storage unavailable")
	}

	span.SetAttributes(attribute.Int("segments", len(chunks)))
	logger.Info(ctx, "video processed", "segments", len(chunks), "language", language)

	return &ProcessResult{
		VideoID:      videoID,
		Cached:       false,
		SegmentCount: len(chunks),
		Message:      MessageProcessed,
	}, nil
}

// Purge 删除视频记录及其全部分段，记录不存在时返回 ErrVideoNotFound
func (i *Indexer) Purge(ctx context.Context, videoID string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return invalidInput("video_id is required")
	}

	ctx, span := tracer.Start(ctx, "retrieval.Indexer.Purge")
	defer span.End()

	var existed bool
	purge := func(txCtx context.Context) error {
		if err := i.vector.DeleteByVideo(txCtx, videoID); err != nil {
			return asDependencyError(err, apperrors.CodeVectorDBError, "vector storage unavailable")
		}
		deleted, err := i.transcripts.Delete(txCtx, videoID)
		if err != nil {
			return asDependencyError(err, apperrors.CodeDatabaseError, "storage unavailable")
		}
		existed = deleted
		return nil
	}

	var err error
	if i.tx != nil {
		err = i.tx.WithTransaction(ctx, purge)
	} else {
		err = purge(ctx)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	if !existed {
		return apperrors.ErrVideoNotFound
	}
	logger.Info(logger.WithVideoID(ctx, videoID), "video purged")
	return nil
}

func cachedResult(videoID string) *ProcessResult {
	return &ProcessResult{
		VideoID:      videoID,
		Cached:       true,
		SegmentCount: 0,
		Message:      MessageAlreadyProcessed,
	}
}

// asDependencyError 保留已分类的 AppError，其余归为依赖不可用
func asDependencyError(err error, code apperrors.ErrorCode, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, code, message)
}
