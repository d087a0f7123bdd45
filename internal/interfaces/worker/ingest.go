// Package worker 提供异步任务的消息处理器
package worker

import (
	"context"
	"strings"

	"video-rag-api/internal/application/retrieval"
	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/infrastructure/messaging"
	apperrors "video-rag-api/pkg/errors"
	"video-rag-api/pkg/logger"
)

// IngestProcessor 入库编排，由 retrieval.Indexer 实现
type IngestProcessor interface {
	Process(ctx context.Context, videoID string) (*retrieval.ProcessResult, error)
}

// IngestHandler 处理 ingest.requested 消息
type IngestHandler struct {
	processor IngestProcessor
}

func NewIngestHandler(processor IngestProcessor) *IngestHandler {
	return &IngestHandler{processor: processor}
}

// Register 注册到消费者
func (h *IngestHandler) Register(c *messaging.Consumer) {
	c.RegisterHandler(messaging.MessageTypeIngestRequested, h.Handle)
}

// Handle 解析任务并执行入库。
// 参数错误为永久失败，消费者直接转入死信队列。
func (h *IngestHandler) Handle(ctx context.Context, msg *messaging.Message) error {
	var job entity.IngestJob
	if err := msg.UnmarshalPayload(&job); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidParam, "malformed ingest job")
	}

	videoID := strings.TrimSpace(job.VideoID)
	if videoID == "" {
		videoID = strings.TrimSpace(msg.VideoID)
	}
	if videoID == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "ingest job missing video_id")
	}

	ctx = logger.WithVideoID(ctx, videoID)
	if job.JobID != "" {
		ctx = logger.WithContext(ctx, logger.JobIDKey, job.JobID)
	}
	if job.RequestID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, job.RequestID)
	}

	res, err := h.processor.Process(ctx, videoID)
	if err != nil {
		return err
	}

	logger.Info(ctx, "ingest job completed",
		"cached", res.Cached,
		"segment_count", res.SegmentCount,
	)
	return nil
}
