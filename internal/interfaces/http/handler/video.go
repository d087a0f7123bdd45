package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/interfaces/http/dto"
	apperrors "video-rag-api/pkg/errors"
	"video-rag-api/pkg/logger"
)

// MessageQueued 异步入库提示
const MessageQueued = "Video queued for processing."

// VideoHandler 视频入库处理器
type VideoHandler struct {
	processor VideoProcessor
	publisher IngestPublisher
}

// NewVideoHandler 创建视频入库处理器，publisher 为 nil 时不支持异步
func NewVideoHandler(processor VideoProcessor, publisher IngestPublisher) *VideoHandler {
	return &VideoHandler{
		processor: processor,
		publisher: publisher,
	}
}

// ProcessVideo 抓取、切分并索引视频字幕
// @Summary 处理视频
// @Tags Videos
// @Accept json
// @Produce json
// @Param body body dto.ProcessVideoRequest true "入库请求"
// @Success 200 {object} dto.Response[dto.ProcessVideoResponse]
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/process_video [post]
func (h *VideoHandler) ProcessVideo(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProcessVideoRequest
	if !bindJSON(c, &req) {
		return
	}

	videoID, err := resolveVideoID(&req)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if req.Async {
		if h.publisher == nil {
			dto.HandleError(c, apperrors.New(apperrors.CodeServiceUnavailable, "async ingestion is disabled"))
			return
		}
		job := entity.NewIngestJob(videoID, c.GetString("request_id"))
		if _, err := h.publisher.PublishIngestJob(ctx, job); err != nil {
			dto.HandleError(c, apperrors.Wrap(err, apperrors.CodeQueueError, "ingestion queue unavailable"))
			return
		}
		logger.Info(logger.WithVideoID(ctx, videoID), "ingest job queued", "job_id", job.JobID)
		dto.Accepted(c, &dto.IngestAcceptedResponse{
			VideoID: videoID,
			JobID:   job.JobID,
			Message: MessageQueued,
		})
		return
	}

	res, err := h.processor.Process(ctx, videoID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToProcessVideoResponse(res))
}

// PurgeVideo 删除视频记录及其分段
// @Summary 删除视频
// @Tags Videos
// @Param video_id path string true "视频 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/videos/{video_id} [delete]
func (h *VideoHandler) PurgeVideo(c *gin.Context) {
	if err := h.processor.Purge(c.Request.Context(), dto.BindVideoID(c)); err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.NoContent(c)
}
