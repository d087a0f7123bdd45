// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"video-rag-api/internal/application/retrieval"
	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/infrastructure/transcript"
	"video-rag-api/internal/interfaces/http/dto"
	apperrors "video-rag-api/pkg/errors"
)

// VideoProcessor 入库编排，由 retrieval.Indexer 实现
type VideoProcessor interface {
	Process(ctx context.Context, videoID string) (*retrieval.ProcessResult, error)
	Purge(ctx context.Context, videoID string) error
}

// IngestPublisher 异步入库任务发布，由 messaging.Producer 实现
type IngestPublisher interface {
	PublishIngestJob(ctx context.Context, job *entity.IngestJob) (string, error)
}

// ChunkRetriever 检索编排，由 retrieval.Engine 实现
type ChunkRetriever interface {
	Retrieve(ctx context.Context, in retrieval.RetrieveInput) ([]string, error)
	Debug(ctx context.Context, in retrieval.RetrieveInput) (*retrieval.RetrieveOutput, error)
}

// bindJSON 绑定请求体，失败时写入 400
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		dto.HandleError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return false
	}
	return true
}

// resolveVideoID video_id 优先，其次从 youtube_url 解析
func resolveVideoID(req *dto.ProcessVideoRequest) (string, error) {
	if id := strings.TrimSpace(req.VideoID); id != "" {
		return id, nil
	}
	if strings.TrimSpace(req.YouTubeURL) != "" {
		return transcript.ExtractVideoID(req.YouTubeURL)
	}
	return "", apperrors.New(apperrors.CodeInvalidParam, "video_id or youtube_url is required")
}
