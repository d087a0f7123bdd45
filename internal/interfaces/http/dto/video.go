package dto

import (
	"video-rag-api/internal/application/retrieval"
)

// ProcessVideoRequest 入库请求，video_id 与 youtube_url 二选一
type ProcessVideoRequest struct {
	VideoID    string `json:"video_id,omitempty" binding:"omitempty,max=64"`
	YouTubeURL string `json:"youtube_url,omitempty" binding:"omitempty,max=2048"`
	Async      bool   `json:"async,omitempty"`
}

// ProcessVideoResponse 同步入库响应
type ProcessVideoResponse struct {
	VideoID    string `json:"video_id"`
	Cached     bool   `json:"cached"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// IngestAcceptedResponse 异步入库响应
type IngestAcceptedResponse struct {
	VideoID string `json:"video_id"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// ToProcessVideoResponse 转换入库结果
func ToProcessVideoResponse(res *retrieval.ProcessResult) *ProcessVideoResponse {
	if res == nil {
		return nil
	}
	return &ProcessVideoResponse{
		VideoID:    res.VideoID,
		Cached:     res.Cached,
		ChunkCount: res.SegmentCount,
		Message:    res.Message,
	}
}
