package entity

import (
	"time"

	"github.com/google/uuid"
)

// IngestJob 异步入库任务
type IngestJob struct {
	JobID       string    `json:"job_id"`
	VideoID     string    `json:"video_id"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewIngestJob 创建入库任务
func NewIngestJob(videoID, requestID string) *IngestJob {
	return &IngestJob{
		JobID:       uuid.NewString(),
		VideoID:     videoID,
		RequestID:   requestID,
		RequestedAt: time.Now().UTC(),
	}
}
