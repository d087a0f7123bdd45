package repository

import (
	"context"

	"video-rag-api/internal/domain/entity"
)

// VideoRepository 视频处理记录仓储接口
type VideoRepository interface {
	// Create 创建记录，video_id 已存在时返回 ErrDuplicateKey
	Create(ctx context.Context, video *entity.Video) error

	// GetByVideoID 获取记录，不存在时返回 nil, nil
	GetByVideoID(ctx context.Context, videoID string) (*entity.Video, error)

	// ExistsByVideoID 检查记录是否存在
	ExistsByVideoID(ctx context.Context, videoID string) (bool, error)

	// Delete 删除记录（分段级联删除），返回是否存在
	Delete(ctx context.Context, videoID string) (bool, error)
}
