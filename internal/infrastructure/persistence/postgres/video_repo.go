package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/domain/repository"
)

// VideoRepository 视频处理记录仓储实现
type VideoRepository struct {
	client *Client
}

// NewVideoRepository 创建视频记录仓储
func NewVideoRepository(client *Client) *VideoRepository {
	return &VideoRepository{client: client}
}

// Create 创建记录，video_id 冲突时返回 repository.ErrDuplicateKey
func (r *VideoRepository) Create(ctx context.Context, video *entity.Video) error {
	ctx, span := tracer.Start(ctx, "postgres.VideoRepository.Create")
	defer span.End()

	m := newVideoModel(video)
	if err := getDB(ctx, r.client.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("video %s: %w", video.VideoID, repository.ErrDuplicateKey)
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create video: %w", err)
	}
	video.ID = m.ID
	video.CreatedAt = m.CreatedAt
	return nil
}

// GetByVideoID 根据 video_id 获取记录
func (r *VideoRepository) GetByVideoID(ctx context.Context, videoID string) (*entity.Video, error) {
	ctx, span := tracer.Start(ctx, "postgres.VideoRepository.GetByVideoID")
	defer span.End()

	var m videoModel
	if err := getDB(ctx, r.client.db).Where("video_id = ?", videoID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return m.toEntity(), nil
}

// ExistsByVideoID 检查记录是否存在
func (r *VideoRepository) ExistsByVideoID(ctx context.Context, videoID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.VideoRepository.ExistsByVideoID")
	defer span.End()

	var exists bool
	err := getDB(ctx, r.client.db).
		Raw("SELECT EXISTS (SELECT 1 FROM videos WHERE video_id = ?)", videoID).
		Scan(&exists).Error
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check video: %w", err)
	}
	return exists, nil
}

// Delete 删除记录，分段由外键级联删除
func (r *VideoRepository) Delete(ctx context.Context, videoID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.VideoRepository.Delete")
	defer span.End()

	res := getDB(ctx, r.client.db).Where("video_id = ?", videoID).Delete(&videoModel{})
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to delete video: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
