package repository

import (
	"context"

	"video-rag-api/internal/domain/entity"
)

// SessionRepository 聊天会话状态仓储接口
type SessionRepository interface {
	// SetActiveVideo 设置用户当前视频
	SetActiveVideo(ctx context.Context, userID, videoID string) (*entity.ActiveSession, error)

	// GetActiveVideo 获取用户当前视频，不存在时返回 nil, nil
	GetActiveVideo(ctx context.Context, userID string) (*entity.ActiveSession, error)

	// ClearActiveVideo 清除用户当前视频
	ClearActiveVideo(ctx context.Context, userID string) error
}
