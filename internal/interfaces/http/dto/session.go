package dto

import (
	"time"

	"video-rag-api/internal/domain/entity"
)

// SetSessionRequest 设置当前视频
type SetSessionRequest struct {
	VideoID string `json:"video_id" binding:"required,max=64"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	UserID    string `json:"user_id"`
	VideoID   string `json:"video_id"`
	UpdatedAt string `json:"updated_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ToSessionResponse 转换会话
func ToSessionResponse(s *entity.ActiveSession) *SessionResponse {
	if s == nil {
		return nil
	}
	resp := &SessionResponse{
		UserID:  s.UserID,
		VideoID: s.VideoID,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	if !s.ExpiresAt.IsZero() {
		resp.ExpiresAt = s.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
