package entity

import "time"

// ActiveSession 聊天用户当前关注的视频
type ActiveSession struct {
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	UpdatedAt time.Time `json:"updated_at"`
	// ExpiresAt 由存储的剩余 TTL 推算，不持久化；零值表示不过期
	ExpiresAt time.Time `json:"-"`
}
