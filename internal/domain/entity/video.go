// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// LanguageUnknown 未识别语言
const LanguageUnknown = "unknown"

// Video 视频处理记录（每个 video_id 仅一条，只追加不修改）
type Video struct {
	ID                  int64     `json:"id"`
	VideoID             string    `json:"video_id"`
	EncryptedTranscript string    `json:"-"`
	Language            string    `json:"language"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewVideo 创建视频记录
func NewVideo(videoID, encryptedTranscript, language string) *Video {
	return &Video{
		VideoID:             videoID,
		EncryptedTranscript: encryptedTranscript,
		Language:            NormalizeLanguage(language),
		CreatedAt:           time.Now(),
	}
}

// NormalizeLanguage 空语言归一为 unknown
func NormalizeLanguage(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return LanguageUnknown
	}
	return language
}
