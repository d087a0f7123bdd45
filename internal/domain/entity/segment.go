package entity

import "time"

// Segment 转写分段及其向量，(VideoID, Index) 唯一
type Segment struct {
	VideoID   string    `json:"video_id"`
	Index     int       `json:"segment_index"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
