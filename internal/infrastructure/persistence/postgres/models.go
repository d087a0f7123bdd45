package postgres

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"video-rag-api/internal/domain/entity"
)

const (
	videosTable   = "videos"
	segmentsTable = "segments"
)

type videoModel struct {
	ID                  int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VideoID             string    `gorm:"column:video_id;uniqueIndex"`
	EncryptedTranscript string    `gorm:"column:encrypted_transcript"`
	Language            string    `gorm:"column:language"`
	CreatedAt           time.Time `gorm:"column:created_at"`
}

func (videoModel) TableName() string { return videosTable }

func newVideoModel(v *entity.Video) *videoModel {
	return &videoModel{
		VideoID:             v.VideoID,
		EncryptedTranscript: v.EncryptedTranscript,
		Language:            entity.NormalizeLanguage(v.Language),
		CreatedAt:           v.CreatedAt,
	}
}

func (m *videoModel) toEntity() *entity.Video {
	return &entity.Video{
		ID:                  m.ID,
		VideoID:             m.VideoID,
		EncryptedTranscript: m.EncryptedTranscript,
		Language:            m.Language,
		CreatedAt:           m.CreatedAt,
	}
}

// segmentModel (video_id, segment_index) 复合主键，写入时不需要 RETURNING
type segmentModel struct {
	VideoID      string          `gorm:"column:video_id;primaryKey;autoIncrement:false"`
	SegmentIndex int             `gorm:"column:segment_index;primaryKey;autoIncrement:false"`
	Content      string          `gorm:"column:content"`
	Embedding    pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (segmentModel) TableName() string { return segmentsTable }

func newSegmentModel(s *entity.Segment) *segmentModel {
	return &segmentModel{
		VideoID:      s.VideoID,
		SegmentIndex: s.Index,
		Content:      s.Content,
		Embedding:    pgvector.NewVector(s.Embedding),
		CreatedAt:    s.CreatedAt,
	}
}

type searchRow struct {
	SegmentIndex int     `gorm:"column:segment_index"`
	Content      string  `gorm:"column:content"`
	Distance     float64 `gorm:"column:distance"`
}
