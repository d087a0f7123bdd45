// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionSegments 视频分段集合
	CollectionSegments = "video_segments"

	fieldID           = "id"
	fieldVector       = "vector"
	fieldVideoID      = "video_id"
	fieldSegmentIndex = "segment_index"
	fieldContent      = "content"

	IndexTypeHNSW    = "HNSW"
	IndexTypeIVFFlat = "IVF_FLAT"
)

// SegmentsSchema 视频分段 Collection Schema
func SegmentsSchema(dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionSegments,
		Description:    "Video transcript segments for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dimension),
				},
			},
			{
				Name:     fieldVideoID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldSegmentIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldContent,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// Segment 分段数据结构
type Segment struct {
	VideoID      string
	SegmentIndex int
	Content      string
	Vector       []float32
}

// SegmentID 主键：video_id:segment_index
func SegmentID(videoID string, index int) string {
	return videoID + ":" + strconv.Itoa(index)
}

// videoFilter 构造 video_id 过滤表达式
func videoFilter(videoID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(videoID)
	return fmt.Sprintf(`%s == "%s"`, fieldVideoID, escaped)
}

// distanceFromL2Score Milvus L2 返回平方距离
func distanceFromL2Score(score float32) float64 {
	if score <= 0 {
		return 0
	}
	return math.Sqrt(float64(score))
}
