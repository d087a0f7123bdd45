package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHNSWM              = 16
	defaultHNSWEfConstruction = 64
	defaultHNSWSearchEf       = 128
	defaultIVFNList           = 128
	defaultIVFNProbe          = 16
)

// Repository 向量检索仓储
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dimension int) *Repository {
	return &Repository{client: client, dimension: dimension}
}

// SearchResult 检索结果，Score 为 Milvus 返回的平方 L2 距离
type SearchResult struct {
	ID           string
	SegmentIndex int
	Content      string
	Score        float32
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 在 vector 字段上创建 L2 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	idx, err := r.buildIndex()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, r.client.CollectionName(collection), fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (r *Repository) buildIndex() (entity.Index, error) {
	cfg := r.client.config
	if strings.EqualFold(cfg.IndexType, IndexTypeIVFFlat) {
		idx, err := entity.NewIndexIvfFlat(entity.L2, defaultIVFNList)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	m, ef := cfg.HNSWM, cfg.HNSWEfConstruction
	if m <= 0 {
		m = defaultHNSWM
	}
	if ef <= 0 {
		ef = defaultHNSWEfConstruction
	}
	idx, err := entity.NewIndexHNSW(entity.L2, m, ef)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (r *Repository) buildSearchParam() (entity.SearchParam, error) {
	if strings.EqualFold(r.client.config.IndexType, IndexTypeIVFFlat) {
		sp, err := entity.NewIndexIvfFlatSearchParam(defaultIVFNProbe)
		if err != nil {
			return nil, err
		}
		return sp, nil
	}
	sp, err := entity.NewIndexHNSWSearchParam(defaultHNSWSearchEf)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// EnsureSegmentsCollection 确保分段集合与索引可用（不存在则创建），不做破坏性操作。
// 并发创建失败时重新检查集合是否已由其他实例创建。
func (r *Repository) EnsureSegmentsCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	exists, err := r.client.HasCollection(ctx, CollectionSegments)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, SegmentsSchema(r.dimension)); err != nil {
			again, checkErr := r.client.HasCollection(ctx, CollectionSegments)
			if checkErr != nil || !again {
				return err
			}
		} else if err := r.CreateIndex(ctx, CollectionSegments); err != nil {
			return err
		}
	}

	return r.client.EnsureLoaded(ctx, CollectionSegments)
}

// InsertSegments 插入一个视频的分段
func (r *Repository) InsertSegments(ctx context.Context, segments []*Segment) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertSegments",
		trace.WithAttributes(
			attribute.String("video_id", segments[0].VideoID),
			attribute.Int("count", len(segments)),
		))
	defer span.End()

	ids := make([]string, len(segments))
	vectors := make([][]float32, len(segments))
	videoIDs := make([]string, len(segments))
	indexes := make([]int64, len(segments))
	contents := make([]string, len(segments))

	for i, seg := range segments {
		ids[i] = SegmentID(seg.VideoID, seg.SegmentIndex)
		vectors[i] = seg.Vector
		videoIDs[i] = seg.VideoID
		indexes[i] = int64(seg.SegmentIndex)
		contents[i] = seg.Content
	}

	_, err := r.client.milvus.Insert(ctx, r.client.CollectionName(CollectionSegments), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, len(vectors[0]), vectors),
		entity.NewColumnVarChar(fieldVideoID, videoIDs),
		entity.NewColumnInt64(fieldSegmentIndex, indexes),
		entity.NewColumnVarChar(fieldContent, contents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// SearchSegments 在 video_id 范围内检索
func (r *Repository) SearchSegments(ctx context.Context, videoID string, queryVector []float32, topK int) ([]*SearchResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchSegments",
		trace.WithAttributes(
			attribute.String("video_id", videoID),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	sp, err := r.buildSearchParam()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		r.client.CollectionName(CollectionSegments),
		nil,
		videoFilter(videoID),
		[]string{fieldID, fieldSegmentIndex, fieldContent},
		[]entity.Vector{entity.FloatVector(queryVector)},
		fieldVector,
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	out := parseSearchResults(results)
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func parseSearchResults(results []client.SearchResult) []*SearchResult {
	var out []*SearchResult
	for _, result := range results {
		idCol, _ := result.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		idxCol, _ := result.Fields.GetColumn(fieldSegmentIndex).(*entity.ColumnInt64)
		contentCol, _ := result.Fields.GetColumn(fieldContent).(*entity.ColumnVarChar)

		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{Score: result.Scores[i]}
			if idCol != nil {
				sr.ID = idCol.Data()[i]
			}
			if idxCol != nil {
				sr.SegmentIndex = int(idxCol.Data()[i])
			}
			if contentCol != nil {
				sr.Content = contentCol.Data()[i]
			}
			out = append(out, sr)
		}
	}
	return out
}

// DeleteSegmentsByVideo 删除视频的全部分段
func (r *Repository) DeleteSegmentsByVideo(ctx context.Context, videoID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteSegmentsByVideo",
		trace.WithAttributes(attribute.String("video_id", videoID)))
	defer span.End()

	if err := r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionSegments), "", videoFilter(videoID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}
