package retrieval

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"

	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/domain/repository"
)

const testDim = 64

// hashEmbedder 词袋哈希向量，归一化为单位向量
type hashEmbedder struct {
	dim   int
	err   error
	calls int
	mu    sync.Mutex
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: testDim}
}

func (e *hashEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, hashVector(t, e.dim))
	}
	return out, nil
}

func hashVector(text string, dim int) []float64 {
	vec := make([]float64, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%dim]++
	}
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

type storedSegment struct {
	index     int
	content   string
	embedding []float32
}

// memoryVectorStore 内存向量库，按 L2 距离排序
type memoryVectorStore struct {
	mu          sync.Mutex
	segments    map[string][]storedSegment
	ensureCalls int
	ignoreTopK  bool
	ensureErr   error
	insertErr   error
	searchErr   error
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{segments: make(map[string][]storedSegment)}
}

func (s *memoryVectorStore) EnsureIndex(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	return s.ensureErr
}

func (s *memoryVectorStore) BulkInsert(_ context.Context, videoID string, texts []string, embeddings [][]float32) error {
	if err := ValidateBulkInsert(videoID, texts, embeddings); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	rows := make([]storedSegment, 0, len(texts))
	for i := range texts {
		rows = append(rows, storedSegment{index: i, content: texts[i], embedding: embeddings[i]})
	}
	s.segments[videoID] = append(s.segments[videoID], rows...)
	return nil
}

func (s *memoryVectorStore) Search(_ context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []*VectorSearchResult
	for _, seg := range s.segments[params.VideoID] {
		if len(seg.embedding) != len(params.QueryVector) {
			return nil, ErrDimensionMismatch
		}
		out = append(out, &VectorSearchResult{
			SegmentIndex: seg.index,
			Content:      seg.content,
			Distance:     l2(seg.embedding, params.QueryVector),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	if !s.ignoreTopK && len(out) > params.TopK {
		out = out[:params.TopK]
	}
	return out, nil
}

func (s *memoryVectorStore) DeleteByVideo(_ context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, videoID)
	return nil
}

func (s *memoryVectorStore) count(videoID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments[videoID])
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// countingFetcher 记录抓取次数
type countingFetcher struct {
	mu       sync.Mutex
	texts    map[string]string
	language string
	err      error
	calls    int
}

func (f *countingFetcher) Fetch(_ context.Context, videoID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	text, ok := f.texts[videoID]
	if !ok {
		return "", "", errors.New("no captions")
	}
	return text, f.language, nil
}

// memoryVideoRepository 内存视频记录仓储，video_id 唯一
type memoryVideoRepository struct {
	mu     sync.Mutex
	videos map[string]*entity.Video
	err    error
}

func newMemoryVideoRepository() *memoryVideoRepository {
	return &memoryVideoRepository{videos: make(map[string]*entity.Video)}
}

func (r *memoryVideoRepository) Create(_ context.Context, video *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.videos[video.VideoID]; ok {
		return repository.ErrDuplicateKey
	}
	cp := *video
	cp.ID = int64(len(r.videos) + 1)
	r.videos[video.VideoID] = &cp
	return nil
}

func (r *memoryVideoRepository) GetByVideoID(_ context.Context, videoID string) (*entity.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.videos[videoID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *memoryVideoRepository) ExistsByVideoID(_ context.Context, videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.videos[videoID]
	return ok, nil
}

func (r *memoryVideoRepository) Delete(_ context.Context, videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.videos[videoID]
	delete(r.videos, videoID)
	return ok, nil
}

// passthroughTx 直接执行
type passthroughTx struct{ calls int }

func (t *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i)
	}
	return out
}
