package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "video-rag-api/pkg/errors"
)

func seedVideo(t *testing.T, store *memoryVectorStore, emb *hashEmbedder, videoID string, texts ...string) {
	t.Helper()
	vecs, err := embedBatch(context.Background(), emb, texts, 8)
	require.NoError(t, err)
	require.NoError(t, store.BulkInsert(context.Background(), videoID, texts, vecs))
}

func newTestEngine(store *memoryVectorStore, emb *hashEmbedder) *Engine {
	return NewEngine(emb, store, EngineOptions{
		DefaultTopK:    DefaultTopK,
		MaxTopK:        DefaultMaxTopK,
		ScoreThreshold: DefaultScoreThreshold,
		Dimension:      testDim,
	})
}

func TestSimilarityFromL2(t *testing.T) {
	assert.InDelta(t, 1.0, SimilarityFromL2(0), 1e-9)
	assert.InDelta(t, 0.0, SimilarityFromL2(math.Sqrt2), 1e-9)
	assert.InDelta(t, -1.0, SimilarityFromL2(2), 1e-9)
	assert.InDelta(t, 1.0, SimilarityFromL2(-0.1), 1e-9)

	prev := SimilarityFromL2(0)
	for d := 0.1; d <= 2.0; d += 0.1 {
		cur := SimilarityFromL2(d)
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestEngine_RetrieveRanksBySimilarity(t *testing.T) {
	store := newMemoryVectorStore()
	emb := newHashEmbedder()
	seedVideo(t, store, emb, "vid00000001",
		"solar panels convert sunlight into electricity",
		"the recipe needs flour sugar and butter",
		"wind turbines generate power from moving air",
	)

	engine := newTestEngine(store, emb)
	got, err := engine.Retrieve(context.Background(), RetrieveInput{
		VideoID:  "vid00000001",
		Question: "solar panels convert sunlight into electricity",
		TopK:     3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "solar panels convert sunlight into electricity", got[0])
	assert.Equal(t, 1, store.ensureCalls)
}

func TestEngine_RetrieveBelowThresholdIsEmpty(t *testing.T) {
	store := newMemoryVectorStore()
	emb := newHashEmbedder()
	seedVideo(t, store, emb, "vid00000001", "alpha beta gamma", "delta epsilon zeta")

	got, err := newTestEngine(store, emb).Retrieve(context.Background(), RetrieveInput{
		VideoID:  "vid00000001",
		Question: "completely unrelated query text",
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEngine_RetrieveUnknownVideoIsEmpty(t *testing.T) {
	store := newMemoryVectorStore()
	got, err := newTestEngine(store, newHashEmbedder()).Retrieve(context.Background(), RetrieveInput{
		VideoID:  "missing0000",
		Question: "anything",
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.ensureCalls)
}

func TestEngine_RetrieveScopedToVideo(t *testing.T) {
	store := newMemoryVectorStore()
	emb := newHashEmbedder()
	question := "how do rockets reach orbit"
	seedVideo(t, store, emb, "other000000", question, question, question)
	seedVideo(t, store, emb, "target00000", "rockets reach orbit by burning fuel", "orbit needs speed", "cooking pasta")

	out, err := newTestEngine(store, emb).Debug(context.Background(), RetrieveInput{
		VideoID:  "target00000",
		Question: question,
		TopK:     3,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Candidates), 3)
	for _, c := range out.Candidates {
		assert.NotEqual(t, question, c.Text)
	}
}

func TestEngine_TopKEnforcedWhenStoreReturnsMore(t *testing.T) {
	store := newMemoryVectorStore()
	store.ignoreTopK = true
	emb := newHashEmbedder()
	seedVideo(t, store, emb, "vid00000001", "a b c", "a b c", "a b c", "a b c", "a b c")

	out, err := newTestEngine(store, emb).Debug(context.Background(), RetrieveInput{
		VideoID:  "vid00000001",
		Question: "a b c",
		TopK:     3,
	})
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 3)
	assert.Len(t, out.Texts(), 3)
}

func TestEngine_DebugReportsScores(t *testing.T) {
	store := newMemoryVectorStore()
	emb := newHashEmbedder()
	seedVideo(t, store, emb, "vid00000001", "exact match phrase", "nothing in common here")

	out, err := newTestEngine(store, emb).Debug(context.Background(), RetrieveInput{
		VideoID:  "vid00000001",
		Question: "exact match phrase",
	})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, DefaultTopK, out.TopK)
	assert.Equal(t, DefaultScoreThreshold, out.Threshold)

	assert.InDelta(t, 1.0, out.Candidates[0].Score, 1e-6)
	assert.True(t, out.Candidates[0].Passed)
	assert.GreaterOrEqual(t, out.Candidates[0].Score, out.Candidates[1].Score)
	assert.False(t, out.Candidates[1].Passed)
	assert.Equal(t, []string{"exact match phrase"}, out.Texts())
}

func TestEngine_InvalidInput(t *testing.T) {
	engine := newTestEngine(newMemoryVectorStore(), newHashEmbedder())

	tests := []struct {
		name string
		in   RetrieveInput
	}{
		{"empty question", RetrieveInput{VideoID: "v", Question: ""}},
		{"blank question", RetrieveInput{VideoID: "v", Question: "   "}},
		{"empty video", RetrieveInput{VideoID: " ", Question: "q"}},
		{"negative top_k", RetrieveInput{VideoID: "v", Question: "q", TopK: -1}},
		{"top_k above max", RetrieveInput{VideoID: "v", Question: "q", TopK: DefaultMaxTopK + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Retrieve(context.Background(), tt.in)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
		})
	}
}

func TestEngine_DependencyFailures(t *testing.T) {
	t.Run("embedder down", func(t *testing.T) {
		emb := newHashEmbedder()
		emb.err = errors.New("connection refused")
		_, err := newTestEngine(newMemoryVectorStore(), emb).Retrieve(context.Background(), RetrieveInput{VideoID: "v", Question: "q"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingFailed))
		assert.True(t, apperrors.AsAppError(err).Retryable())
	})

	t.Run("index creation fails", func(t *testing.T) {
		store := newMemoryVectorStore()
		store.ensureErr = errors.New("lock timeout")
		_, err := newTestEngine(store, newHashEmbedder()).Retrieve(context.Background(), RetrieveInput{VideoID: "v", Question: "q"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
	})

	t.Run("search fails", func(t *testing.T) {
		store := newMemoryVectorStore()
		store.searchErr = errors.New("connection reset")
		_, err := newTestEngine(store, newHashEmbedder()).Retrieve(context.Background(), RetrieveInput{VideoID: "v", Question: "q"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
	})

	t.Run("configured dimension differs from embedder", func(t *testing.T) {
		engine := NewEngine(newHashEmbedder(), newMemoryVectorStore(), EngineOptions{Dimension: 384})
		_, err := engine.Retrieve(context.Background(), RetrieveInput{VideoID: "v", Question: "q"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingDimension))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("stored vectors have another dimension", func(t *testing.T) {
		store := newMemoryVectorStore()
		require.NoError(t, store.BulkInsert(context.Background(), "v", []string{"x"}, [][]float32{{1, 0, 0}}))
		_, err := newTestEngine(store, newHashEmbedder()).Retrieve(context.Background(), RetrieveInput{VideoID: "v", Question: "q"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingDimension))
	})
}

func TestNewEngine_ClampsOptions(t *testing.T) {
	e := NewEngine(nil, nil, EngineOptions{DefaultTopK: 50, MaxTopK: 10})
	assert.Equal(t, 10, e.Options().DefaultTopK)

	e = NewEngine(nil, nil, EngineOptions{})
	assert.Equal(t, DefaultTopK, e.Options().DefaultTopK)
	assert.Equal(t, DefaultMaxTopK, e.Options().MaxTopK)
}
