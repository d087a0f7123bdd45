package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-rag-api/internal/application/transcript"
	"video-rag-api/internal/domain/repository"
	"video-rag-api/pkg/crypto"
	apperrors "video-rag-api/pkg/errors"
)

type indexerFixture struct {
	videos  *memoryVideoRepository
	cache   *transcript.Cache
	fetcher *countingFetcher
	emb     *hashEmbedder
	store   *memoryVectorStore
	tx      *passthroughTx
	indexer *Indexer
}

func newIndexerFixture(t *testing.T, chunkSize, overlap int) *indexerFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	gate, err := crypto.NewGate(key)
	require.NoError(t, err)
	splitter, err := NewSplitter(chunkSize, overlap)
	require.NoError(t, err)

	f := &indexerFixture{
		videos:  newMemoryVideoRepository(),
		fetcher: &countingFetcher{texts: map[string]string{}, language: "en"},
		emb:     newHashEmbedder(),
		store:   newMemoryVectorStore(),
		tx:      &passthroughTx{},
	}
	f.cache = transcript.NewCache(f.videos, gate)
	f.indexer = NewIndexer(f.cache, f.fetcher, splitter, f.emb, f.store, f.tx, IndexerOptions{
		EmbeddingBatchSize: 4,
		Dimension:          testDim,
	})
	return f
}

func TestIndexer_EndToEnd(t *testing.T) {
	f := newIndexerFixture(t, DefaultChunkSize, DefaultChunkOverlap)
	const videoID = "abc123xyz00"
	text := "in this video we discuss how neural networks learn from data " +
		"and what gradient descent does during training we also cover " +
		"overfitting regularization and how to evaluate a model on held out " +
		"data before deploying it to production systems for real users today " +
		"with a short summary at the end"
	require.Len(t, strings.Fields(text), 50)
	f.fetcher.texts[videoID] = text

	res, err := f.indexer.Process(context.Background(), videoID)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, res.SegmentCount)
	assert.Equal(t, MessageProcessed, res.Message)
	assert.Equal(t, 1, f.store.count(videoID))

	again, err := f.indexer.Process(context.Background(), videoID)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 0, again.SegmentCount)
	assert.Equal(t, MessageAlreadyProcessed, again.Message)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, 1, f.store.count(videoID))

	stored, err := f.cache.Get(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, text, stored.Text)
	assert.Equal(t, "en", stored.Language)
	assert.NotContains(t, f.videos.videos[videoID].EncryptedTranscript, "neural")

	engine := NewEngine(f.emb, f.store, EngineOptions{ScoreThreshold: 0, Dimension: testDim})
	chunks, err := engine.Retrieve(context.Background(), RetrieveInput{
		VideoID:  videoID,
		Question: "what is discussed",
		TopK:     3,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.Contains(t, text, c)
	}
}

func TestIndexer_SegmentsFollowChunker(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["vid00000020"] = strings.Join(words("w", 20), " ")

	res, err := f.indexer.Process(context.Background(), "vid00000020")
	require.NoError(t, err)
	assert.Equal(t, 3, res.SegmentCount)

	segs := f.store.segments["vid00000020"]
	require.Len(t, segs, 3)
	for i, s := range segs {
		assert.Equal(t, i, s.index)
		assert.Len(t, s.embedding, testDim)
	}
	assert.Equal(t, 1, f.emb.calls)
}

func TestIndexer_FetchFailureStoresNothing(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.err = errors.New("captions disabled")

	res, err := f.indexer.Process(context.Background(), "nocaptions0")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTranscriptUnavailable))
	assert.Empty(t, f.videos.videos)
	assert.Equal(t, 0, f.store.count("nocaptions0"))
}

func TestIndexer_EmptyTranscriptKeepsRecord(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["silent00000"] = "   \n "

	_, err := f.indexer.Process(context.Background(), "silent00000")
	assert.ErrorIs(t, err, apperrors.ErrSegmentationFailed)
	assert.Contains(t, f.videos.videos, "silent00000")
	assert.Equal(t, 0, f.store.count("silent00000"))
}

func TestIndexer_EmbeddingFailureKeepsRecord(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["vid00000001"] = "some transcript words"
	f.emb.err = errors.New("model server down")

	_, err := f.indexer.Process(context.Background(), "vid00000001")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingFailed))
	assert.Contains(t, f.videos.videos, "vid00000001")
	assert.Equal(t, 0, f.store.count("vid00000001"))
}

func TestIndexer_VectorInsertFailure(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["vid00000001"] = "some transcript words"
	f.store.insertErr = errors.New("disk full")

	_, err := f.indexer.Process(context.Background(), "vid00000001")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
}

func TestIndexer_StorageDownOnCacheCheck(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.videos.err = errors.New("connection refused")

	_, err := f.indexer.Process(context.Background(), "vid00000001")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))
	assert.True(t, apperrors.AsAppError(err).Retryable())
	assert.Equal(t, 0, f.fetcher.calls)
}

func TestIndexer_DimensionMismatch(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.indexer.opts.Dimension = 384
	f.fetcher.texts["vid00000001"] = "some transcript words"

	_, err := f.indexer.Process(context.Background(), "vid00000001")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingDimension))
}

func TestIndexer_InvalidVideoID(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	_, err := f.indexer.Process(context.Background(), "  ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

// raceStore 模拟另一个请求在本请求抓取期间完成了写入
type raceStore struct {
	TranscriptStore
}

func (raceStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (raceStore) Store(context.Context, string, string, string) error {
	return apperrors.Wrap(repository.ErrDuplicateKey, apperrors.CodeConflict, "video already stored")
}

func TestIndexer_ConcurrentFirstIngestReturnsCached(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["racing00000"] = "words for the race"
	f.indexer.transcripts = raceStore{}

	res, err := f.indexer.Process(context.Background(), "racing00000")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 0, f.store.count("racing00000"))
}

func TestIndexer_ParallelProcessSameVideo(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["parallel000"] = strings.Join(words("p", 30), " ")

	const n = 8
	var wg sync.WaitGroup
	results := make([]*ProcessResult, n)
	errs := make([]error, n)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			results[k], errs[k] = f.indexer.Process(context.Background(), "parallel000")
		}(k)
	}
	wg.Wait()

	fresh := 0
	for k := 0; k < n; k++ {
		require.NoError(t, errs[k])
		if !results[k].Cached {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 4, f.store.count("parallel000"))
}

func TestIndexer_Purge(t *testing.T) {
	f := newIndexerFixture(t, 10, 2)
	f.fetcher.texts["vid00000001"] = strings.Join(words("w", 20), " ")
	_, err := f.indexer.Process(context.Background(), "vid00000001")
	require.NoError(t, err)

	require.NoError(t, f.indexer.Purge(context.Background(), "vid00000001"))
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, 0, f.store.count("vid00000001"))
	assert.NotContains(t, f.videos.videos, "vid00000001")

	err = f.indexer.Purge(context.Background(), "vid00000001")
	assert.ErrorIs(t, err, apperrors.ErrVideoNotFound)

	res, err := f.indexer.Process(context.Background(), "vid00000001")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, f.fetcher.calls)
}
