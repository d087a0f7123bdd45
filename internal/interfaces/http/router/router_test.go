package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-rag-api/internal/application/retrieval"
	"video-rag-api/internal/config"
	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/interfaces/http/handler"
	apperrors "video-rag-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	processed []string
	result    *retrieval.ProcessResult
	err       error
	purgeErr  error
}

func (f *fakeProcessor) Process(_ context.Context, videoID string) (*retrieval.ProcessResult, error) {
	f.processed = append(f.processed, videoID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &retrieval.ProcessResult{VideoID: videoID, SegmentCount: 3, Message: retrieval.MessageProcessed}, nil
}

func (f *fakeProcessor) Purge(_ context.Context, _ string) error {
	return f.purgeErr
}

type fakePublisher struct {
	jobs []*entity.IngestJob
	err  error
}

func (f *fakePublisher) PublishIngestJob(_ context.Context, job *entity.IngestJob) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "1-0", nil
}

type fakeRetriever struct {
	got    retrieval.RetrieveInput
	chunks []string
	out    *retrieval.RetrieveOutput
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, in retrieval.RetrieveInput) ([]string, error) {
	f.got = in
	return f.chunks, f.err
}

func (f *fakeRetriever) Debug(_ context.Context, in retrieval.RetrieveInput) (*retrieval.RetrieveOutput, error) {
	f.got = in
	return f.out, f.err
}

type fakeSessions struct {
	data map[string]*entity.ActiveSession
	err  error
}

func (f *fakeSessions) SetActiveVideo(_ context.Context, userID, videoID string) (*entity.ActiveSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &entity.ActiveSession{UserID: userID, VideoID: videoID, UpdatedAt: time.Now()}
	f.data[userID] = s
	return s, nil
}

func (f *fakeSessions) GetActiveVideo(_ context.Context, userID string) (*entity.ActiveSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[userID], nil
}

func (f *fakeSessions) ClearActiveVideo(_ context.Context, userID string) error {
	delete(f.data, userID)
	return f.err
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

type testServer struct {
	engine    *gin.Engine
	processor *fakeProcessor
	publisher *fakePublisher
	retriever *fakeRetriever
	sessions  *fakeSessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		processor: &fakeProcessor{},
		publisher: &fakePublisher{},
		retriever: &fakeRetriever{},
		sessions:  &fakeSessions{data: map[string]*entity.ActiveSession{}},
	}
	cfg := &config.Config{}
	cfg.App.Name = "video-rag-api"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"

	r := New(cfg, Handlers{
		Health:    handler.NewHealthHandler("test", fakeChecker{}, fakeChecker{}, nil),
		Video:     handler.NewVideoHandler(ts.processor, ts.publisher),
		Retrieval: handler.NewRetrievalHandler(ts.retriever),
		Session:   handler.NewSessionHandler(ts.sessions),
	}, nil)
	ts.engine = r.Engine()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details *struct {
		ErrorCode string `json:"error_code"`
		Detail    string `json:"detail"`
		Retryable bool   `json:"retryable"`
	} `json:"details"`
	TraceID string `json:"trace_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestProcessVideoSync(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"video_id": "abc123xyz00"})
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	assert.Equal(t, 200, env.Code)
	assert.NotEmpty(t, env.TraceID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "abc123xyz00", data["video_id"])
	assert.Equal(t, false, data["cached"])
	assert.Equal(t, float64(3), data["chunk_count"])
	assert.Equal(t, retrieval.MessageProcessed, data["message"])
}

func TestProcessVideoFromURL(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"youtube_url": "https://youtu.be/dQw4w9WgXcQ?t=3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, ts.processor.processed)
}

func TestProcessVideoInvalidInput(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"youtube_url": "https://vimeo.com/1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid YouTube URL", decode(t, w).Message)
	assert.Empty(t, ts.processor.processed)
}

func TestProcessVideoErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"transcript unavailable", apperrors.Wrap(errors.New("no captions"), apperrors.CodeTranscriptUnavailable, "transcript not available"), http.StatusUnprocessableEntity},
		{"segmentation", apperrors.ErrSegmentationFailed, http.StatusUnprocessableEntity},
		{"storage", apperrors.ErrDatabase, http.StatusServiceUnavailable},
		{"vector", apperrors.ErrVectorDB, http.StatusServiceUnavailable},
		{"embedding", apperrors.ErrEmbeddingFailed, http.StatusServiceUnavailable},
		{"corrupted", apperrors.ErrDataCorrupted, http.StatusInternalServerError},
		{"dimension", apperrors.ErrEmbeddingDimension, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.processor.err = tc.err

			w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"video_id": "abc123xyz00"})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.status, decode(t, w).Code)
		})
	}
}

func TestProcessVideoAsync(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"video_id": "abc123xyz00", "async": true})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ts.publisher.jobs, 1)
	assert.Empty(t, ts.processor.processed)

	var data map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, ts.publisher.jobs[0].JobID, data["job_id"])
	assert.Equal(t, handler.MessageQueued, data["message"])
	assert.NotEmpty(t, ts.publisher.jobs[0].RequestID)
}

func TestProcessVideoAsyncQueueDown(t *testing.T) {
	ts := newTestServer(t)
	ts.publisher.err = errors.New("redis down")

	w := ts.do(t, http.MethodPost, "/api/v1/process_video", map[string]any{"video_id": "abc123xyz00", "async": true})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPurgeVideo(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodDelete, "/api/v1/videos/abc123xyz00", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	ts.processor.purgeErr = apperrors.ErrVideoNotFound
	w = ts.do(t, http.MethodDelete, "/api/v1/videos/abc123xyz00", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetrieveChunks(t *testing.T) {
	ts := newTestServer(t)
	ts.retriever.chunks = []string{"first", "second"}

	w := ts.do(t, http.MethodPost, "/api/v1/retrieve_chunks", map[string]any{
		"video_id": "abc123xyz00", "question": "what is rag?", "top_k": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, retrieval.RetrieveInput{VideoID: "abc123xyz00", Question: "what is rag?", TopK: 3}, ts.retriever.got)

	var data struct {
		VideoID string   `json:"video_id"`
		Chunks  []string `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, []string{"first", "second"}, data.Chunks)
}

func TestRetrieveChunksEmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/retrieve_chunks", map[string]any{"video_id": "abc123xyz00", "question": "q"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks":[]`)
}

func TestRetrieveChunksValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/retrieve_chunks", map[string]any{"video_id": "abc123xyz00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.retriever.err = apperrors.New(apperrors.CodeInvalidParam, "top_k must be between 1 and 20")
	w = ts.do(t, http.MethodPost, "/api/v1/retrieve_chunks", map[string]any{"video_id": "abc123xyz00", "question": "q", "top_k": 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "top_k must be between 1 and 20", decode(t, w).Message)
}

func TestDebugRetrieval(t *testing.T) {
	ts := newTestServer(t)
	ts.retriever.out = &retrieval.RetrieveOutput{
		VideoID:   "abc123xyz00",
		TopK:      5,
		Threshold: 0.75,
		Candidates: []retrieval.ScoredSegment{
			{SegmentIndex: 2, Text: "match", Distance: 0.3, Score: 0.955, Passed: true},
			{SegmentIndex: 0, Text: "miss", Distance: 1.2, Score: 0.28},
		},
	}

	w := ts.do(t, http.MethodPost, "/api/v1/retrieve_chunks/debug", map[string]any{"video_id": "abc123xyz00", "question": "q"})
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Threshold  float64 `json:"threshold"`
		Candidates []struct {
			SegmentIndex int  `json:"segment_index"`
			Passed       bool `json:"passed"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 0.75, data.Threshold)
	require.Len(t, data.Candidates, 2)
	assert.True(t, data.Candidates[0].Passed)
	assert.False(t, data.Candidates[1].Passed)
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/sessions/u-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/sessions/u-1", map[string]any{"video_id": "abc123xyz00"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "abc123xyz00", data["video_id"])
	assert.Equal(t, "u-1", data["user_id"])

	w = ts.do(t, http.MethodDelete, "/api/v1/sessions/u-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/sessions/u-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.sessions.err = errors.New("redis down")
	w = ts.do(t, http.MethodGet, "/api/v1/sessions/u-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/live", "/ready"} {
		w := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyFailsWithoutPostgres(t *testing.T) {
	cfg := &config.Config{}
	r := New(cfg, Handlers{
		Health: handler.NewHealthHandler("test", fakeChecker{err: errors.New("down")}, fakeChecker{}, fakeChecker{err: errors.New("milvus down")}),
	}, nil)

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "error", body.Checks["postgres"].Status)
	assert.Equal(t, "ok", body.Checks["redis"].Status)
	assert.Equal(t, "degraded", body.Checks["milvus"].Status)
}
