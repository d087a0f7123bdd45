// Package transcript 提供加密转写缓存
package transcript

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/domain/repository"
	apperrors "video-rag-api/pkg/errors"
	"video-rag-api/pkg/logger"
	"video-rag-api/pkg/metrics"
	"video-rag-api/pkg/tracer"
)

// Cipher 落盘加解密
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Fetcher 外部字幕抓取
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (text string, language string, err error)
}

// FetchFunc 函数形式的 Fetcher
type FetchFunc func(ctx context.Context, videoID string) (string, string, error)

// Fetch 实现 Fetcher
func (f FetchFunc) Fetch(ctx context.Context, videoID string) (string, string, error) {
	return f(ctx, videoID)
}

// Transcript 解密后的转写
type Transcript struct {
	VideoID  string
	Text     string
	Language string
	Cached   bool
}

// Cache 以 video_id 为键的加密转写缓存。
// 并发首次写入依赖存储层唯一约束，失败方重读已存在的记录。
type Cache struct {
	repo   repository.VideoRepository
	cipher Cipher
}

// NewCache 创建转写缓存
func NewCache(repo repository.VideoRepository, cipher Cipher) *Cache {
	return &Cache{repo: repo, cipher: cipher}
}

// GetOrCreate 命中时解密返回；未命中时抓取、加密、落库后返回。
// 已存记录解密失败视为数据损坏，不会重新抓取。
func (c *Cache) GetOrCreate(ctx context.Context, videoID string, fetcher Fetcher) (*Transcript, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "video_id is required")
	}

	ctx, span := tracer.Start(ctx, "transcript.Cache.GetOrCreate")
	defer span.End()
	span.SetAttributes(attribute.String("video_id", videoID))

	cached, err := c.Get(ctx, videoID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	if cached != nil {
		metrics.TranscriptCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.TranscriptCacheTotal.WithLabelValues("miss").Inc()

	start := time.Now()
	text, language, err := fetcher.Fetch(ctx, videoID)
	if err != nil {
		metrics.TranscriptFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptUnavailable, "transcript not available")
	}
	metrics.TranscriptFetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	language = entity.NormalizeLanguage(language)

	if err := c.Store(ctx, videoID, text, language); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			tracer.RecordError(span, err)
			return nil, err
		}
		metrics.TranscriptCacheTotal.WithLabelValues("race").Inc()
		logger.Info(ctx, "transcript stored concurrently, re-reading", "video_id", videoID)

		winner, err := c.Get(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, apperrors.New(apperrors.CodeDatabaseError, "transcript record missing after duplicate insert")
		}
		return winner, nil
	}

	return &Transcript{
		VideoID:  videoID,
		Text:     text,
		Language: language,
		Cached:   false,
	}, nil
}

// Get 读取并解密，不存在时返回 nil, nil
func (c *Cache) Get(ctx context.Context, videoID string) (*Transcript, error) {
	video, err := c.repo.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "storage unavailable")
	}
	if video == nil {
		return nil, nil
	}

	text, err := c.cipher.Decrypt(video.EncryptedTranscript)
	if err != nil {
		logger.Error(ctx, "stored transcript cannot be decrypted", err, "video_id", videoID)
		return nil, apperrors.Wrap(err, apperrors.CodeDataCorrupted, "stored transcript is corrupted").
			WithDetail("video_id=" + videoID)
	}

	return &Transcript{
		VideoID:  videoID,
		Text:     text,
		Language: entity.NormalizeLanguage(video.Language),
		Cached:   true,
	}, nil
}

// Exists 检查记录是否存在
func (c *Cache) Exists(ctx context.Context, videoID string) (bool, error) {
	ok, err := c.repo.ExistsByVideoID(ctx, videoID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "storage unavailable")
	}
	return ok, nil
}

// Store 加密并写入新记录。video_id 已存在时返回的错误满足 errors.Is(err, repository.ErrDuplicateKey)。
func (c *Cache) Store(ctx context.Context, videoID, text, language string) error {
	token, err := c.cipher.Encrypt(text)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encrypt transcript")
	}

	if err := c.repo.Create(ctx, entity.NewVideo(videoID, token, language)); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return apperrors.Wrap(err, apperrors.CodeConflict, "video already stored")
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "storage unavailable")
	}
	return nil
}

// Delete 删除记录，返回是否存在
func (c *Cache) Delete(ctx context.Context, videoID string) (bool, error) {
	ok, err := c.repo.Delete(ctx, videoID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "storage unavailable")
	}
	return ok, nil
}
