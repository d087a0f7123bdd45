package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"video-rag-api/internal/config"
	"video-rag-api/internal/domain/entity"
	"video-rag-api/pkg/logger"
	"video-rag-api/pkg/metrics"
)

// ErrTranscriptNotAvailable 视频无字幕或字幕被禁用
var ErrTranscriptNotAvailable = errors.New("transcript not available for this video")

const defaultFetchTimeout = 20 * time.Second

// videoClient kkdai/youtube 客户端中用到的部分
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

// YouTubeFetcher 通过 YouTube 字幕轨获取转写文本
type YouTubeFetcher struct {
	client    videoClient
	languages []string
	timeout   time.Duration
}

// NewYouTubeFetcher 创建抓取器
func NewYouTubeFetcher(cfg *config.TranscriptConfig) *YouTubeFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &YouTubeFetcher{
		client:    &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
		languages: cfg.Languages,
		timeout:   timeout,
	}
}

// Fetch 返回清洗后的全文与字幕语言
func (f *YouTubeFetcher) Fetch(ctx context.Context, videoID string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	text, language, err := f.fetch(ctx, videoID)
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.TranscriptFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warn(ctx, "transcript fetch failed", "video_id", videoID, "error", err.Error())
	}
	return text, language, err
}

func (f *YouTubeFetcher) fetch(ctx context.Context, videoID string) (string, string, error) {
	video, err := f.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load video %s: %w", videoID, err)
	}

	track, ok := pickTrack(video.CaptionTracks, f.languages)
	if !ok {
		return "", "", ErrTranscriptNotAvailable
	}

	segments, err := f.client.GetTranscriptCtx(ctx, video, track.LanguageCode)
	if err != nil {
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return "", "", ErrTranscriptNotAvailable
		}
		return "", "", fmt.Errorf("failed to load transcript %s: %w", videoID, err)
	}
	if len(segments) == 0 {
		return "", "", ErrTranscriptNotAvailable
	}

	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	text := strings.Join(strings.Fields(strings.Join(lines, " ")), " ")

	return text, entity.NormalizeLanguage(track.LanguageCode), nil
}

// pickTrack 按偏好语言选择字幕轨，均不匹配时取第一条
func pickTrack(tracks []youtube.CaptionTrack, languages []string) (youtube.CaptionTrack, bool) {
	if len(tracks) == 0 {
		return youtube.CaptionTrack{}, false
	}
	for _, lang := range languages {
		for _, t := range tracks {
			if strings.EqualFold(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	return tracks[0], true
}
