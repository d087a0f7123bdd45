package retrieval

import "context"

// TranscriptFetcher 外部字幕抓取（port）
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (text string, language string, err error)
}

// TranscriptStore 转写缓存（port），由 transcript.Cache 实现
type TranscriptStore interface {
	Exists(ctx context.Context, videoID string) (bool, error)
	Store(ctx context.Context, videoID, text, language string) error
	Delete(ctx context.Context, videoID string) (bool, error)
}

// RetrieveInput 检索输入
type RetrieveInput struct {
	VideoID  string
	Question string
	// TopK 为 0 时使用默认值
	TopK int
}

// ScoredSegment 带相似度的召回分段
type ScoredSegment struct {
	SegmentIndex int
	Text         string
	Distance     float64
	Score        float64
	Passed       bool
}

// RetrieveOutput 检索结果（含未通过阈值的候选，供调试）
type RetrieveOutput struct {
	VideoID    string
	TopK       int
	Threshold  float64
	Candidates []ScoredSegment
}

// Passed 返回通过阈值的分段，保持相似度降序
func (o *RetrieveOutput) Passed() []ScoredSegment {
	out := make([]ScoredSegment, 0, len(o.Candidates))
	for _, c := range o.Candidates {
		if c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Texts 返回通过阈值的分段文本
func (o *RetrieveOutput) Texts() []string {
	passed := o.Passed()
	out := make([]string, 0, len(passed))
	for _, c := range passed {
		out = append(out, c.Text)
	}
	return out
}

// ProcessResult 入库结果
type ProcessResult struct {
	VideoID      string
	Cached       bool
	SegmentCount int
	Message      string
}

const (
	MessageAlreadyProcessed = "Video already processed."
	MessageProcessed        = "Video processed successfully."
)
