package retrieval

import (
	"strings"

	apperrors "video-rag-api/pkg/errors"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// Split 按空白切词后，以 chunkSize 个词为窗口、相邻窗口重叠 overlap 个词切分文本。
// 窗口起点达到或越过词数时停止，最后一个窗口可能不足 chunkSize 个词（可能只含重叠部分）。
// 空文本或仅含空白时返回空切片。
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "chunk_size must be > 0, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "overlap must be >= 0 and < chunk_size (%d), got %d", chunkSize, overlap)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}, nil
	}

	step := chunkSize - overlap
	out := make([]string, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out, nil
}

// Splitter 持有切分参数
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter 创建切分器，参数非法时返回 invalid-input 错误
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if _, err := Split("", chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split 使用配置参数切分
func (s *Splitter) Split(text string) []string {
	out, _ := Split(text, s.chunkSize, s.overlap)
	return out
}

// ChunkSize 窗口大小
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap 重叠词数
func (s *Splitter) Overlap() int { return s.overlap }
