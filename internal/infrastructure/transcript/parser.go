// Package transcript 提供 YouTube 字幕抓取与链接解析
package transcript

import (
	"regexp"
	"strings"

	apperrors "video-rag-api/pkg/errors"
)

var (
	bareIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

	urlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`),
		regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
		regexp.MustCompile(`youtube\.com/embed/([0-9A-Za-z_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([0-9A-Za-z_-]{11})`),
	}
)

// ExtractVideoID 从裸 ID 或 YouTube 链接中解析 11 位 video_id
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if bareIDPattern.MatchString(input) {
		return input, nil
	}
	if strings.Contains(input, "youtube.com") || strings.Contains(input, "youtu.be") {
		for _, p := range urlPatterns {
			if m := p.FindStringSubmatch(input); m != nil {
				return m[1], nil
			}
		}
	}
	return "", apperrors.New(apperrors.CodeInvalidParam, "Invalid YouTube URL")
}
