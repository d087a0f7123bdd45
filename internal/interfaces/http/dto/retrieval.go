package dto

import (
	"video-rag-api/internal/application/retrieval"
)

// RetrieveChunksRequest 检索请求
type RetrieveChunksRequest struct {
	VideoID  string `json:"video_id" binding:"required,max=64"`
	Question string `json:"question" binding:"required,max=5000"`
	TopK     int    `json:"top_k,omitempty"`
}

// ToInput 转换为检索输入
func (r *RetrieveChunksRequest) ToInput() retrieval.RetrieveInput {
	return retrieval.RetrieveInput{
		VideoID:  r.VideoID,
		Question: r.Question,
		TopK:     r.TopK,
	}
}

// RetrieveChunksResponse 检索响应
type RetrieveChunksResponse struct {
	VideoID string   `json:"video_id"`
	Chunks  []string `json:"chunks"`
}

// CandidateResponse 调试候选分段
type CandidateResponse struct {
	SegmentIndex int     `json:"segment_index"`
	Content      string  `json:"content"`
	Distance     float64 `json:"distance"`
	Score        float64 `json:"score"`
	Passed       bool    `json:"passed"`
}

// DebugRetrievalResponse 调试检索响应
type DebugRetrievalResponse struct {
	VideoID    string               `json:"video_id"`
	TopK       int                  `json:"top_k"`
	Threshold  float64              `json:"threshold"`
	Candidates []*CandidateResponse `json:"candidates"`
}

// ToDebugRetrievalResponse 转换调试结果
func ToDebugRetrievalResponse(out *retrieval.RetrieveOutput) *DebugRetrievalResponse {
	resp := &DebugRetrievalResponse{
		VideoID:    out.VideoID,
		TopK:       out.TopK,
		Threshold:  out.Threshold,
		Candidates: make([]*CandidateResponse, 0, len(out.Candidates)),
	}
	for _, c := range out.Candidates {
		resp.Candidates = append(resp.Candidates, &CandidateResponse{
			SegmentIndex: c.SegmentIndex,
			Content:      c.Text,
			Distance:     c.Distance,
			Score:        c.Score,
			Passed:       c.Passed,
		})
	}
	return resp
}
