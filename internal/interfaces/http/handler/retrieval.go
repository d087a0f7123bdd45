package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-api/internal/interfaces/http/dto"
)

// RetrievalHandler 检索处理器
type RetrievalHandler struct {
	retriever ChunkRetriever
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(retriever ChunkRetriever) *RetrievalHandler {
	return &RetrievalHandler{
		retriever: retriever,
	}
}

// RetrieveChunks 检索与问题最相关的分段
// @Summary 检索分段
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.RetrieveChunksRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.RetrieveChunksResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/retrieve_chunks [post]
func (h *RetrievalHandler) RetrieveChunks(c *gin.Context) {
	var req dto.RetrieveChunksRequest
	if !bindJSON(c, &req) {
		return
	}

	chunks, err := h.retriever.Retrieve(c.Request.Context(), req.ToInput())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	if chunks == nil {
		chunks = []string{}
	}

	dto.Success(c, &dto.RetrieveChunksResponse{
		VideoID: req.VideoID,
		Chunks:  chunks,
	})
}

// DebugRetrieval 返回全部候选及其相似度
// @Summary 调试检索
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.RetrieveChunksRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.DebugRetrievalResponse]
// @Router /api/v1/retrieve_chunks/debug [post]
func (h *RetrievalHandler) DebugRetrieval(c *gin.Context) {
	var req dto.RetrieveChunksRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.retriever.Debug(c.Request.Context(), req.ToInput())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToDebugRetrievalResponse(out))
}
