package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-api/internal/domain/repository"
	"video-rag-api/internal/interfaces/http/dto"
	apperrors "video-rag-api/pkg/errors"
)

// SessionHandler 聊天会话处理器
type SessionHandler struct {
	sessions repository.SessionRepository
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions repository.SessionRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SetActiveVideo 设置用户当前视频
// @Summary 设置当前视频
// @Tags Sessions
// @Param user_id path string true "用户 ID"
// @Param body body dto.SetSessionRequest true "会话"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Router /api/v1/sessions/{user_id} [put]
func (h *SessionHandler) SetActiveVideo(c *gin.Context) {
	userID := dto.BindUserID(c)
	if userID == "" {
		dto.BadRequest(c, "user_id is required")
		return
	}

	var req dto.SetSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessions.SetActiveVideo(c.Request.Context(), userID, req.VideoID)
	if err != nil {
		dto.HandleError(c, apperrors.Wrap(err, apperrors.CodeCacheError, "session storage unavailable"))
		return
	}
	dto.Success(c, dto.ToSessionResponse(session))
}

// GetActiveVideo 获取用户当前视频
// @Summary 获取当前视频
// @Tags Sessions
// @Param user_id path string true "用户 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/sessions/{user_id} [get]
func (h *SessionHandler) GetActiveVideo(c *gin.Context) {
	session, err := h.sessions.GetActiveVideo(c.Request.Context(), dto.BindUserID(c))
	if err != nil {
		dto.HandleError(c, apperrors.Wrap(err, apperrors.CodeCacheError, "session storage unavailable"))
		return
	}
	if session == nil {
		dto.NotFound(c, "no active video")
		return
	}
	dto.Success(c, dto.ToSessionResponse(session))
}

// ClearActiveVideo 清除用户当前视频
// @Summary 清除当前视频
// @Tags Sessions
// @Param user_id path string true "用户 ID"
// @Success 204
// @Router /api/v1/sessions/{user_id} [delete]
func (h *SessionHandler) ClearActiveVideo(c *gin.Context) {
	if err := h.sessions.ClearActiveVideo(c.Request.Context(), dto.BindUserID(c)); err != nil {
		dto.HandleError(c, apperrors.Wrap(err, apperrors.CodeCacheError, "session storage unavailable"))
		return
	}
	dto.NoContent(c)
}
