package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 视频入库
	if h.Video != nil {
		v1.POST("/process_video", h.Video.ProcessVideo)
		v1.DELETE("/videos/:video_id", h.Video.PurgeVideo)
	}

	// 检索
	if h.Retrieval != nil {
		v1.POST("/retrieve_chunks", h.Retrieval.RetrieveChunks)
		v1.POST("/retrieve_chunks/debug", h.Retrieval.DebugRetrieval)
	}

	// 聊天会话
	if h.Session != nil {
		sessions := v1.Group("/sessions")
		{
			sessions.PUT("/:user_id", h.Session.SetActiveVideo)
			sessions.GET("/:user_id", h.Session.GetActiveVideo)
			sessions.DELETE("/:user_id", h.Session.ClearActiveVideo)
		}
	}
}
