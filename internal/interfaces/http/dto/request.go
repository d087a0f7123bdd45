package dto

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// BindVideoID 从 URI 绑定视频 ID
func BindVideoID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("video_id"))
}

// BindUserID 从 URI 绑定聊天用户 ID
func BindUserID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("user_id"))
}
