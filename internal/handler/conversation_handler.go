package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsage-go/internal/memory"
	"docsage-go/pkg/log"
)

// ConversationHandler 结构体定义了会话历史相关的处理器。
type ConversationHandler struct {
	sessions *memory.Manager
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(sessions *memory.Manager) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

// History 按时间先后导出指定会话的全部留存交互。
func (h *ConversationHandler) History(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "session_id 不能为空", "data": nil})
		return
	}

	conv := h.sessions.Session(c.Request.Context(), sessionID)
	history := conv.ExportAll()
	log.Infof("[ConversationHandler] 导出会话历史, session: %s, exchanges: %d", sessionID, len(history))

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"sessionId": sessionID,
		"exchanges": history,
	}})
}
