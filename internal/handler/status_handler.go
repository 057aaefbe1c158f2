package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsage-go/internal/service"
	"docsage-go/pkg/log"
)

// StatusHandler 结构体定义了系统状态相关的处理器。
type StatusHandler struct {
	statusService service.StatusService
}

// NewStatusHandler 创建一个新的 StatusHandler 实例。
func NewStatusHandler(statusService service.StatusService) *StatusHandler {
	return &StatusHandler{statusService: statusService}
}

// Status 返回文档、分块、向量存量与各阶段性能汇总。
func (h *StatusHandler) Status(c *gin.Context) {
	status, err := h.statusService.Status(c.Request.Context())
	if err != nil {
		log.Errorf("[StatusHandler] 获取系统状态失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取系统状态失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": status})
}
