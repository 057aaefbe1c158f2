package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsage-go/internal/model"
	"docsage-go/internal/service"
	"docsage-go/pkg/log"
)

// QueryHandler 结构体定义了问答相关的处理器。
type QueryHandler struct {
	retrievalService service.RetrievalService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(retrievalService service.RetrievalService) *QueryHandler {
	return &QueryHandler{retrievalService: retrievalService}
}

// Query 是处理问答请求的 Gin 处理函数。
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求体", "data": nil})
		return
	}
	log.Infof("[QueryHandler] 收到问答请求, session: %s, intent: %s", req.SessionID, req.Intent)

	answer, err := h.retrievalService.Query(c.Request.Context(), req)
	if err != nil {
		log.Errorf("[QueryHandler] 问答失败, session: %s, error: %v", req.SessionID, err)
		c.JSON(httpStatus(err), gin.H{"code": httpStatus(err), "message": err.Error(), "data": nil})
		return
	}

	log.Infof("[QueryHandler] 问答成功, session: %s, sources: %d", req.SessionID, answer.Meta.SourcesCount)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": answer})
}
