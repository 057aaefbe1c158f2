// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsage-go/internal/model"
	"docsage-go/internal/service"
	"docsage-go/pkg/log"
	"docsage-go/pkg/ragerr"
)

// httpStatus 把流程错误映射为 HTTP 状态码。
func httpStatus(err error) int {
	switch {
	case ragerr.IsValidation(err):
		return http.StatusBadRequest
	case ragerr.IsEmbeddingUnavailable(err), ragerr.IsGenerationUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IngestHandler 结构体定义了文档入库相关的处理器。
type IngestHandler struct {
	ingestService service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// Ingest 处理单篇文档入库请求，async 为 true 时走异步队列。
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求体", "data": nil})
		return
	}
	log.Infof("[IngestHandler] 收到入库请求, filename: %s, async: %v, size: %d", req.Filename, req.Async, len(req.RawText))

	var (
		result *model.IngestResult
		err    error
	)
	if req.Async {
		result, err = h.ingestService.Enqueue(c.Request.Context(), req)
	} else {
		result, err = h.ingestService.Ingest(c.Request.Context(), req)
	}
	if err != nil {
		log.Errorf("[IngestHandler] 入库失败, filename: %s, error: %v", req.Filename, err)
		c.JSON(httpStatus(err), gin.H{"code": httpStatus(err), "message": err.Error(), "data": nil})
		return
	}

	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"code": status, "message": "success", "data": result})
}

// IngestBatch 处理批量入库请求，单篇失败不影响其余文档。
func (h *IngestHandler) IngestBatch(c *gin.Context) {
	var reqs []model.IngestRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求体", "data": nil})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "批量入库列表为空", "data": nil})
		return
	}
	log.Infof("[IngestHandler] 收到批量入库请求, 文档数: %d", len(reqs))

	results := h.ingestService.IngestBatch(c.Request.Context(), reqs)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
