package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsage-go/internal/repository"
	"docsage-go/pkg/log"
)

// DocumentHandler 结构体定义了文档查询相关的处理器。
type DocumentHandler struct {
	docRepo repository.DocumentRepository
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docRepo repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{docRepo: docRepo}
}

// List 分页列出已入库的文档。
func (h *DocumentHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size < 1 {
		size = 20
	}

	docs, total, err := h.docRepo.ListDocuments(c.Request.Context(), page, size)
	if err != nil {
		log.Errorf("[DocumentHandler] 列出文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "列出文档失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"documents": docs,
		"total":     total,
		"page":      page,
		"size":      size,
	}})
}

// Get 按 ID 返回单篇文档的元数据。
func (h *DocumentHandler) Get(c *gin.Context) {
	documentID := c.Param("id")
	doc, err := h.docRepo.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		log.Errorf("[DocumentHandler] 查询文档失败, id: %s, error: %v", documentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询文档失败", "data": nil})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}
