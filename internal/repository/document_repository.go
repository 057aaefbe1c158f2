// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docsage-go/internal/model"
)

// DocumentRepository 定义了文档与分块元数据的持久化操作接口。
type DocumentRepository interface {
	// SaveDocument 写入或覆盖文档记录。
	SaveDocument(ctx context.Context, doc *model.Document) error
	// GetDocument 按 ID 查询文档，未找到返回 (nil, nil)。
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	// ListDocuments 按创建时间倒序分页列出文档。
	ListDocuments(ctx context.Context, page, size int) ([]model.Document, int64, error)
	// BatchCreateChunks 批量写入分块元数据。
	BatchCreateChunks(ctx context.Context, chunks []model.ChunkRecord) error
	// DeleteChunksByDocumentID 删除文档的全部分块元数据，重灌前调用。
	DeleteChunksByDocumentID(ctx context.Context, documentID string) error
	// CountDocuments 返回文档总数。
	CountDocuments(ctx context.Context) (int64, error)
	// CountChunks 返回分块总数。
	CountChunks(ctx context.Context) (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// SaveDocument 以主键冲突即更新的方式写入文档记录，支持幂等重灌。
func (r *documentRepository) SaveDocument(ctx context.Context, doc *model.Document) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) ListDocuments(ctx context.Context, page, size int) ([]model.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	var docs []model.Document
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&docs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepository) BatchCreateChunks(ctx context.Context, chunks []model.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(chunks, 100).Error
	if err != nil {
		return fmt.Errorf("failed to batch create chunks: %w", err)
	}
	return nil
}

func (r *documentRepository) DeleteChunksByDocumentID(ctx context.Context, documentID string) error {
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&model.ChunkRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete chunks of document %s: %w", documentID, err)
	}
	return nil
}

func (r *documentRepository) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (r *documentRepository) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ChunkRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
