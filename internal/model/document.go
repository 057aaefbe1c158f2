package model

import "time"

// Document 对应数据库中的 documents 表。
// 文档一经写入不再变更，重新导入同一份内容会先清理旧分块再整体覆盖。
type Document struct {
	ID         string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Filename   string    `gorm:"type:varchar(255);not null;column:filename" json:"filename"`
	Genre      string    `gorm:"type:varchar(20);not null;column:genre" json:"genre"`
	CharCount  int       `gorm:"not null;column:char_count" json:"charCount"`
	ChunkCount int       `gorm:"not null;column:chunk_count" json:"chunkCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}

// Chunk 是检索的基本单位：一段带重叠的有界文本及其元数据。
// 同一文档内 ordinal 从 0 连续递增；CharStart/CharEnd 为原文中的 rune 偏移。
type Chunk struct {
	ID                string   `json:"id"` // documentID_ordinal
	DocumentID        string   `json:"documentId"`
	Ordinal           int      `json:"ordinal"`
	Text              string   `json:"text"`
	CharStart         int      `json:"charStart"`
	CharEnd           int      `json:"charEnd"`
	Genre             Genre    `json:"genre"`
	Keywords          []string `json:"keywords"`
	PositionLabel     string   `json:"positionLabel"` // 如 "3/12"
	Position          string   `json:"position"`      // start / middle / end
	TotalChunks       int      `json:"totalChunks"`
	ContainsStructure bool     `json:"containsStructure"`
}

// ChunkRecord 对应数据库中的 document_chunks 表，是 Chunk 的持久化形态。
// Keywords 列存放 JSON 编码的字符串列表（见 EncodeKeywords）。
type ChunkRecord struct {
	ID            string `gorm:"type:varchar(50);primaryKey;column:id"`
	DocumentID    string `gorm:"type:varchar(36);not null;index;column:document_id"`
	Ordinal       int    `gorm:"not null;column:ordinal"`
	TextContent   string `gorm:"type:text;column:text_content"`
	CharStart     int    `gorm:"not null;column:char_start"`
	CharEnd       int    `gorm:"not null;column:char_end"`
	Genre         string `gorm:"type:varchar(20);column:genre"`
	Keywords      string `gorm:"type:varchar(512);column:keywords"`
	PositionLabel string `gorm:"type:varchar(20);column:position_label"`
}

func (ChunkRecord) TableName() string {
	return "document_chunks"
}

// NewChunkRecord 将内存中的 Chunk 转换为数据库记录。
func NewChunkRecord(c Chunk) *ChunkRecord {
	return &ChunkRecord{
		ID:            c.ID,
		DocumentID:    c.DocumentID,
		Ordinal:       c.Ordinal,
		TextContent:   c.Text,
		CharStart:     c.CharStart,
		CharEnd:       c.CharEnd,
		Genre:         string(c.Genre),
		Keywords:      EncodeKeywords(c.Keywords),
		PositionLabel: c.PositionLabel,
	}
}
