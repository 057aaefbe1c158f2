package model

import (
	"encoding/json"
	"fmt"

	"docsage-go/pkg/ragerr"
)

// EsChunk 定义了存储在 Elasticsearch 中的向量记录结构。
// 元数据只允许标量类型：复合值（如关键词列表）必须先经 EncodeKeywords 扁平化，
// 读取时再经 DecodeKeywords 精确还原，保证往返无损。
type EsChunk struct {
	VectorID          string    `json:"vector_id"` // documentID_ordinal，重复写入即覆盖
	DocumentID        string    `json:"document_id"`
	Ordinal           int       `json:"ordinal"`
	Filename          string    `json:"filename"`
	TextContent       string    `json:"text_content"`
	Vector            []float32 `json:"vector"`
	Genre             string    `json:"genre"`
	Keywords          string    `json:"keywords"` // JSON 编码的字符串列表
	PositionLabel     string    `json:"position_label"`
	TotalChunks       int       `json:"total_chunks"`
	CharStart         int       `json:"char_start"`
	CharEnd           int       `json:"char_end"`
	ContainsStructure bool      `json:"contains_structure"`
	ModelVersion      string    `json:"model_version"`
	Seq               int64     `json:"seq"` // 单调递增的写入序号，用于同分并列时的稳定排序
}

// NewEsChunk 从分块、向量与写入序号组装一条索引记录。
func NewEsChunk(c Chunk, filename string, vector []float32, modelVersion string, seq int64) EsChunk {
	return EsChunk{
		VectorID:          c.ID,
		DocumentID:        c.DocumentID,
		Ordinal:           c.Ordinal,
		Filename:          filename,
		TextContent:       c.Text,
		Vector:            vector,
		Genre:             string(c.Genre),
		Keywords:          EncodeKeywords(c.Keywords),
		PositionLabel:     c.PositionLabel,
		TotalChunks:       c.TotalChunks,
		CharStart:         c.CharStart,
		CharEnd:           c.CharEnd,
		ContainsStructure: c.ContainsStructure,
		ModelVersion:      modelVersion,
		Seq:               seq,
	}
}

// EncodeKeywords 将关键词列表扁平化为可入索引的标量字符串。
// 空列表编码为空串，避免在索引里留下 "null"。
func EncodeKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		// 字符串列表的 JSON 编码不会失败，保底返回空串
		return ""
	}
	return string(b)
}

// DecodeKeywords 还原 EncodeKeywords 的编码；无法解析视为该记录损坏。
func DecodeKeywords(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(encoded), &keywords); err != nil {
		return nil, ragerr.IndexCorruption(fmt.Sprintf("keywords 字段无法解析: %q", encoded), err)
	}
	return keywords, nil
}

// RetrievedChunk 是一次检索命中的还原结果：分块元数据、原文与相似度得分。
type RetrievedChunk struct {
	VectorID      string   `json:"vectorId"`
	DocumentID    string   `json:"documentId"`
	Ordinal       int      `json:"ordinal"`
	Filename      string   `json:"filename"`
	Text          string   `json:"text"`
	Genre         Genre    `json:"genre"`
	Keywords      []string `json:"keywords"`
	PositionLabel string   `json:"positionLabel"`
	Score         float64  `json:"score"`
	Seq           int64    `json:"-"`
}

// ToRetrieved 将索引记录还原为调用方可见的原生类型。
func (e EsChunk) ToRetrieved(score float64) (RetrievedChunk, error) {
	keywords, err := DecodeKeywords(e.Keywords)
	if err != nil {
		return RetrievedChunk{}, err
	}
	return RetrievedChunk{
		VectorID:      e.VectorID,
		DocumentID:    e.DocumentID,
		Ordinal:       e.Ordinal,
		Filename:      e.Filename,
		Text:          e.TextContent,
		Genre:         ParseGenre(e.Genre),
		Keywords:      keywords,
		PositionLabel: e.PositionLabel,
		Score:         score,
		Seq:           e.Seq,
	}, nil
}
