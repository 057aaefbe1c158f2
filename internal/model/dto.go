package model

// IngestRequest 是文档导入接口的请求体。
type IngestRequest struct {
	Filename string `json:"filename" binding:"required"`
	RawText  string `json:"raw_text" binding:"required"`
	Async    bool   `json:"async"`
}

// IngestResult 汇总一次导入的处理结果。
type IngestResult struct {
	DocumentID   string `json:"documentId"`
	Filename     string `json:"filename"`
	Genre        Genre  `json:"genre"`
	ChunkCount   int    `json:"chunkCount"`
	IndexedCount int    `json:"indexedCount"`
	Queued       bool   `json:"queued"`
}

// BatchItemResult 是批量导入中单个文档的结果；失败不影响兄弟文档。
type BatchItemResult struct {
	Filename string        `json:"filename"`
	Result   *IngestResult `json:"result,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// QueryRequest 是问答接口的请求体。
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question" binding:"required"`
	Intent    string `json:"intent"`
	TopK      int    `json:"top_k"`
}

// AnswerMeta 是随答案返回的诊断元数据。
type AnswerMeta struct {
	NoContext    bool             `json:"noContext"`
	Genre        Genre            `json:"genre"`
	TemplateKey  string           `json:"templateKey"`
	SourcesCount int              `json:"sourcesCount"`
	StageMillis  map[string]int64 `json:"stageMillis"`
}

// Answer 是问答流程的最终产物：答案文本、按检索顺序排列的来源与元数据。
type Answer struct {
	Text    string      `json:"text"`
	Sources []SourceRef `json:"sources"`
	Meta    AnswerMeta  `json:"meta"`
}
