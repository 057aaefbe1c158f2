package model

import "time"

// SourceRef 是答案引用的一个来源，按检索顺序排列。
// 只读的派生数据，每次查询重新计算，不持有分块本体。
type SourceRef struct {
	ChunkID       string   `json:"chunkId"`
	Filename      string   `json:"filename"`
	PositionLabel string   `json:"positionLabel"`
	Keywords      []string `json:"keywords"`
	Preview       string   `json:"preview"` // 分块文本的有界前缀
}

// Exchange 代表一次问答交互，是会话记忆的存储单位。
// 在回答成功后追加，此后不再变更。
type Exchange struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	Sources     []SourceRef      `json:"sources"`
	Timestamp   time.Time        `json:"timestamp"`
	Performance map[string]int64 `json:"performance"` // 各阶段耗时，毫秒
}
