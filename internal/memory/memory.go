// Package memory 实现了按会话隔离的有界对话记忆。
package memory

import (
	"context"
	"strings"
	"sync"

	"docsage-go/internal/model"
	"docsage-go/pkg/log"
)

// Conversation 是单个会话的固定容量环形缓冲：
// 追加超过容量时先进先出地淘汰最老的交互。
type Conversation struct {
	mu       sync.Mutex
	capacity int
	buf      []model.Exchange
	head     int // 最老一条的位置
	size     int
}

// NewConversation 创建一个容量为 capacity 的会话记忆。
func NewConversation(capacity int) *Conversation {
	if capacity <= 0 {
		capacity = 50
	}
	return &Conversation{
		capacity: capacity,
		buf:      make([]model.Exchange, capacity),
	}
}

// Append 追加一次交互；缓冲已满时淘汰最老的一条。
func (c *Conversation) Append(ex model.Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tail := (c.head + c.size) % c.capacity
	c.buf[tail] = ex
	if c.size < c.capacity {
		c.size++
	} else {
		// 覆盖了最老的一条
		c.head = (c.head + 1) % c.capacity
	}
}

// RelevantContext 返回供提示词使用的近期交互，最新在前，最多 maxItems 条。
// 刻意使用纯近期性选择而非语义重排，作为简单性权衡。
func (c *Conversation) RelevantContext(question string, maxItems int) []model.Exchange {
	_ = question // 近期性选择不使用问题内容
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxItems <= 0 || c.size == 0 {
		return nil
	}
	if maxItems > c.size {
		maxItems = c.size
	}
	out := make([]model.Exchange, 0, maxItems)
	for i := 0; i < maxItems; i++ {
		idx := (c.head + c.size - 1 - i) % c.capacity
		out = append(out, c.buf[idx])
	}
	return out
}

// ExportAll 按时间先后导出全部留存的交互。
func (c *Conversation) ExportAll() []model.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Exchange, 0, c.size)
	for i := 0; i < c.size; i++ {
		out = append(out, c.buf[(c.head+i)%c.capacity])
	}
	return out
}

// Len 返回当前留存的交互数。
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// restore 用持久化的历史重建缓冲，只保留最近 capacity 条。
func (c *Conversation) restore(history []model.Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(history) > c.capacity {
		history = history[len(history)-c.capacity:]
	}
	c.head, c.size = 0, len(history)
	copy(c.buf, history)
}

// Store 把会话历史持久化到外部存储，进程重启后可恢复。
type Store interface {
	Load(ctx context.Context, sessionID string) ([]model.Exchange, error)
	Save(ctx context.Context, sessionID string, history []model.Exchange) error
}

// Manager 按会话 ID 管理各自独立的环形缓冲，并透写到可选的 Store。
type Manager struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Conversation
	store    Store // 可为 nil：纯内存模式
}

// NewManager 创建会话记忆管理器；store 传 nil 时不做持久化。
func NewManager(capacity int, store Store) *Manager {
	if capacity <= 0 {
		capacity = 50
	}
	return &Manager{
		capacity: capacity,
		sessions: make(map[string]*Conversation),
		store:    store,
	}
}

// Session 返回指定会话的记忆，首次访问时尝试从 Store 恢复历史。
func (m *Manager) Session(ctx context.Context, sessionID string) *Conversation {
	m.mu.Lock()
	conv, ok := m.sessions[sessionID]
	if !ok {
		conv = NewConversation(m.capacity)
		m.sessions[sessionID] = conv
	}
	m.mu.Unlock()
	if !ok && m.store != nil {
		history, err := m.store.Load(ctx, sessionID)
		if err != nil {
			log.Warnf("[Memory] 恢复会话 %s 历史失败: %v", sessionID, err)
		} else if len(history) > 0 {
			conv.restore(history)
		}
	}
	return conv
}

// AppendExchange 向会话追加一次交互并透写到 Store。
// 同一会话的并发追加由 Conversation 自身的锁串行化。
func (m *Manager) AppendExchange(ctx context.Context, sessionID string, ex model.Exchange) {
	conv := m.Session(ctx, sessionID)
	conv.Append(ex)
	if m.store != nil {
		if err := m.store.Save(ctx, sessionID, conv.ExportAll()); err != nil {
			// 持久化失败只记录，不影响已在内存中生效的追加
			log.Warnf("[Memory] 持久化会话 %s 历史失败: %v", sessionID, err)
		}
	}
}

// FormatHistory 把交互序列渲染成提示词中的历史文本块（按时间先后）。
func FormatHistory(exchanges []model.Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	// exchanges 是最新在前，渲染时倒回时间顺序
	for i := len(exchanges) - 1; i >= 0; i-- {
		b.WriteString("Q: ")
		b.WriteString(exchanges[i].Question)
		b.WriteString("\nA: ")
		b.WriteString(exchanges[i].Answer)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
