package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsage-go/internal/model"
)

func exchange(i int) model.Exchange {
	return model.Exchange{
		Question: fmt.Sprintf("question-%d", i),
		Answer:   fmt.Sprintf("answer-%d", i),
	}
}

func TestConversation_AppendAndLen(t *testing.T) {
	c := NewConversation(5)
	assert.Equal(t, 0, c.Len())
	c.Append(exchange(1))
	c.Append(exchange(2))
	assert.Equal(t, 2, c.Len())
}

func TestConversation_EvictsOldestFIFO(t *testing.T) {
	c := NewConversation(3)
	for i := 1; i <= 5; i++ {
		c.Append(exchange(i))
	}
	require.Equal(t, 3, c.Len())

	all := c.ExportAll()
	require.Len(t, all, 3)
	// 1 和 2 被淘汰，留下 3,4,5 按时间先后
	assert.Equal(t, "question-3", all[0].Question)
	assert.Equal(t, "question-4", all[1].Question)
	assert.Equal(t, "question-5", all[2].Question)
}

func TestConversation_RelevantContextMostRecentFirst(t *testing.T) {
	c := NewConversation(10)
	for i := 1; i <= 4; i++ {
		c.Append(exchange(i))
	}

	got := c.RelevantContext("anything", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "question-4", got[0].Question)
	assert.Equal(t, "question-3", got[1].Question)
}

func TestConversation_RelevantContextBounds(t *testing.T) {
	c := NewConversation(10)
	assert.Nil(t, c.RelevantContext("q", 3), "空会话返回 nil")

	c.Append(exchange(1))
	assert.Nil(t, c.RelevantContext("q", 0))
	assert.Len(t, c.RelevantContext("q", 99), 1, "maxItems 超过存量时截断")
}

func TestConversation_ExportAllAfterWrap(t *testing.T) {
	c := NewConversation(2)
	c.Append(exchange(1))
	c.Append(exchange(2))
	c.Append(exchange(3)) // 淘汰 1

	all := c.ExportAll()
	require.Len(t, all, 2)
	assert.Equal(t, "question-2", all[0].Question)
	assert.Equal(t, "question-3", all[1].Question)
}

type fakeStore struct {
	saved   map[string][]model.Exchange
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]model.Exchange)}
}

func (f *fakeStore) Load(_ context.Context, sessionID string) ([]model.Exchange, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.saved[sessionID], nil
}

func (f *fakeStore) Save(_ context.Context, sessionID string, history []model.Exchange) error {
	cp := make([]model.Exchange, len(history))
	copy(cp, history)
	f.saved[sessionID] = cp
	return nil
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(5, nil)
	ctx := context.Background()

	m.AppendExchange(ctx, "alice", exchange(1))
	m.AppendExchange(ctx, "bob", exchange(2))

	assert.Equal(t, 1, m.Session(ctx, "alice").Len())
	assert.Equal(t, 1, m.Session(ctx, "bob").Len())
	assert.Equal(t, "question-1", m.Session(ctx, "alice").ExportAll()[0].Question)
	assert.Equal(t, "question-2", m.Session(ctx, "bob").ExportAll()[0].Question)
}

func TestManager_PersistsAndRestores(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	m1 := NewManager(5, store)
	m1.AppendExchange(ctx, "s1", exchange(1))
	m1.AppendExchange(ctx, "s1", exchange(2))
	require.Len(t, store.saved["s1"], 2)

	// 新 Manager 模拟进程重启，首次访问时从 Store 恢复
	m2 := NewManager(5, store)
	conv := m2.Session(ctx, "s1")
	require.Equal(t, 2, conv.Len())
	assert.Equal(t, "question-2", conv.RelevantContext("q", 1)[0].Question)
}

func TestManager_RestoreTruncatesToCapacity(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		store.saved["s1"] = append(store.saved["s1"], exchange(i))
	}

	m := NewManager(3, store)
	conv := m.Session(ctx, "s1")
	require.Equal(t, 3, conv.Len())
	all := conv.ExportAll()
	assert.Equal(t, "question-4", all[0].Question)
	assert.Equal(t, "question-6", all[2].Question)
}

func TestManager_LoadFailureFallsBackToEmpty(t *testing.T) {
	store := newFakeStore()
	store.loadErr = fmt.Errorf("redis down")

	m := NewManager(5, store)
	conv := m.Session(context.Background(), "s1")
	assert.Equal(t, 0, conv.Len())
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "", FormatHistory(nil))

	// 输入是最新在前，渲染应恢复时间顺序
	got := FormatHistory([]model.Exchange{exchange(2), exchange(1)})
	assert.Equal(t, "Q: question-1\nA: answer-1\n\nQ: question-2\nA: answer-2", got)
}
