package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"docsage-go/internal/model"
)

// 会话历史在 Redis 里保留 7 天，与空闲会话的自然生命周期对齐。
const conversationTTL = 7 * 24 * time.Hour

// ConversationStore 把会话历史持久化到 Redis，进程重启后可恢复。
// 实现 memory.Store 接口。
type ConversationStore struct {
	redisClient *redis.Client
}

// NewConversationStore 创建一个新的 ConversationStore 实例。
func NewConversationStore(redisClient *redis.Client) *ConversationStore {
	return &ConversationStore{redisClient: redisClient}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

// Load 从 Redis 读取会话历史，不存在返回空。
func (s *ConversationStore) Load(ctx context.Context, sessionID string) ([]model.Exchange, error) {
	jsonData, err := s.redisClient.Get(ctx, conversationKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var history []model.Exchange
	if err := json.Unmarshal([]byte(jsonData), &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return history, nil
}

// Save 把会话历史整体写入 Redis 并刷新 TTL。
func (s *ConversationStore) Save(ctx context.Context, sessionID string, history []model.Exchange) error {
	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := s.redisClient.Set(ctx, conversationKey(sessionID), jsonData, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
