// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"docsage-go/internal/config"
	"docsage-go/pkg/log"
	"docsage-go/pkg/ragerr"
	"docsage-go/pkg/retry"
)

// Client defines the interface for an embedding client.
type Client interface {
	// EmbedOne 返回单段文本的向量。
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedMany 返回每段文本的向量，与输入一一对应且顺序一致。
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Model 返回当前使用的模型标识，写入索引记录的 model_version 字段。
	Model() string
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
	policy retry.Policy
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	policy := retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay(), cfg.Retry.Jitter)
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
		policy: policy,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *openAICompatibleClient) Model() string {
	return c.cfg.Model
}

// EmbedOne calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany 对输入分批调用 API，批大小由配置的 max_batch 控制。
// 任何一批在重试耗尽后仍失败，整个调用失败。
func (c *openAICompatibleClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	maxBatch := c.cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 16
	}
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, texts: %d, max_batch: %d",
		c.cfg.Model, len(texts), maxBatch)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *openAICompatibleClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		vectors, callErr = c.callAPI(ctx, batch)
		return callErr
	})
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, ragerr.EmbeddingUnavailable(err)
	}
	return vectors, nil
}

func (c *openAICompatibleClient) callAPI(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      batch,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal embedding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create embedding request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
		// 429/408 是限流或超时，退避后重试；其余 4xx 是请求本身的问题，重试不会改变结果
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
			return nil, err
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(batch) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs",
			len(embeddingResp.Data), len(batch))
	}

	// 按 index 归位，某些服务端不保证返回顺序
	vectors := make([][]float32, len(batch))
	for _, d := range embeddingResp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embedding api returned out-of-range index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("received empty embedding from api")
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding api response missing index %d", i)
		}
	}
	return vectors, nil
}
