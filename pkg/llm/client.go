// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"docsage-go/internal/config"
	"docsage-go/pkg/ragerr"
	"docsage-go/pkg/retry"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client defines the interface for an LLM client.
type Client interface {
	// Generate 一次性返回完整回答。history 是按时间先后排列的对话消息，可为空。
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
	// StreamGenerate 将流式分块依次写入 writer，并返回拼接后的完整回答。
	StreamGenerate(ctx context.Context, prompt string, history []Message, writer MessageWriter) (string, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
	policy retry.Policy
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
		policy: retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay(), cfg.Retry.Jitter),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAICompatibleClient) buildRequest(prompt string, history []Message, stream bool) chatRequest {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	// 从配置注入生成参数（零值表示不下发）
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		reqBody.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		reqBody.MaxTokens = &m
	}
	return reqBody
}

func (c *openAICompatibleClient) post(ctx context.Context, reqBody chatRequest, accept string) (*http.Response, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal chat request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create chat request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		err := fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
		// 429/408 是限流或超时，退避后重试；其余 4xx 不重试
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
			return nil, err
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	return resp, nil
}

// Generate 调用 /chat/completions 非流式接口，失败时按策略重试。
func (c *openAICompatibleClient) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	reqBody := c.buildRequest(prompt, history, false)

	var answer string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, reqBody, "")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var completion chatCompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
			return fmt.Errorf("failed to decode chat response: %w", err)
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("chat api returned no choices")
		}
		answer = completion.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", ragerr.GenerationUnavailable(err)
	}
	return answer, nil
}

// StreamGenerate 调用流式接口并把分块写入 writer。
// 流一旦开始写出就不再重试，避免客户端收到重复内容。
func (c *openAICompatibleClient) StreamGenerate(ctx context.Context, prompt string, history []Message, writer MessageWriter) (string, error) {
	reqBody := c.buildRequest(prompt, history, true)

	var full strings.Builder
	started := false
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, reqBody, "text/event-stream")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				if started {
					return retry.Permanent(fmt.Errorf("stream interrupted after output began: %w", err))
				}
				return fmt.Errorf("failed to read from stream: %w", err)
			}

			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(data) == "[DONE]" {
				return nil
			}

			var chunk chatStreamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			started = true
			full.WriteString(content)
			if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
				return retry.Permanent(fmt.Errorf("failed to write message to websocket: %w", err))
			}
		}
	})
	if err != nil {
		return "", ragerr.GenerationUnavailable(err)
	}
	return full.String(), nil
}
