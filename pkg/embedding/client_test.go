package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsage-go/internal/config"
	"docsage-go/pkg/ragerr"
)

func testConfig(baseURL string, maxBatch int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "text-embedding-test",
		Dimensions: 4,
		MaxBatch:   maxBatch,
		Retry:      config.RetryConfig{MaxAttempts: 3, BaseDelayMs: 1},
	}
}

// fakeServer 返回恒定维度的向量，向量首元素编码输入下标以便校验顺序。
func fakeServer(t *testing.T, calls *atomic.Int32, failFirst int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if n <= failFirst {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{}
		// 故意倒序返回，客户端必须按 index 归位
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i), 0.1, 0.2, 0.3}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedMany_OrderAndLength(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 0)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	texts := []string{"a", "b", "c"}
	vectors, err := c.EmbedMany(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		require.Len(t, v, 4)
		assert.Equal(t, float32(i), v[0], "向量必须与输入顺序一致")
	}
}

func TestEmbedMany_SplitsIntoBatches(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 0)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 2))
	vectors, err := c.EmbedMany(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, int32(3), calls.Load(), "5 条输入按 max_batch=2 应拆成 3 批")
}

func TestEmbedMany_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 2) // 前两次 503
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	vectors, err := c.EmbedMany(context.Background(), []string{"a"})

	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedMany_ExhaustedRetriesReturnUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 100)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	_, err := c.EmbedMany(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.True(t, ragerr.IsEmbeddingUnavailable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedMany_RateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2,0.3,0.4]}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	vectors, err := c.EmbedMany(context.Background(), []string{"a"})

	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load(), "429 应该退避后重试")
}

func TestEmbedMany_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	_, err := c.EmbedMany(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.True(t, ragerr.IsEmbeddingUnavailable(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx 不应重试")
}

func TestEmbedMany_LengthMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1]}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	_, err := c.EmbedMany(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedMany_EmptyInput(t *testing.T) {
	c := NewClient(testConfig("http://unused", 16))
	vectors, err := c.EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedOne(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 0)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, 16))
	v, err := c.EmbedOne(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, "text-embedding-test", c.Model())
}
