package config

import (
	"testing"

	"docsage-go/pkg/ragerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Chunking:  ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 200, MaxKeywords: 5},
		Retrieval: RetrievalConfig{TopK: 3, MaxQuestionLen: 1000, HistoryContext: 3},
		Memory:    MemoryConfig{MaxHistory: 50},
		Embedding: EmbeddingConfig{Dimensions: 384, MaxBatch: 16},
		Ingest:    IngestConfig{MaxDocumentBytes: 1 << 20, BatchConcurrency: 4},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"overlap >= size", func(c *Config) { c.Chunking.ChunkOverlap = 1000 }},
		{"overlap negative", func(c *Config) { c.Chunking.ChunkOverlap = -1 }},
		{"chunk size zero", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"top_k zero", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"max_history zero", func(c *Config) { c.Memory.MaxHistory = 0 }},
		{"dimensions zero", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"batch concurrency zero", func(c *Config) { c.Ingest.BatchConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, ragerr.IsConfiguration(err))
		})
	}
}
