// Package config 负责加载、校验和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"docsage-go/pkg/ragerr"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 configs/config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 向量索引的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// RetryConfig 配置网络调用的有界重试。
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMs int     `mapstructure:"base_delay_ms"`
	Jitter      float64 `mapstructure:"jitter"`
}

// BaseDelay 返回基础退避时长。
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string      `mapstructure:"api_key"`
	BaseURL    string      `mapstructure:"base_url"`
	Model      string      `mapstructure:"model"`
	Dimensions int         `mapstructure:"dimensions"`
	MaxBatch   int         `mapstructure:"max_batch"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Retry      RetryConfig         `mapstructure:"retry"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChunkingConfig 配置自适应分块。
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	MaxKeywords  int `mapstructure:"max_keywords"`
}

// RetrievalConfig 配置检索阶段。
type RetrievalConfig struct {
	TopK           int `mapstructure:"top_k"`
	MaxQuestionLen int `mapstructure:"max_question_len"`
	HistoryContext int `mapstructure:"history_context"`
}

// MemoryConfig 配置会话记忆。
type MemoryConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

// IngestConfig 配置文档导入。
type IngestConfig struct {
	MaxDocumentBytes int `mapstructure:"max_document_bytes"`
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// Load 从指定路径读取 YAML 配置，填充默认值并做启动期校验。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.chunk_overlap", 200)
	v.SetDefault("chunking.max_keywords", 5)
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.max_question_len", 1000)
	v.SetDefault("retrieval.history_context", 3)
	v.SetDefault("memory.max_history", 50)
	v.SetDefault("ingest.max_document_bytes", 10*1024*1024)
	v.SetDefault("ingest.batch_concurrency", 4)
	v.SetDefault("embedding.max_batch", 16)
	v.SetDefault("embedding.retry.max_attempts", 3)
	v.SetDefault("embedding.retry.base_delay_ms", 500)
	v.SetDefault("embedding.retry.jitter", 0.2)
	v.SetDefault("llm.retry.max_attempts", 2)
	v.SetDefault("llm.retry.base_delay_ms", 1000)
	v.SetDefault("llm.retry.jitter", 0.2)
	v.SetDefault("kafka.group_id", "docsage-ingest")
}

// Validate 在启动期拒绝非法的参数组合，返回配置错误而不是等到第一次使用时才失败。
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return ragerr.Configuration("chunk_size 必须为正数, 当前为 %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return ragerr.Configuration("chunk_overlap 不能为负数, 当前为 %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return ragerr.Configuration("chunk_overlap (%d) 必须小于 chunk_size (%d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return ragerr.Configuration("retrieval.top_k 必须为正数, 当前为 %d", c.Retrieval.TopK)
	}
	if c.Memory.MaxHistory <= 0 {
		return ragerr.Configuration("memory.max_history 必须为正数, 当前为 %d", c.Memory.MaxHistory)
	}
	if c.Embedding.Dimensions <= 0 {
		return ragerr.Configuration("embedding.dimensions 必须为正数, 当前为 %d", c.Embedding.Dimensions)
	}
	if c.Ingest.BatchConcurrency <= 0 {
		return ragerr.Configuration("ingest.batch_concurrency 必须为正数, 当前为 %d", c.Ingest.BatchConcurrency)
	}
	return nil
}
