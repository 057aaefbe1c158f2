// Package ragerr 定义了检索问答流程的错误分类体系。
// 所有向用户暴露的失败都带有出错阶段信息，而不是原始堆栈。
package ragerr

import (
	"errors"
	"fmt"
)

// Kind 表示错误类别，决定了重试与上报策略。
type Kind int

const (
	// KindConfiguration 配置错误：致命，立即上报，永不重试。
	KindConfiguration Kind = iota
	// KindValidation 输入校验错误：在任何 I/O 之前被拒绝。
	KindValidation
	// KindEmbeddingUnavailable 向量化服务在重试耗尽后仍不可用。
	KindEmbeddingUnavailable
	// KindGenerationUnavailable 下游大模型在重试耗尽后仍不可用。
	KindGenerationUnavailable
	// KindIndexCorruption 单条索引记录损坏：批量导入时跳过并记录，单文档导入时中止。
	KindIndexCorruption
)

// Stage 标识失败发生在流水线的哪个阶段。
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageValidation    Stage = "validation"
	StageEmbedding     Stage = "embedding"
	StageRetrieval     Stage = "retrieval"
	StageGeneration    Stage = "generation"
	StageIndexing      Stage = "indexing"
)

// Error 是带类别与阶段的流程错误。
type Error struct {
	Kind  Kind
	Stage Stage
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Configuration 构造一个配置错误。
func Configuration(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Stage: StageConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Validation 构造一个输入校验错误。
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Stage: StageValidation, Msg: fmt.Sprintf(format, args...)}
}

// EmbeddingUnavailable 包装一个向量化服务不可用错误。
func EmbeddingUnavailable(cause error) *Error {
	return &Error{Kind: KindEmbeddingUnavailable, Stage: StageEmbedding, Msg: "embedding provider unavailable", Cause: cause}
}

// GenerationUnavailable 包装一个生成服务不可用错误。
func GenerationUnavailable(cause error) *Error {
	return &Error{Kind: KindGenerationUnavailable, Stage: StageGeneration, Msg: "generation provider unavailable", Cause: cause}
}

// IndexCorruption 包装一条损坏的索引记录错误。
func IndexCorruption(msg string, cause error) *Error {
	return &Error{Kind: KindIndexCorruption, Stage: StageIndexing, Msg: msg, Cause: cause}
}

// IsKind 判断 err 链上是否存在指定类别的流程错误。
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsConfiguration(err error) bool { return IsKind(err, KindConfiguration) }
func IsValidation(err error) bool    { return IsKind(err, KindValidation) }

// IsEmbeddingUnavailable reports whether the embedding provider gave up after retries.
func IsEmbeddingUnavailable(err error) bool { return IsKind(err, KindEmbeddingUnavailable) }

// IsGenerationUnavailable reports whether the LLM provider gave up after retries.
func IsGenerationUnavailable(err error) bool { return IsKind(err, KindGenerationUnavailable) }
func IsIndexCorruption(err error) bool      { return IsKind(err, KindIndexCorruption) }

// StageOf 返回错误所属阶段；非流程错误返回空串。
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
