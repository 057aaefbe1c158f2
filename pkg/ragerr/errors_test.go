package ragerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	cause := errors.New("connection refused")

	assert.True(t, IsConfiguration(Configuration("dims mismatch: got %d", 384)))
	assert.True(t, IsValidation(Validation("empty question")))
	assert.True(t, IsEmbeddingUnavailable(EmbeddingUnavailable(cause)))
	assert.True(t, IsGenerationUnavailable(GenerationUnavailable(cause)))
	assert.True(t, IsIndexCorruption(IndexCorruption("bad record", cause)))

	assert.False(t, IsValidation(Configuration("x")))
	assert.False(t, IsEmbeddingUnavailable(errors.New("plain")))
}

func TestWrappedErrorsKeepKindAndStage(t *testing.T) {
	base := EmbeddingUnavailable(errors.New("timeout"))
	wrapped := fmt.Errorf("ingest doc abc: %w", base)

	assert.True(t, IsEmbeddingUnavailable(wrapped))
	assert.Equal(t, StageEmbedding, StageOf(wrapped))
	assert.ErrorIs(t, wrapped, base)
}

func TestErrorMessageCarriesStageNotStack(t *testing.T) {
	err := GenerationUnavailable(errors.New("429 Too Many Requests"))
	assert.Contains(t, err.Error(), "[generation]")
	assert.Contains(t, err.Error(), "429")
}

func TestStageOfPlainError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}
