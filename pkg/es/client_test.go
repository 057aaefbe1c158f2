package es

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docsage-go/internal/model"
)

func TestSortByScore_DescendingByScore(t *testing.T) {
	chunks := []model.RetrievedChunk{
		{VectorID: "a", Score: 0.5},
		{VectorID: "b", Score: 0.9},
		{VectorID: "c", Score: 0.7},
	}
	sortByScore(chunks)

	assert.Equal(t, "b", chunks[0].VectorID)
	assert.Equal(t, "c", chunks[1].VectorID)
	assert.Equal(t, "a", chunks[2].VectorID)
}

func TestSortByScore_TieBrokenByInsertionOrder(t *testing.T) {
	chunks := []model.RetrievedChunk{
		{VectorID: "late", Score: 0.8, Seq: 20},
		{VectorID: "early", Score: 0.8, Seq: 10},
		{VectorID: "top", Score: 0.9, Seq: 30},
	}
	sortByScore(chunks)

	assert.Equal(t, "top", chunks[0].VectorID)
	assert.Equal(t, "early", chunks[1].VectorID, "同分时先写入的排在前面")
	assert.Equal(t, "late", chunks[2].VectorID)
}

func TestSortByScore_Empty(t *testing.T) {
	var chunks []model.RetrievedChunk
	sortByScore(chunks)
	assert.Empty(t, chunks)
}
