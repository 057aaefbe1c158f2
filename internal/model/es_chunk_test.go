package model

import (
	"testing"

	"docsage-go/pkg/ragerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordCodec_RoundTripExact(t *testing.T) {
	keywords := []string{"contract", "liability", "termination", "notice"}

	encoded := EncodeKeywords(keywords)
	decoded, err := DecodeKeywords(encoded)

	require.NoError(t, err)
	assert.Equal(t, keywords, decoded)
}

func TestKeywordCodec_Empty(t *testing.T) {
	assert.Equal(t, "", EncodeKeywords(nil))
	assert.Equal(t, "", EncodeKeywords([]string{}))

	decoded, err := DecodeKeywords("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeKeywords_CorruptIsIndexCorruption(t *testing.T) {
	_, err := DecodeKeywords("{not json")
	require.Error(t, err)
	assert.True(t, ragerr.IsIndexCorruption(err))
}

func TestEsChunkRoundTrip(t *testing.T) {
	chunk := Chunk{
		ID:            "doc1_2",
		DocumentID:    "doc1",
		Ordinal:       2,
		Text:          "Article 5. The supplier shall deliver within 30 days.",
		CharStart:     1600,
		CharEnd:       2600,
		Genre:         GenreLegal,
		Keywords:      []string{"supplier", "deliver"},
		PositionLabel: "3/4",
		TotalChunks:   4,
	}

	rec := NewEsChunk(chunk, "contract.txt", []float32{0.1, 0.2}, "test-model-v1", 42)
	assert.Equal(t, "doc1_2", rec.VectorID)

	got, err := rec.ToRetrieved(0.93)
	require.NoError(t, err)
	assert.Equal(t, chunk.Keywords, got.Keywords)
	assert.Equal(t, GenreLegal, got.Genre)
	assert.Equal(t, "contract.txt", got.Filename)
	assert.Equal(t, "3/4", got.PositionLabel)
	assert.Equal(t, 0.93, got.Score)
	assert.Equal(t, int64(42), got.Seq)
}

func TestParseGenreAndIntentDefaults(t *testing.T) {
	assert.Equal(t, GenreGeneral, ParseGenre(""))
	assert.Equal(t, GenreGeneral, ParseGenre("poetry"))
	assert.Equal(t, GenreLegal, ParseGenre("legal"))

	assert.Equal(t, IntentGeneral, ParseIntent(""))
	assert.Equal(t, IntentSummary, ParseIntent("summary"))
	assert.Equal(t, IntentExtraction, ParseIntent("extraction"))
}
