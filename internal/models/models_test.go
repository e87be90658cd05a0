package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/apperr"
)

func TestOptionsKeepPresentationOrder(t *testing.T) {
	var q Question
	raw := `{"question":"Pick","options":{"C":"third","A":"first","B":"second"},"correct_answer":"A","explanation":"x"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &q))

	require.Len(t, q.Options, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{q.Options[0].Label, q.Options[1].Label, q.Options[2].Label})

	text, ok := q.Options.Get("B")
	assert.True(t, ok)
	assert.Equal(t, "second", text)
	_, ok = q.Options.Get("D")
	assert.False(t, ok)

	out, err := json.Marshal(q.Options)
	require.NoError(t, err)
	assert.Equal(t, `{"C":"third","A":"first","B":"second"}`, string(out))
}

func TestOptionsRejectsNonObject(t *testing.T) {
	var o Options
	assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &o))
	assert.NoError(t, json.Unmarshal([]byte(`null`), &o))
	assert.Nil(t, o)
}

func TestOptionsNonStringValues(t *testing.T) {
	var o Options
	require.NoError(t, json.Unmarshal([]byte(`{"A": 42, "B": true}`), &o))
	assert.Equal(t, Options{{Label: "A", Text: "42"}, {Label: "B", Text: "true"}}, o)
}

func TestRetrievalResultSources(t *testing.T) {
	r := RetrievalResult{
		{Chunk: Chunk{Source: "a.pdf"}},
		{Chunk: Chunk{Source: "b.txt"}},
		{Chunk: Chunk{Source: "a.pdf"}},
		{Chunk: Chunk{Source: "c.txt"}},
	}
	assert.Equal(t, []string{"a.pdf", "b.txt", "c.txt"}, r.Sources(0))
	assert.Equal(t, []string{"a.pdf", "b.txt"}, r.Sources(2))
	assert.Len(t, r.Chunks(), 4)
}

func TestChunkSourceTag(t *testing.T) {
	assert.Equal(t, "[Source: notes.txt, Page: N/A]", Chunk{Source: "notes.txt"}.SourceTag())
	assert.Equal(t, "[Source: book.pdf, Page: 3]", Chunk{Source: "book.pdf", Page: IntPtr(3)}.SourceTag())
}

func TestParseEnums(t *testing.T) {
	st, err := ParseSummaryStyle("")
	require.NoError(t, err)
	assert.Equal(t, SummaryBullets, st)
	_, err = ParseSummaryStyle("haiku")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	d, err := ParseDifficulty("hard")
	require.NoError(t, err)
	assert.Equal(t, DifficultyHard, d)
	_, err = ParseDifficulty("impossible")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
