package textsplitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences_CoversWholeText(t *testing.T) {
	text := "Hello world. This is a test."
	sentences := SplitSentences(text)
	require.Len(t, sentences, 2)

	assert.Equal(t, 0, sentences[0].Start)
	for i := 0; i < len(sentences)-1; i++ {
		assert.Equal(t, sentences[i].End, sentences[i+1].Start, "spans must be contiguous")
	}
	assert.Equal(t, len(text), sentences[len(sentences)-1].End)

	var rebuilt string
	for _, s := range sentences {
		rebuilt += s.Text
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplitSentences_NoTerminalPunctuation(t *testing.T) {
	text := "just one clause with no period"
	sentences := SplitSentences(text)
	require.Len(t, sentences, 1)
	assert.Equal(t, text, sentences[0].Text)
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Nil(t, SplitSentences(""))
}

func TestGroupSentences(t *testing.T) {
	text := "One. Two. Three. Four. Five."
	sentences := SplitSentences(text)
	require.Len(t, sentences, 5)

	groups := GroupSentences(sentences, 2)
	require.Len(t, groups, 3)
	assert.Equal(t, 0, groups[0].Start)
	for i := 0; i < len(groups)-1; i++ {
		assert.Equal(t, groups[i].End, groups[i+1].Start)
	}
	assert.Equal(t, len(text), groups[len(groups)-1].End)
}

func TestGroupSentences_Empty(t *testing.T) {
	assert.Nil(t, GroupSentences(nil, 3))
}
