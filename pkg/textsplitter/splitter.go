// Package textsplitter implements the sentence-boundary splitting used by the
// Chunker's degraded fallback strategy (spec'd as "sentence" chunking): split
// into sentences, then group every T of them into a chunk.
package textsplitter

import (
	"strings"
	"unicode"
)

// Config controls the sentence-grouping fallback splitter.
type Config struct {
	// SentencesPerChunk is the target number of sentences per chunk (T).
	SentencesPerChunk int
}

// DefaultConfig returns the default fallback configuration: 3-5 sentences
// per chunk, using the midpoint.
func DefaultConfig() Config {
	return Config{SentencesPerChunk: 4}
}

// Sentence is a sentence-boundary span located within the source text by byte
// offset, so callers can map it back onto transcript character positions.
type Sentence struct {
	Text  string
	Start int // byte offset into the original text, inclusive
	End   int // byte offset into the original text, exclusive
}

// SplitSentences splits text into sentence spans using terminal punctuation
// (. ! ?) followed by whitespace or end-of-text as the boundary. It never
// drops or duplicates a byte of input: spans are contiguous and cover [0,len(text)).
func SplitSentences(text string) []Sentence {
	if len(text) == 0 {
		return nil
	}

	var sentences []Sentence
	start := 0
	runes := []rune(text)
	byteOffsets := make([]int, len(runes)+1)
	offset := 0
	for i, r := range runes {
		byteOffsets[i] = offset
		offset += len(string(r))
	}
	byteOffsets[len(runes)] = offset

	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			// Boundary when followed by whitespace or end of text.
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				end := byteOffsets[i+1]
				span := text[start:end]
				if strings.TrimSpace(span) != "" {
					sentences = append(sentences, Sentence{Text: span, Start: start, End: end})
				}
				start = end
			}
		}
	}

	if start < len(text) {
		span := text[start:]
		if strings.TrimSpace(span) != "" {
			sentences = append(sentences, Sentence{Text: span, Start: start, End: len(text)})
		} else if len(sentences) > 0 {
			// Trailing whitespace-only remainder: fold into the previous span
			// so spans still partition the text exactly.
			sentences[len(sentences)-1].End = len(text)
			sentences[len(sentences)-1].Text = text[sentences[len(sentences)-1].Start:len(text)]
		}
	}

	if len(sentences) == 0 {
		sentences = append(sentences, Sentence{Text: text, Start: 0, End: len(text)})
	}

	return sentences
}

// GroupSentences groups consecutive sentences into chunks of up to
// sentencesPerChunk each. The final group holds whatever sentences remain and
// may be shorter; it is not merged into the previous one. Groups are
// contiguous, non-overlapping spans covering the input.
func GroupSentences(sentences []Sentence, sentencesPerChunk int) []Sentence {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = DefaultConfig().SentencesPerChunk
	}
	if len(sentences) == 0 {
		return nil
	}

	var groups []Sentence
	for i := 0; i < len(sentences); i += sentencesPerChunk {
		end := i + sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		groups = append(groups, Sentence{
			Text:  joinText(sentences[i:end]),
			Start: sentences[i].Start,
			End:   sentences[end-1].End,
		})
	}

	return groups
}

func joinText(spans []Sentence) string {
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
