package chunker

import (
	"strconv"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/lexicon"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker returns a chunker grouping sentencesPerChunk sentences per
// chunk, repeating overlapSentences of them at the start of the next chunk.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

// Chunk splits the document into overlapping windows of NFC-normalized
// sentences.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := lexicon.Sentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		text := strings.Join(sentences[i:end], " ")
		chunk := domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       text,
			Index:      idx,
		}
		chunks = append(chunks, chunk)
		if end == len(sentences) {
			break
		}
		next := end - c.overlapSentences
		if next <= i {
			next = i + 1
		}
		i = next
		idx++
	}
	return chunks, nil
}
