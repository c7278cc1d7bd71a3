// Package lexicon holds the text analysis shared by chunking, embedding,
// lexical search and corpus summaries. All functions normalize input to NFC,
// so composed and decomposed accents compare equal.
package lexicon

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

var stopwords = toSet(
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
	"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
	"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
	"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
	"very", "can", "will", "just", "don", "should", "now",
)

// Sentences splits text on terminal punctuation. Text after the last
// terminator is kept as a final sentence. Runs of whitespace collapse to one
// space and empty sentences are dropped.
func Sentences(text string) []string {
	text = norm.NFC.String(text)
	var out []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		out = appendSentence(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	return appendSentence(out, text[last:])
}

// Words returns the lowercased letter runs of text, apostrophes included.
func Words(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(norm.NFC.String(text)), -1)
}

// Terms is Words without stopwords.
func Terms(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// IsStopword reports whether the lowercased word carries no topic.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

func appendSentence(sentences []string, raw string) []string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return sentences
	}
	return append(sentences, s)
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
