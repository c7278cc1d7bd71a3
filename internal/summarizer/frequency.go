package summarizer

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/lexicon"
)

// FrequencySummarizer builds the corpus overview shown above the chat from
// the indexed chunks. A term weighs the share of chunks it occurs in, so
// sentences about the corpus-wide topics rank first. Selection takes the best
// sentence of each document in turn before a second one from any document.
type FrequencySummarizer struct{}

func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

type sentence struct {
	doc   int
	pos   int
	text  string
	terms []string
	score float64
}

// Summarize picks up to maxSentences sentences (5 when not positive) and
// returns them in corpus order. Sentences repeated by chunk overlap count once.
func (s *FrequencySummarizer) Summarize(chunks []domain.Chunk, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := collectSentences(chunks)
	if len(sentences) == 0 {
		return "", nil
	}

	weights := chunkFrequencies(chunks)
	for i := range sentences {
		sentences[i].score = score(sentences[i].terms, weights)
	}

	picked := roundRobin(sentences, maxSentences)
	slices.SortFunc(picked, func(a, b sentence) int {
		return cmp.Or(cmp.Compare(a.doc, b.doc), cmp.Compare(a.pos, b.pos))
	})
	texts := make([]string, len(picked))
	for i, p := range picked {
		texts[i] = p.text
	}
	return strings.Join(texts, " "), nil
}

// collectSentences splits chunks into sentences, numbering documents by first
// appearance and dropping repeats within a document.
func collectSentences(chunks []domain.Chunk) []sentence {
	docs := make(map[string]int)
	seen := make(map[string]struct{})
	var out []sentence
	for _, ch := range chunks {
		doc, ok := docs[ch.DocumentID]
		if !ok {
			doc = len(docs)
			docs[ch.DocumentID] = doc
		}
		for _, text := range lexicon.Sentences(ch.Text) {
			key := ch.DocumentID + "\x00" + text
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sentence{doc: doc, pos: len(out), text: text, terms: lexicon.Terms(text)})
		}
	}
	return out
}

func chunkFrequencies(chunks []domain.Chunk) map[string]float64 {
	weights := make(map[string]float64)
	for _, ch := range chunks {
		for _, term := range uniq(lexicon.Terms(ch.Text)) {
			weights[term]++
		}
	}
	n := float64(len(chunks))
	for term := range weights {
		weights[term] /= n
	}
	return weights
}

// score is length-normalized so long sentences do not win by size alone.
func score(terms []string, weights map[string]float64) float64 {
	if len(terms) == 0 {
		return 0
	}
	var sum float64
	for _, t := range terms {
		sum += weights[t]
	}
	return sum / math.Sqrt(float64(len(terms)))
}

func roundRobin(sentences []sentence, limit int) []sentence {
	var byDoc [][]sentence
	for _, s := range sentences {
		for len(byDoc) <= s.doc {
			byDoc = append(byDoc, nil)
		}
		byDoc[s.doc] = append(byDoc[s.doc], s)
	}
	for _, group := range byDoc {
		slices.SortStableFunc(group, func(a, b sentence) int { return cmp.Compare(b.score, a.score) })
	}

	var picked []sentence
	for rank := 0; len(picked) < limit; rank++ {
		added := false
		for _, group := range byDoc {
			if rank < len(group) && len(picked) < limit {
				picked = append(picked, group[rank])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return picked
}

func uniq(terms []string) []string {
	slices.Sort(terms)
	return slices.Compact(terms)
}
