package gosemchunk

import (
	"regexp"
	"strings"

	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// Bounds on the tracker's FIFO state. Oldest entries are evicted first once a
// bound is exceeded.
const (
	trackerEntityBound = 32
	trackerWordBound   = 256
)

// Weight of new chunks in the rolling topic centroid.
const topicBlendWeight = 0.3

// ContextTracker maintains a rolling window of recently seen entities,
// content words, and the current topic embedding for a single document. It is
// the only mutable, ordering-sensitive state in the pipeline: create one per
// document and never share it across concurrent documents.
type ContextTracker struct {
	entities []string
	words    []string
	topic    []float32
}

// NewContextTracker returns an empty tracker, ready for the first chunk of a
// document.
func NewContextTracker() *ContextTracker {
	return &ContextTracker{}
}

// Continuity scores how well the candidate chunk continues the tracked
// context, in [0,1]. It averages entity overlap, lexical overlap, and topic
// similarity over whichever of the three signals are available; with no
// tracked state yet it returns 0.
func (t *ContextTracker) Continuity(chunk DocumentChunk) float64 {
	if len(t.entities) == 0 && len(t.words) == 0 && t.topic == nil {
		return 0
	}

	var sum float64
	signals := 0

	if len(t.entities) > 0 {
		chunkEntities := chunk.Metadata.Entities
		if chunkEntities == nil {
			chunkEntities = ExtractEntities(chunk.Content)
		}
		sum += internal.OverlapRatio(lowercase(t.entities), lowercase(chunkEntities))
		signals++
	}
	if len(t.words) > 0 {
		sum += internal.OverlapRatio(t.words, internal.ContentWords(chunk.Content))
		signals++
	}
	if t.topic != nil && chunk.Embedding != nil {
		sum += internal.Cosine01(t.topic, chunk.Embedding)
		signals++
	}

	if signals == 0 {
		return 0
	}
	return clamp01(sum / float64(signals))
}

// Advance updates the tracked state after a chunk is finalized, evicting the
// oldest entries once the FIFO bounds are exceeded.
func (t *ContextTracker) Advance(chunk DocumentChunk) {
	entities := chunk.Metadata.Entities
	if entities == nil {
		entities = ExtractEntities(chunk.Content)
	}
	t.entities = pushBounded(t.entities, entities, trackerEntityBound)
	t.words = pushBounded(t.words, internal.ContentWords(chunk.Content), trackerWordBound)

	if chunk.Embedding != nil {
		if t.topic == nil || len(t.topic) != len(chunk.Embedding) {
			t.topic = append([]float32(nil), chunk.Embedding...)
		} else {
			for i := range t.topic {
				t.topic[i] = t.topic[i]*(1-topicBlendWeight) +
					chunk.Embedding[i]*topicBlendWeight
			}
		}
	}
}

// Reset clears the tracked state. The pipeline creates a fresh tracker per
// document, so Reset only matters for callers that reuse one across runs.
func (t *ContextTracker) Reset() {
	t.entities = nil
	t.words = nil
	t.topic = nil
}

func pushBounded(fifo []string, items []string, bound int) []string {
	fifo = append(fifo, items...)
	if len(fifo) > bound {
		fifo = fifo[len(fifo)-bound:]
	}
	return fifo
}

func lowercase(items []string) []string {
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = strings.ToLower(item)
	}
	return result
}

var entityPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:[ \t][A-Z][a-zA-Z0-9]*)+\b|\b[A-Z][a-zA-Z0-9]{2,}\b`)

// ExtractEntities pulls candidate named-entity mentions from text using
// capitalization heuristics: multiword capitalized spans always qualify,
// single capitalized words only when they do not open a sentence. Results are
// de-duplicated in first-mention order.
func ExtractEntities(text string) []string {
	var entities []string
	for _, loc := range entityPattern.FindAllStringIndex(text, -1) {
		mention := text[loc[0]:loc[1]]
		if !strings.ContainsAny(mention, " \t") {
			if startsSentence(text, loc[0]) {
				continue
			}
			if internal.IsStopword(strings.ToLower(mention)) {
				continue
			}
		}
		entities = appendIfUnique(entities, mention)
	}
	return entities
}

// startsSentence reports whether the offset begins the text, a line, or
// follows sentence-ending punctuation.
func startsSentence(text string, offset int) bool {
	head := strings.TrimRight(text[:offset], " \t")
	if head == "" {
		return true
	}
	switch head[len(head)-1] {
	case '.', '!', '?', '\n', ':':
		return true
	}
	return false
}
