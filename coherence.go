package gosemchunk

import (
	"strings"

	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// Discourse markers with fixed polarity. A continuation marker at a seam
// rewards the span's coherence; a shift marker penalizes it. The lists are a
// lookup table, not model-inferred.
var (
	continuationMarkers = []string{
		"furthermore", "moreover", "additionally", "in addition", "also",
		"similarly", "likewise", "for example", "for instance",
		"specifically", "in other words", "that is",
	}
	shiftMarkers = []string{
		"however", "therefore", "in contrast", "on the other hand",
		"meanwhile", "conversely", "nevertheless", "nonetheless", "instead",
		"by contrast", "whereas", "on the contrary",
	}
)

// Weighting between the embedding-similarity signal and the discourse-marker
// signal in a span's coherence score.
const (
	similaritySignalWeight = 0.8
	markerSignalWeight     = 0.2
)

// CoherenceBreak is a position where the local coherence curve has a minimum
// below the configured threshold. Confidence reflects the depth of the
// minimum relative to its neighbors.
type CoherenceBreak struct {
	Position   int
	Score      float64
	Confidence float64
}

// CoherenceScorer scores the semantic flow of contiguous unit spans and
// locates coherence breaks. It is created per chunking call over the
// immutable unit sequence and its embeddings, and is safe for concurrent use.
type CoherenceScorer struct {
	units      []Unit
	embeddings [][]float32
	threshold  float64
	window     int
}

// NewCoherenceScorer builds a scorer over the given units. Embeddings may be
// nil when the embedder is unavailable; SpanScore then returns ScoreUnknown
// and FindBreaks returns no breaks.
func NewCoherenceScorer(units []Unit, embeddings [][]float32, cfg Config) *CoherenceScorer {
	return &CoherenceScorer{
		units:      units,
		embeddings: embeddings,
		threshold:  cfg.CoherenceThreshold,
		window:     cfg.WindowSize,
	}
}

// SpanScore returns the coherence of units[start:end] in [0,1], combining the
// mean pairwise similarity of consecutive units with a discourse-marker
// adjustment. Spans of fewer than two units are trivially coherent. The
// result is ScoreUnknown when no embeddings are available.
func (s *CoherenceScorer) SpanScore(start, end int) float64 {
	if s.embeddings == nil {
		return ScoreUnknown
	}
	if start < 0 {
		start = 0
	}
	if end > len(s.units) {
		end = len(s.units)
	}
	if end-start < 2 {
		return 1
	}

	similarity := s.SpanSimilarity(start, end)
	seams := end - start - 1

	marker := 0.5
	continuations, shifts := 0, 0
	for i := start + 1; i < end; i++ {
		switch markerPolarity(s.units[i].Text) {
		case 1:
			continuations++
		case -1:
			shifts++
		}
	}
	marker += 0.5 * float64(continuations-shifts) / float64(seams)

	return clamp01(similaritySignalWeight*similarity + markerSignalWeight*clamp01(marker))
}

// SpanSimilarity returns the mean [0,1] embedding similarity of consecutive
// units in units[start:end], without the discourse-marker adjustment. It is
// the semantic-score signal of a chunk. Returns ScoreUnknown without
// embeddings; single-unit spans are trivially similar.
func (s *CoherenceScorer) SpanSimilarity(start, end int) float64 {
	if s.embeddings == nil {
		return ScoreUnknown
	}
	if start < 0 {
		start = 0
	}
	if end > len(s.units) {
		end = len(s.units)
	}
	if end-start < 2 {
		return 1
	}
	var sum float64
	for i := start; i < end-1; i++ {
		sum += internal.Cosine01(s.embeddings[i], s.embeddings[i+1])
	}
	return clamp01(sum / float64(end-start-1))
}

// SeamSimilarity returns the [0,1] embedding similarity across the seam
// before unit position, or ScoreUnknown without embeddings.
func (s *CoherenceScorer) SeamSimilarity(position int) float64 {
	if s.embeddings == nil || position <= 0 || position >= len(s.units) {
		return ScoreUnknown
	}
	return internal.Cosine01(s.embeddings[position-1], s.embeddings[position])
}

// FindBreaks slides a window across the unit sequence and returns the local
// minima of the coherence curve that fall below the configured threshold,
// ordered by position.
func (s *CoherenceScorer) FindBreaks() []CoherenceBreak {
	if s.embeddings == nil || len(s.units) < 3 {
		return nil
	}

	w := s.window
	if w < 2 {
		w = 2
	}

	curve := make([]float64, len(s.units))
	for p := 1; p < len(s.units); p++ {
		curve[p] = s.SpanScore(p-w, p+w)
	}

	var breaks []CoherenceBreak
	for p := 2; p < len(s.units)-1; p++ {
		if curve[p] >= s.threshold {
			continue
		}
		if curve[p] >= curve[p-1] || curve[p] > curve[p+1] {
			continue
		}
		depth := (curve[p-1]+curve[p+1])/2 - curve[p]
		breaks = append(breaks, CoherenceBreak{
			Position:   p,
			Score:      curve[p],
			Confidence: clamp01(depth * 4),
		})
	}

	return breaks
}

// markerPolarity reports whether the unit opens with a continuation marker
// (1), a shift marker (-1), or neither (0).
func markerPolarity(text string) int {
	head := strings.ToLower(strings.TrimSpace(text))
	if len(head) > 40 {
		head = head[:40]
	}
	for _, marker := range shiftMarkers {
		if strings.HasPrefix(head, marker) {
			return -1
		}
	}
	for _, marker := range continuationMarkers {
		if strings.HasPrefix(head, marker) {
			return 1
		}
	}
	return 0
}
