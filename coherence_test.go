package gosemchunk_test

import (
	"math"
	"testing"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// makeUnits builds a tiling unit sequence from sentence texts, one unit per
// text, with a trailing space separating them.
func makeUnits(texts ...string) []gosemchunk.Unit {
	units := make([]gosemchunk.Unit, len(texts))
	pos := 0
	for i, text := range texts {
		if i < len(texts)-1 {
			text += " "
		}
		units[i] = gosemchunk.Unit{
			StartOffset:    pos,
			EndOffset:      pos + len(text),
			Text:           text,
			StructuralType: gosemchunk.StructuralSentence,
		}
		pos += len(text)
	}
	return units
}

// uniformEmbeddings returns n copies of the same embedding vector.
func uniformEmbeddings(n int, vec []float32) [][]float32 {
	embeddings := make([][]float32, n)
	for i := range embeddings {
		embeddings[i] = vec
	}
	return embeddings
}

func TestCoherenceScorerSpanScore(t *testing.T) {
	alike := []float32{1, 0}
	units := makeUnits(
		"Plain sentence number one.",
		"Plain sentence number two.",
		"Plain sentence number three.",
	)

	tests := []struct {
		name       string
		embeddings [][]float32
		start, end int
		want       float64
	}{
		{
			name:       "No embeddings",
			embeddings: nil,
			start:      0,
			end:        3,
			want:       gosemchunk.ScoreUnknown,
		},
		{
			name:       "Single unit span is trivially coherent",
			embeddings: uniformEmbeddings(3, alike),
			start:      1,
			end:        2,
			want:       1,
		},
		{
			name:       "Identical embeddings with neutral markers",
			embeddings: uniformEmbeddings(3, alike),
			start:      0,
			end:        3,
			// 0.8 similarity signal at 1.0 plus the neutral 0.5 marker signal.
			want: 0.9,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scorer := gosemchunk.NewCoherenceScorer(units, tc.embeddings, gosemchunk.DefaultConfig())
			got := scorer.SpanScore(tc.start, tc.end)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("SpanScore(%d,%d) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestCoherenceScorerDiscourseMarkers(t *testing.T) {
	alike := []float32{1, 0}
	embeddings := uniformEmbeddings(2, alike)
	cfg := gosemchunk.DefaultConfig()

	neutral := gosemchunk.NewCoherenceScorer(makeUnits(
		"The study covered five cities.",
		"The sample included many households.",
	), embeddings, cfg)
	shifted := gosemchunk.NewCoherenceScorer(makeUnits(
		"The study covered five cities.",
		"However the sample was small.",
	), embeddings, cfg)
	continued := gosemchunk.NewCoherenceScorer(makeUnits(
		"The study covered five cities.",
		"Moreover the sample was large.",
	), embeddings, cfg)

	base := neutral.SpanScore(0, 2)
	if shifted.SpanScore(0, 2) >= base {
		t.Errorf("A shift marker should lower the span score below %v", base)
	}
	if continued.SpanScore(0, 2) <= base {
		t.Errorf("A continuation marker should raise the span score above %v", base)
	}
}

func TestCoherenceScorerSpanScoreBounds(t *testing.T) {
	units := makeUnits(
		"Alpha sentence about gardens.",
		"However the weather turned.",
		"Moreover the soil improved.",
		"Beta sentence about engines.",
		"The pistons fired in order.",
	)
	embeddings := [][]float32{
		{1, 0}, {0.9, 0.1}, {0.8, 0.2}, {-1, 0.3}, {-0.9, 0.4},
	}
	scorer := gosemchunk.NewCoherenceScorer(units, embeddings, gosemchunk.DefaultConfig())

	for start := 0; start < len(units); start++ {
		for end := start + 1; end <= len(units); end++ {
			score := scorer.SpanScore(start, end)
			if score < 0 || score > 1 {
				t.Errorf("SpanScore(%d,%d) = %v outside [0,1]", start, end, score)
			}
		}
	}
}

func TestCoherenceScorerSeamSimilarity(t *testing.T) {
	units := makeUnits(
		"First topic sentence one.",
		"First topic sentence two.",
		"Second topic sentence one.",
	)
	embeddings := [][]float32{{1, 0}, {1, 0}, {-1, 0}}
	scorer := gosemchunk.NewCoherenceScorer(units, embeddings, gosemchunk.DefaultConfig())

	if got := scorer.SeamSimilarity(1); math.Abs(got-1) > 1e-6 {
		t.Errorf("SeamSimilarity(1) = %v, want 1", got)
	}
	if got := scorer.SeamSimilarity(2); math.Abs(got) > 1e-6 {
		t.Errorf("SeamSimilarity(2) = %v, want 0", got)
	}
	if got := scorer.SeamSimilarity(0); got != gosemchunk.ScoreUnknown {
		t.Errorf("SeamSimilarity(0) = %v, want ScoreUnknown", got)
	}

	degraded := gosemchunk.NewCoherenceScorer(units, nil, gosemchunk.DefaultConfig())
	if got := degraded.SeamSimilarity(1); got != gosemchunk.ScoreUnknown {
		t.Errorf("SeamSimilarity without embeddings = %v, want ScoreUnknown", got)
	}
}

func TestCoherenceScorerFindBreaks(t *testing.T) {
	topicA := []float32{1, 0}
	outlier := []float32{-1, 0}
	units := makeUnits(
		"Garden sentence number one.",
		"Garden sentence number two.",
		"Garden sentence number three.",
		"Engine sentence stands alone.",
		"Garden sentence number four.",
		"Garden sentence number five.",
		"Garden sentence number six.",
	)
	embeddings := [][]float32{topicA, topicA, topicA, outlier, topicA, topicA, topicA}

	cfg := gosemchunk.DefaultConfig()
	cfg.WindowSize = 2

	scorer := gosemchunk.NewCoherenceScorer(units, embeddings, cfg)
	breaks := scorer.FindBreaks()

	if len(breaks) != 1 {
		t.Fatalf("Expected 1 break, got %d: %+v", len(breaks), breaks)
	}
	brk := breaks[0]
	if brk.Position != 3 {
		t.Errorf("Break position = %d, want 3", brk.Position)
	}
	if brk.Score >= cfg.CoherenceThreshold {
		t.Errorf("Break score %v should be below the threshold %v", brk.Score, cfg.CoherenceThreshold)
	}
	if brk.Confidence <= 0 || brk.Confidence > 1 {
		t.Errorf("Break confidence %v outside (0,1]", brk.Confidence)
	}
}

func TestCoherenceScorerFindBreaksDegraded(t *testing.T) {
	units := makeUnits("One sentence.", "Two sentences.", "Three sentences.")
	scorer := gosemchunk.NewCoherenceScorer(units, nil, gosemchunk.DefaultConfig())
	if breaks := scorer.FindBreaks(); breaks != nil {
		t.Errorf("Expected no breaks without embeddings, got %+v", breaks)
	}
}
