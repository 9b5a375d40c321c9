package gosemchunk

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MegaGrindStone/go-sem-chunk/internal"
	"golang.org/x/sync/errgroup"
)

// DetectBoundaries runs the four boundary sub-detectors over the unit
// sequence and merges their outputs into a single ranked list of candidates.
// Each sub-detector normalizes its scores to [0,1]; same-position candidates
// are merged by summing weighted scores, capped at 1.0, and only positions
// whose merged score reaches Config.SemanticThreshold are returned, sorted by
// ascending position.
//
// The sub-detectors are pure functions of the immutable unit data and run
// concurrently. When embeddings is nil the detector degrades to lexical
// cohesion alone, carrying its full weight.
func DetectBoundaries(ctx context.Context, units []Unit, embeddings [][]float32, cfg Config) ([]BoundaryCandidate, error) {
	if len(units) < 2 {
		return nil, nil
	}

	scorer := NewCoherenceScorer(units, embeddings, cfg)

	weights := cfg.Weights
	if embeddings == nil {
		// Lexical cohesion is the only signal left; let it speak alone.
		weights = DetectorWeights{LexicalCohesion: 1}
	}

	var windowCands, coherenceCands, topicCands, lexicalCands []BoundaryCandidate

	group, groupCtx := errgroup.WithContext(ctx)
	if embeddings != nil {
		group.Go(func() error {
			windowCands = detectWindowSimilarity(groupCtx, units, embeddings, cfg)
			return groupCtx.Err()
		})
		group.Go(func() error {
			coherenceCands = detectCoherenceBreaks(scorer)
			return groupCtx.Err()
		})
		group.Go(func() error {
			topicCands = detectTopicShifts(groupCtx, embeddings, cfg)
			return groupCtx.Err()
		})
	}
	group.Go(func() error {
		lexicalCands = detectLexicalCohesion(units, cfg)
		return groupCtx.Err()
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("boundary detection cancelled: %w", err)
	}

	merged := mergeCandidates(len(units), weights,
		windowCands, coherenceCands, topicCands, lexicalCands)

	result := merged[:0]
	for _, cand := range merged {
		if cand.Score >= cfg.SemanticThreshold {
			result = append(result, cand)
		}
	}
	return result, nil
}

// detectWindowSimilarity compares the centroid embedding of the k units
// before each seam to the centroid of the k units after it; dissimilar
// windows score as boundaries.
func detectWindowSimilarity(ctx context.Context, units []Unit, embeddings [][]float32, cfg Config) []BoundaryCandidate {
	k := cfg.WindowSize
	var candidates []BoundaryCandidate
	for p := 1; p < len(units); p++ {
		if ctx.Err() != nil {
			return candidates
		}
		from := p - k
		if from < 0 {
			from = 0
		}
		to := p + k
		if to > len(units) {
			to = len(units)
		}
		before := internal.Centroid(embeddings[from:p])
		after := internal.Centroid(embeddings[p:to])
		if before == nil || after == nil {
			continue
		}
		score := 1 - internal.Cosine01(before, after)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, BoundaryCandidate{
			Position:  p,
			Score:     clamp01(score),
			Source:    BoundaryWindowSimilarity,
			Rationale: fmt.Sprintf("window centroids diverge (similarity %.2f)", 1-score),
		})
	}
	return candidates
}

// detectCoherenceBreaks surfaces the coherence curve's local minima as
// boundary candidates, scored by the depth of each minimum.
func detectCoherenceBreaks(scorer *CoherenceScorer) []BoundaryCandidate {
	breaks := scorer.FindBreaks()
	candidates := make([]BoundaryCandidate, 0, len(breaks))
	for _, brk := range breaks {
		candidates = append(candidates, BoundaryCandidate{
			Position:  brk.Position,
			Score:     brk.Confidence,
			Source:    BoundaryCoherenceBreak,
			Rationale: fmt.Sprintf("coherence minimum %.2f below threshold", brk.Score),
		})
	}
	return candidates
}

// detectTopicShifts clusters unit embeddings with a density-based method and
// scores a boundary wherever the cluster assignment changes between adjacent
// units. Seams involving noise points score lower than seams between two
// well-formed clusters.
func detectTopicShifts(ctx context.Context, embeddings [][]float32, cfg Config) []BoundaryCandidate {
	labels := dbscan(embeddings, cfg.TopicClusterEpsilon, cfg.TopicClusterMinPoints)
	var candidates []BoundaryCandidate
	for p := 1; p < len(labels); p++ {
		if ctx.Err() != nil {
			return candidates
		}
		if labels[p] == labels[p-1] {
			continue
		}
		score := 0.9
		if labels[p] == noiseLabel || labels[p-1] == noiseLabel {
			score = 0.6
		}
		candidates = append(candidates, BoundaryCandidate{
			Position:  p,
			Score:     score,
			Source:    BoundaryTopicShift,
			Rationale: fmt.Sprintf("topic cluster changes %d -> %d", labels[p-1], labels[p]),
		})
	}
	return candidates
}

// detectLexicalCohesion measures content-word overlap between the unit
// windows on each side of a seam; drops in overlap score as boundaries. Raw
// scores are max-normalized so the strongest drop in the document reaches 1.
func detectLexicalCohesion(units []Unit, cfg Config) []BoundaryCandidate {
	k := cfg.WindowSize
	type rawScore struct {
		position int
		value    float64
		overlap  float64
	}

	var raws []rawScore
	maxValue := 0.0
	for p := 1; p < len(units); p++ {
		from := p - k
		if from < 0 {
			from = 0
		}
		to := p + k
		if to > len(units) {
			to = len(units)
		}
		before := internal.ContentWords(joinUnitText(units[from:p]))
		after := internal.ContentWords(joinUnitText(units[p:to]))
		if len(before) == 0 || len(after) == 0 {
			continue
		}
		overlap := internal.OverlapRatio(before, after)
		value := 1 - overlap
		if value > maxValue {
			maxValue = value
		}
		raws = append(raws, rawScore{position: p, value: value, overlap: overlap})
	}
	if maxValue == 0 {
		return nil
	}

	candidates := make([]BoundaryCandidate, 0, len(raws))
	for _, raw := range raws {
		score := raw.value / maxValue
		if score <= 0 {
			continue
		}
		candidates = append(candidates, BoundaryCandidate{
			Position:  raw.position,
			Score:     score,
			Source:    BoundaryLexicalCohesion,
			Rationale: fmt.Sprintf("content-word overlap drops to %.2f", raw.overlap),
		})
	}
	return candidates
}

// mergeCandidates combines per-detector candidates into one weighted score
// per position. Positions outside (0, unitCount) are discarded; they would
// not separate two units.
func mergeCandidates(unitCount int, weights DetectorWeights, lists ...[]BoundaryCandidate) []BoundaryCandidate {
	weightOf := map[BoundarySource]float64{
		BoundaryWindowSimilarity: weights.WindowSimilarity,
		BoundaryCoherenceBreak:   weights.CoherenceBreak,
		BoundaryTopicShift:       weights.TopicShift,
		BoundaryLexicalCohesion:  weights.LexicalCohesion,
	}

	scores := make(map[int]float64)
	rationales := make(map[int][]string)
	for _, list := range lists {
		for _, cand := range list {
			if cand.Position <= 0 || cand.Position >= unitCount {
				continue
			}
			scores[cand.Position] += weightOf[cand.Source] * cand.Score
			rationales[cand.Position] = append(rationales[cand.Position],
				fmt.Sprintf("%s: %s", cand.Source, cand.Rationale))
		}
	}

	positions := make([]int, 0, len(scores))
	for p := range scores {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	merged := make([]BoundaryCandidate, 0, len(positions))
	for _, p := range positions {
		score := scores[p]
		if score > 1 {
			score = 1
		}
		merged = append(merged, BoundaryCandidate{
			Position:  p,
			Score:     score,
			Source:    BoundaryMerged,
			Rationale: strings.Join(rationales[p], "; "),
		})
	}
	return merged
}

func joinUnitText(units []Unit) string {
	var sb strings.Builder
	for _, unit := range units {
		sb.WriteString(unit.Text)
	}
	return sb.String()
}

const noiseLabel = -1

// dbscan clusters vectors by cosine distance. It visits points in index
// order, so the labeling is deterministic for a given input.
func dbscan(vectors [][]float32, epsilon float64, minPoints int) []int {
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = noiseLabel
	}

	neighborsOf := func(i int) []int {
		var neighbors []int
		for j := range vectors {
			if j == i {
				continue
			}
			if 1-internal.CosineSimilarity(vectors[i], vectors[j]) <= epsilon {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	visited := make([]bool, len(vectors))
	cluster := 0
	for i := range vectors {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := neighborsOf(i)
		if len(neighbors) < minPoints {
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noiseLabel {
				labels[j] = cluster
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			next := neighborsOf(j)
			if len(next) >= minPoints {
				queue = append(queue, next...)
			}
		}
		cluster++
	}

	return labels
}
