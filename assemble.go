package gosemchunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash"

	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// Importance scoring mix. Raw scores are max-normalized to [0,1] across the
// document afterwards.
const (
	importanceDensityWeight  = 0.6
	importancePositionWeight = 0.3
	importanceHeadingWeight  = 0.1
)

const (
	chunkKeywordCount  = 8
	chunkTopicCount    = 3
	globalTopicCount   = 12
	summaryMaxLength   = 200
	structureTypeProse = "prose"
	structureTypeMixed = "mixed"
)

// assembleStructure turns the strategy's raw chunks into the final
// DocumentStructure: chunks ordered by source position, undersized chunks
// folded into a sibling, stable ids assigned, hierarchy and enrichment
// metadata computed.
func assembleStructure(docID string, chunks []DocumentChunk, cfg Config, warnings []Warning) DocumentStructure {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Metadata.StartOffset != chunks[j].Metadata.StartOffset {
			return chunks[i].Metadata.StartOffset < chunks[j].Metadata.StartOffset
		}
		return chunks[i].Metadata.Level < chunks[j].Metadata.Level
	})

	chunks, absorbed := mergeSmallChunks(chunks, cfg)

	// Stable ids replace the strategies' provisional ones; absorbed chunks
	// alias the id of their absorber so hierarchy references stay valid.
	remap := make(map[string]string)
	for i := range chunks {
		id := chunkID(docID, i)
		if prov := chunks[i].ChunkID; prov != "" {
			remap[prov] = id
		}
		chunks[i].ChunkID = id
		chunks[i].Metadata.ChunkID = id
		chunks[i].Metadata.Position = i
	}
	for prov, absorber := range absorbed {
		remap[prov] = remap[absorber]
	}
	rewriteHierarchyIDs(chunks, remap)

	enrichChunks(chunks, cfg)

	structure := DocumentStructure{
		DocumentID:      docID,
		Chunks:          chunks,
		Hierarchy:       hierarchyIndex(chunks),
		GlobalTopics:    globalTopics(chunks),
		DocumentSummary: summarize(chunks),
		Warnings:        warnings,
	}
	if cfg.SemanticThreshold > 0 {
		linkRelatedChunks(chunks, cfg.SemanticThreshold)
	}
	structure.Warnings = appendChunkWarnings(structure.Warnings, chunks)
	return structure
}

// chunkID derives the stable chunk id from the document id and the chunk's
// final position.
func chunkID(docID string, position int) string {
	return fmt.Sprintf("chunk-%016x-%d", xxhash.Sum64String(docID), position)
}

// mergeSmallChunks folds chunks under the minimum size into an adjacent
// sibling, preferring the neighbor with the more similar embedding. Chunks
// that anchor children, carry structural content allowed past the limit, or
// have no same-parent neighbor that fits are left as they are. The returned
// map aliases each absorbed chunk's provisional id to its absorber's.
func mergeSmallChunks(chunks []DocumentChunk, cfg Config) ([]DocumentChunk, map[string]string) {
	absorbed := make(map[string]string)
	for i := 0; i < len(chunks); i++ {
		meta := chunks[i].Metadata
		ownSize := meta.EndOffset - meta.StartOffset
		if ownSize >= cfg.MinChunkSize || len(meta.ChildrenChunkIDs) > 0 ||
			meta.ChunkType != structureTypeProse {
			continue
		}

		prevIdx := siblingIndex(chunks, i, -1)
		nextIdx := siblingIndex(chunks, i, +1)
		target := pickMergeTarget(chunks, i, prevIdx, nextIdx, cfg.MaxChunkSize)
		if target < 0 {
			continue
		}

		if target < i {
			chunks[target] = absorb(chunks[target], chunks[i])
			recordAlias(absorbed, chunks[i].ChunkID, chunks[target].ChunkID)
		} else {
			chunks[target] = absorbBefore(chunks[i], chunks[target])
			recordAlias(absorbed, chunks[i].ChunkID, chunks[target].ChunkID)
		}
		chunks = append(chunks[:i], chunks[i+1:]...)
		i--
	}
	return chunks, absorbed
}

// siblingIndex finds the nearest neighbor in the given direction sharing the
// chunk's parent, or -1.
func siblingIndex(chunks []DocumentChunk, i, direction int) int {
	j := i + direction
	if j < 0 || j >= len(chunks) {
		return -1
	}
	if chunks[j].Metadata.ParentChunkID != chunks[i].Metadata.ParentChunkID {
		return -1
	}
	return j
}

// pickMergeTarget chooses between the two candidate siblings: when both fit,
// the one reading more continuously with the undersized chunk wins; ties go
// to the earlier sibling.
func pickMergeTarget(chunks []DocumentChunk, i, prevIdx, nextIdx, maxSize int) int {
	fits := func(j int) bool {
		if j < 0 {
			return false
		}
		merged := chunks[j].Metadata.EndOffset - chunks[j].Metadata.StartOffset +
			chunks[i].Metadata.EndOffset - chunks[i].Metadata.StartOffset
		return merged <= maxSize
	}
	prevOK, nextOK := fits(prevIdx), fits(nextIdx)
	switch {
	case prevOK && nextOK:
		if mergeContinuity(chunks[i], chunks[nextIdx]) > mergeContinuity(chunks[i], chunks[prevIdx]) {
			return nextIdx
		}
		return prevIdx
	case prevOK:
		return prevIdx
	case nextOK:
		return nextIdx
	default:
		return -1
	}
}

// mergeContinuity scores how continuously two sibling chunks read, using the
// same signal blend as ContextTracker.Continuity: entity overlap,
// content-word overlap, and embedding similarity, averaged over whichever
// signals are available.
func mergeContinuity(a, b DocumentChunk) float64 {
	var sum float64
	signals := 0
	if len(a.Metadata.Entities) > 0 || len(b.Metadata.Entities) > 0 {
		sum += internal.OverlapRatio(lowercase(a.Metadata.Entities), lowercase(b.Metadata.Entities))
		signals++
	}
	sum += internal.OverlapRatio(internal.ContentWords(a.Content), internal.ContentWords(b.Content))
	signals++
	if a.Embedding != nil && b.Embedding != nil {
		sum += internal.Cosine01(a.Embedding, b.Embedding)
		signals++
	}
	return sum / float64(signals)
}

func recordAlias(absorbed map[string]string, from, to string) {
	if from == "" {
		return
	}
	absorbed[from] = to
	// Re-point earlier aliases that resolved to the now-absorbed chunk.
	for prov, target := range absorbed {
		if target == from {
			absorbed[prov] = to
		}
	}
}

// absorb appends the trailing chunk's own span onto the leading one.
func absorb(lead, trail DocumentChunk) DocumentChunk {
	ownLen := trail.Metadata.EndOffset - trail.Metadata.StartOffset
	lead.Content += trail.Content[len(trail.Content)-ownLen:]
	lead.Metadata.EndOffset = trail.Metadata.EndOffset
	return mergeDerived(lead, trail)
}

// absorbBefore prepends the leading chunk's content onto the trailing chunk's
// own span. The trailing chunk's old overlap prefix is dropped: it duplicated
// the absorbed text, which now sits inside the merged span. The leading
// chunk's prefix and OverlapUnits carry over instead.
func absorbBefore(lead, trail DocumentChunk) DocumentChunk {
	ownLen := trail.Metadata.EndOffset - trail.Metadata.StartOffset
	trail.Content = lead.Content + trail.Content[len(trail.Content)-ownLen:]
	trail.Metadata.StartOffset = lead.Metadata.StartOffset
	trail.Metadata.OverlapUnits = lead.Metadata.OverlapUnits
	return mergeDerived(trail, lead)
}

// mergeDerived folds the absorbed chunk's derived metadata into the keeper.
// An absorption across structural types leaves the merged chunk mixed.
func mergeDerived(keep, gone DocumentChunk) DocumentChunk {
	if keep.Metadata.ChunkType != gone.Metadata.ChunkType {
		keep.Metadata.ChunkType = structureTypeMixed
	}
	keep.Metadata.TokenSize += gone.Metadata.TokenSize
	keep.Metadata.SemanticScore = mergeScore(keep.Metadata.SemanticScore, gone.Metadata.SemanticScore)
	keep.Metadata.CoherenceScore = mergeScore(keep.Metadata.CoherenceScore, gone.Metadata.CoherenceScore)
	for _, entity := range gone.Metadata.Entities {
		keep.Metadata.Entities = appendIfUnique(keep.Metadata.Entities, entity)
	}
	keep.Metadata.Warnings = append(keep.Metadata.Warnings, gone.Metadata.Warnings...)
	if keep.Embedding != nil && gone.Embedding != nil {
		keep.Embedding = internal.Centroid([][]float32{keep.Embedding, gone.Embedding})
	}
	return keep
}

// mergeScore averages two scores, keeping the unknown sentinel sticky.
func mergeScore(a, b float64) float64 {
	if !KnownScore(a) || !KnownScore(b) {
		return ScoreUnknown
	}
	return (a + b) / 2
}

// rewriteHierarchyIDs replaces provisional parent and child references with
// stable ids, dropping references to chunks that merged into their referrer.
func rewriteHierarchyIDs(chunks []DocumentChunk, remap map[string]string) {
	for i := range chunks {
		meta := &chunks[i].Metadata
		if mapped, ok := remap[meta.ParentChunkID]; ok {
			meta.ParentChunkID = mapped
		}
		if len(meta.ChildrenChunkIDs) == 0 {
			continue
		}
		children := meta.ChildrenChunkIDs[:0]
		for _, child := range meta.ChildrenChunkIDs {
			if mapped, ok := remap[child]; ok {
				child = mapped
			}
			if child == chunks[i].ChunkID {
				continue
			}
			children = appendIfUnique(children, child)
		}
		meta.ChildrenChunkIDs = children
	}
}

// enrichChunks fills keywords, topics, and importance scores in place.
func enrichChunks(chunks []DocumentChunk, cfg Config) {
	raw := make([]float64, len(chunks))
	maxRaw := 0.0
	for i := range chunks {
		meta := &chunks[i].Metadata
		meta.Keywords = contentKeywords(chunks[i].Content, chunkKeywordCount)
		if len(meta.Keywords) > chunkTopicCount {
			meta.Topics = meta.Keywords[:chunkTopicCount]
		} else {
			meta.Topics = meta.Keywords
		}

		if !cfg.CalculateImportance {
			meta.ImportanceScore = ScoreUnknown
			continue
		}
		raw[i] = rawImportance(chunks[i], i, len(chunks))
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}
	if !cfg.CalculateImportance || maxRaw == 0 {
		return
	}
	for i := range chunks {
		chunks[i].Metadata.ImportanceScore = clamp01(raw[i] / maxRaw)
	}
}

// rawImportance mixes lexical density, a position prior favoring early
// chunks, and a bonus for headings.
func rawImportance(chunk DocumentChunk, position, total int) float64 {
	words := internal.Tokenize(chunk.Content)
	density := 0.0
	if len(words) > 0 {
		density = float64(len(internal.ContentWords(chunk.Content))) / float64(len(words))
	}
	positionPrior := 1 - float64(position)/float64(total)
	headingBonus := 0.0
	if chunk.Metadata.ChunkType == string(StructuralHeading) {
		headingBonus = 1
	}
	return importanceDensityWeight*density +
		importancePositionWeight*positionPrior +
		importanceHeadingWeight*headingBonus
}

// contentKeywords returns the most frequent content words of the text, ties
// broken alphabetically for determinism.
func contentKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, word := range internal.ContentWords(text) {
		counts[word]++
	}
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// linkRelatedChunks records pairwise embedding similarity above the threshold
// in both chunks' relationship maps.
func linkRelatedChunks(chunks []DocumentChunk, threshold float64) {
	for i := range chunks {
		if chunks[i].Embedding == nil {
			continue
		}
		for j := i + 1; j < len(chunks); j++ {
			if chunks[j].Embedding == nil {
				continue
			}
			sim := internal.Cosine01(chunks[i].Embedding, chunks[j].Embedding)
			if sim <= threshold {
				continue
			}
			if chunks[i].Relationships == nil {
				chunks[i].Relationships = make(map[string]float64)
			}
			if chunks[j].Relationships == nil {
				chunks[j].Relationships = make(map[string]float64)
			}
			chunks[i].Relationships[chunks[j].ChunkID] = sim
			chunks[j].Relationships[chunks[i].ChunkID] = sim
		}
	}
}

// hierarchyIndex maps each chunk id with descendants to their ids, depth
// first in document order.
func hierarchyIndex(chunks []DocumentChunk) map[string][]string {
	children := make(map[string][]string)
	for _, chunk := range chunks {
		if len(chunk.Metadata.ChildrenChunkIDs) > 0 {
			children[chunk.ChunkID] = chunk.Metadata.ChildrenChunkIDs
		}
	}
	if len(children) == 0 {
		return nil
	}

	index := make(map[string][]string, len(children))
	var descend func(id string) []string
	descend = func(id string) []string {
		if cached, ok := index[id]; ok {
			return cached
		}
		var all []string
		for _, child := range children[id] {
			all = append(all, child)
			all = append(all, descend(child)...)
		}
		index[id] = all
		return all
	}
	for id := range children {
		descend(id)
	}
	for id, all := range index {
		if len(all) == 0 {
			delete(index, id)
		}
	}
	return index
}

// globalTopics aggregates the top chunk topics into a document-level list,
// de-duplicated by stem, most frequent first.
func globalTopics(chunks []DocumentChunk) []string {
	counts := make(map[string]int)
	first := make(map[string]string)
	order := make([]string, 0)
	for _, chunk := range chunks {
		for _, topic := range chunk.Metadata.Topics {
			stem := internal.Stem(topic)
			if _, seen := counts[stem]; !seen {
				first[stem] = topic
				order = append(order, stem)
			}
			counts[stem]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	topics := make([]string, 0, min(len(order), globalTopicCount))
	for _, stem := range order {
		topics = append(topics, first[stem])
		if len(topics) == globalTopicCount {
			break
		}
	}
	return topics
}

// summarize extracts the leading sentence of the most important chunk as a
// cheap extractive document summary.
func summarize(chunks []DocumentChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	best := 0
	for i := range chunks {
		if KnownScore(chunks[i].Metadata.ImportanceScore) &&
			chunks[i].Metadata.ImportanceScore > chunks[best].Metadata.ImportanceScore {
			best = i
		}
	}
	text := strings.TrimSpace(chunks[best].Content)
	if loc := sentenceEndPattern.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[:loc[0]+1])
	}
	if len(text) > summaryMaxLength {
		text = text[:summaryMaxLength]
	}
	return text
}

// appendChunkWarnings lifts chunk-level warnings onto the structure, one per
// warning code.
func appendChunkWarnings(warnings []Warning, chunks []DocumentChunk) []Warning {
	seen := make(map[WarningCode]struct{}, len(warnings))
	for _, warning := range warnings {
		seen[warning.Code] = struct{}{}
	}
	for _, chunk := range chunks {
		for _, warning := range chunk.Metadata.Warnings {
			if _, ok := seen[warning.Code]; ok {
				continue
			}
			seen[warning.Code] = struct{}{}
			warnings = append(warnings, warning)
		}
	}
	return warnings
}
