package gosemchunk

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	sentenceEndPattern = regexp.MustCompile(`[.!?]+[)\]"']*\s+`)
	newlinePattern     = regexp.MustCompile(`\n+`)
	abbrevPattern      = regexp.MustCompile(`\b[A-Z][a-z]*\.\s*$`)
	decimalPattern     = regexp.MustCompile(`\d+\.\d*$`)

	tableSeparatorPattern = regexp.MustCompile(`^\s*\|?[\s:|-]+\|?\s*$`)
)

// SegmentUnits splits raw text into ordered atomic units. Text outside hinted
// regions is split on sentence-ending punctuation and line breaks; each hinted
// region becomes exactly one unit, atomic for code blocks, tables, and list
// items, regardless of its internal punctuation.
//
// Units tile the input: whitespace between segments attaches to the preceding
// unit, so concatenating unit texts reproduces the input exactly. An input
// with no split points at all yields a single unit.
func SegmentUnits(content string, hints []StructuralHint) []Unit {
	if content == "" {
		return nil
	}

	hints = normalizeHints(content, hints)

	cuts := []int{0}
	pos := 0
	for _, hint := range hints {
		if hint.StartOffset > pos {
			cuts = append(cuts, gapCuts(content, pos, hint.StartOffset)...)
		}
		cuts = append(cuts, hint.StartOffset, hint.EndOffset)
		pos = hint.EndOffset
	}
	if pos < len(content) {
		cuts = append(cuts, gapCuts(content, pos, len(content))...)
	}
	cuts = append(cuts, len(content))

	sort.Ints(cuts)
	cuts = dedupeInts(cuts)

	units := make([]Unit, 0, len(cuts))
	for i := 0; i < len(cuts)-1; i++ {
		start, end := cuts[i], cuts[i+1]
		if start >= end {
			continue
		}
		segment := content[start:end]
		if strings.TrimSpace(segment) == "" && len(units) > 0 {
			// Whitespace belongs to the preceding unit.
			last := &units[len(units)-1]
			last.EndOffset = end
			last.Text = content[last.StartOffset:end]
			continue
		}
		unit := Unit{
			StartOffset:    start,
			EndOffset:      end,
			Text:           segment,
			StructuralType: StructuralSentence,
		}
		if hint, ok := hintAt(hints, start); ok {
			unit.StructuralType = hint.Type
			unit.HeadingLevel = hint.HeadingLevel
			unit.IsAtomic = hint.Type != StructuralHeading
		}
		units = append(units, unit)
	}

	return units
}

// gapCuts returns the absolute cut offsets inside content[start:end], found at
// sentence-ending punctuation and line breaks. Cuts land after the trailing
// whitespace of a boundary so that whitespace stays with the earlier unit.
func gapCuts(content string, start, end int) []int {
	segment := content[start:end]
	var cuts []int

	for _, match := range sentenceEndPattern.FindAllStringIndex(segment, -1) {
		if !validSentenceBoundary(segment, match[0]) {
			continue
		}
		cuts = append(cuts, start+match[1])
	}
	for _, match := range newlinePattern.FindAllStringIndex(segment, -1) {
		cuts = append(cuts, start+match[1])
	}

	return cuts
}

// validSentenceBoundary rejects boundaries that look like abbreviations or
// decimal numbers rather than sentence ends.
func validSentenceBoundary(segment string, pos int) bool {
	from := pos - 20
	if from < 0 {
		from = 0
	}
	if abbrevPattern.MatchString(segment[from : pos+1]) {
		return false
	}
	numFrom := pos - 10
	if numFrom < 0 {
		numFrom = 0
	}
	return !decimalPattern.MatchString(segment[numFrom : pos+1])
}

// normalizeHints clamps hints to the content bounds, sorts them by start
// offset, and drops empty or overlapping regions, keeping the earlier one.
func normalizeHints(content string, hints []StructuralHint) []StructuralHint {
	cleaned := make([]StructuralHint, 0, len(hints))
	for _, hint := range hints {
		if hint.StartOffset < 0 {
			hint.StartOffset = 0
		}
		if hint.EndOffset > len(content) {
			hint.EndOffset = len(content)
		}
		if hint.StartOffset >= hint.EndOffset {
			continue
		}
		cleaned = append(cleaned, hint)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		if cleaned[i].StartOffset != cleaned[j].StartOffset {
			return cleaned[i].StartOffset < cleaned[j].StartOffset
		}
		return cleaned[i].EndOffset > cleaned[j].EndOffset
	})

	result := make([]StructuralHint, 0, len(cleaned))
	lastEnd := 0
	for _, hint := range cleaned {
		if hint.StartOffset < lastEnd {
			continue
		}
		result = append(result, hint)
		lastEnd = hint.EndOffset
	}
	return result
}

func hintAt(hints []StructuralHint, offset int) (StructuralHint, bool) {
	for _, hint := range hints {
		if offset >= hint.StartOffset && offset < hint.EndOffset {
			return hint, true
		}
	}
	return StructuralHint{}, false
}

func dedupeInts(sorted []int) []int {
	result := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			result = append(result, v)
		}
	}
	return result
}

// MarkdownHints derives structural hints from markdown content: headings with
// their levels, fenced and indented code blocks, list items, and pipe tables.
// It is used by the pipeline when the caller supplies no hints and structure
// preservation is enabled.
func MarkdownHints(content string) []StructuralHint {
	source := []byte(content)
	parser := goldmark.New()
	doc := parser.Parser().Parse(text.NewReader(source))

	var hints []StructuralHint
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			start, stop, ok := nodeSpan(n)
			if !ok {
				return ast.WalkContinue, nil
			}
			// Lines exclude the leading # markers.
			start = lineStart(content, start)
			hints = append(hints, StructuralHint{
				StartOffset:  start,
				EndOffset:    stop,
				Type:         StructuralHeading,
				HeadingLevel: n.Level,
			})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			start, stop, ok := nodeSpan(node)
			if !ok {
				return ast.WalkContinue, nil
			}
			start, stop = expandFences(content, start, stop)
			hints = append(hints, StructuralHint{
				StartOffset: start,
				EndOffset:   stop,
				Type:        StructuralCodeBlock,
			})
		case *ast.ListItem:
			start, stop, ok := itemSpan(n)
			if !ok {
				return ast.WalkContinue, nil
			}
			hints = append(hints, StructuralHint{
				StartOffset: lineStart(content, start),
				EndOffset:   stop,
				Type:        StructuralListItem,
			})
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	hints = append(hints, tableHints(content)...)

	return normalizeHints(content, hints)
}

// nodeSpan returns the source span covered by a block node's lines.
func nodeSpan(node ast.Node) (int, int, bool) {
	lines := node.Lines()
	if lines.Len() == 0 {
		return 0, 0, false
	}
	start := lines.At(0).Start
	stop := lines.At(0).Stop
	for i := 1; i < lines.Len(); i++ {
		if seg := lines.At(i); seg.Stop > stop {
			stop = seg.Stop
		}
	}
	return start, stop, true
}

// itemSpan covers every block child of a list item, since the item node
// itself carries no lines.
func itemSpan(item *ast.ListItem) (int, int, bool) {
	start, stop := -1, -1
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		childStart, childStop, ok := nodeSpan(child)
		if !ok {
			continue
		}
		if start == -1 || childStart < start {
			start = childStart
		}
		if childStop > stop {
			stop = childStop
		}
	}
	if start == -1 {
		return 0, 0, false
	}
	return start, stop, true
}

// expandFences widens a fenced code block span to include the fence lines,
// which goldmark excludes from the block's lines.
func expandFences(content string, start, stop int) (int, int) {
	before := content[:start]
	if idx := strings.LastIndex(before, "```"); idx >= 0 && strings.TrimSpace(before[idx+3:]) == strings.TrimSpace(languageTag(before[idx+3:])) {
		start = lineStart(content, idx)
	}
	after := content[stop:]
	if idx := strings.Index(after, "```"); idx >= 0 {
		stop += idx + 3
	}
	return start, stop
}

// languageTag returns the text up to the first newline, i.e. the info string
// following an opening fence.
func languageTag(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func lineStart(content string, offset int) int {
	if idx := strings.LastIndexByte(content[:offset], '\n'); idx >= 0 {
		return idx + 1
	}
	return 0
}

// tableHints finds pipe tables by line scanning: a row line followed by a
// separator line opens a table that extends while rows keep their pipes.
// Goldmark parses tables only with an extension, so the scan keeps the hint
// derivation dependency-free of parser configuration.
func tableHints(content string) []StructuralHint {
	var hints []StructuralHint

	offset := 0
	lines := strings.SplitAfter(content, "\n")
	starts := make([]int, len(lines))
	for i, line := range lines {
		starts[i] = offset
		offset += len(line)
	}

	for i := 0; i < len(lines)-1; i++ {
		if !strings.Contains(lines[i], "|") {
			continue
		}
		if !tableSeparatorPattern.MatchString(strings.TrimRight(lines[i+1], "\n")) ||
			!strings.Contains(lines[i+1], "|") {
			continue
		}
		end := i + 2
		for end < len(lines) && strings.Contains(lines[end], "|") {
			end++
		}
		stop := len(content)
		if end < len(lines) {
			stop = starts[end]
		}
		hints = append(hints, StructuralHint{
			StartOffset: starts[i],
			EndOffset:   stop,
			Type:        StructuralTable,
		})
		i = end - 1
	}

	return hints
}
