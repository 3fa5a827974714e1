package chunker

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/metrics"
)

const (
	DefaultMaxChars = 1200
	DefaultMinChars = 200

	// How far back a forced split will look for a word boundary.
	wordBoundaryWindow = 100
)

var (
	headingPattern  = regexp.MustCompile(`(?i)\bItem\s+\d{1,2}[A-B]?\b`)
	blankPattern    = regexp.MustCompile(`\n[ \t]*\n`)
	sentencePattern = regexp.MustCompile(`[.!?]["')\]]*\s+`)
)

// Chunker cuts a filing's raw text into ordered, bounded chunks. Structural
// boundaries (headings, blank lines) are honored first; oversized blocks fall
// back to sentence splits, and tiny trailing fragments are folded into the
// previous chunk. A split point is never placed inside a currency or
// percentage expression.
type Chunker struct {
	maxChars int
	minChars int
	logger   *log.Logger
}

func New(maxChars, minChars int, logger *log.Logger) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if minChars <= 0 || minChars >= maxChars {
		minChars = DefaultMinChars
		if minChars >= maxChars {
			minChars = maxChars / 4
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Chunker{maxChars: maxChars, minChars: minChars, logger: logger}
}

type piece struct {
	start, end int
	block      int
}

// Chunk splits the filing text. An empty or whitespace-only filing yields no
// chunks; a filing shorter than the minimum yields exactly one. Each chunk's
// Text is the exact slice Filing.Text[StartOffset:EndOffset], so concatenating
// chunks in order reproduces the filing with only boundary whitespace dropped.
func (c *Chunker) Chunk(f filings.Filing) []filings.Chunk {
	text := f.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// A filing shorter than the minimum is one chunk no matter what internal
	// structure it has; block boundaries only matter once there is enough
	// text to split.
	start, end := 0, len(text)
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if end-start < c.minChars {
		return []filings.Chunk{{
			ID:          filings.ChunkID(f.ID, 0),
			FilingID:    f.ID,
			Index:       0,
			Text:        text[start:end],
			Section:     filings.SectionOther,
			StartOffset: start,
			EndOffset:   end,
		}}
	}

	guard := metrics.NumericSpans(text)

	var pieces []piece
	for blockIdx, block := range c.structuralBlocks(text) {
		split := c.splitBlock(text, block, guard)
		for i := range split {
			split[i].block = blockIdx
		}
		pieces = append(pieces, split...)
	}

	pieces = trimPieces(text, pieces)
	pieces = c.mergeSmall(pieces)

	chunks := make([]filings.Chunk, 0, len(pieces))
	for i, p := range pieces {
		if p.end-p.start > c.maxChars {
			c.logger.Printf("degraded chunk %s: length %d exceeds maximum %d (unsplittable figure)",
				filings.ChunkID(f.ID, i), p.end-p.start, c.maxChars)
		}
		chunks = append(chunks, filings.Chunk{
			ID:          filings.ChunkID(f.ID, i),
			FilingID:    f.ID,
			Index:       i,
			Text:        text[p.start:p.end],
			Section:     filings.SectionOther,
			StartOffset: p.start,
			EndOffset:   p.end,
		})
	}
	return chunks
}

// structuralBlocks cuts the text at heading markers and blank-line runs.
func (c *Chunker) structuralBlocks(text string) []piece {
	cuts := map[int]struct{}{0: {}, len(text): {}}
	for _, m := range headingPattern.FindAllStringIndex(text, -1) {
		cuts[m[0]] = struct{}{}
	}
	for _, m := range blankPattern.FindAllStringIndex(text, -1) {
		cuts[m[1]] = struct{}{}
	}

	positions := make([]int, 0, len(cuts))
	for pos := range cuts {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	blocks := make([]piece, 0, len(positions)-1)
	for i := 0; i+1 < len(positions); i++ {
		if positions[i] < positions[i+1] {
			blocks = append(blocks, piece{start: positions[i], end: positions[i+1]})
		}
	}
	return blocks
}

// splitBlock returns the block unchanged when it fits, otherwise splits it at
// sentence boundaries, force-splitting any single sentence longer than the
// maximum at a word boundary.
func (c *Chunker) splitBlock(text string, block piece, guard [][2]int) []piece {
	if block.end-block.start <= c.maxChars {
		return []piece{block}
	}

	segments := sentenceSegments(text, block)

	var out []piece
	current := piece{start: block.start, end: block.start}
	flush := func() {
		if current.end > current.start {
			out = append(out, current)
		}
	}

	for _, seg := range segments {
		if seg.end-seg.start > c.maxChars {
			flush()
			out = append(out, c.forceSplit(text, seg, guard)...)
			current = piece{start: seg.end, end: seg.end}
			continue
		}
		if seg.end-current.start > c.maxChars && current.end > current.start {
			flush()
			current = piece{start: seg.start, end: seg.start}
		}
		current.end = seg.end
	}
	flush()
	return out
}

// sentenceSegments cuts a block into consecutive sentence spans. The numeric
// guard applies in forceSplit, which is the only place cuts are invented
// rather than taken from punctuation.
func sentenceSegments(text string, block piece) []piece {
	content := text[block.start:block.end]
	var segments []piece
	prev := block.start
	for _, m := range sentencePattern.FindAllStringIndex(content, -1) {
		cut := block.start + m[1]
		if cut <= prev || cut >= block.end {
			continue
		}
		segments = append(segments, piece{start: prev, end: cut})
		prev = cut
	}
	if prev < block.end {
		segments = append(segments, piece{start: prev, end: block.end})
	}
	return segments
}

// forceSplit cuts an over-long sentence at word boundaries, pushing any cut
// that lands inside a numeric expression to the end of that expression.
func (c *Chunker) forceSplit(text string, seg piece, guard [][2]int) []piece {
	var out []piece
	pos := seg.start
	for pos < seg.end {
		if seg.end-pos <= c.maxChars {
			out = append(out, piece{start: pos, end: seg.end})
			break
		}

		cut := pos + c.maxChars
		for back := cut; back > cut-wordBoundaryWindow && back > pos; back-- {
			// Raw byte index is safe here: we only cut at ASCII whitespace.
			if ch := text[back]; ch == ' ' || ch == '\n' || ch == '\t' {
				cut = back
				break
			}
		}
		cut = pushPastNumeric(cut, guard)
		if cut <= pos {
			cut = pos + c.maxChars
			cut = pushPastNumeric(cut, guard)
		}
		if cut > seg.end {
			cut = seg.end
		}
		out = append(out, piece{start: pos, end: cut})
		pos = cut
	}
	return out
}

// pushPastNumeric moves a cut that would bisect a numeric expression to the
// nearest safe point after it.
func pushPastNumeric(cut int, guard [][2]int) int {
	for _, span := range guard {
		if cut > span[0] && cut < span[1] {
			return span[1]
		}
		if span[0] >= cut {
			break
		}
	}
	return cut
}

// trimPieces narrows each piece to drop boundary whitespace and discards
// pieces that were whitespace only.
func trimPieces(text string, pieces []piece) []piece {
	out := pieces[:0]
	for _, p := range pieces {
		for p.start < p.end && isSpace(text[p.start]) {
			p.start++
		}
		for p.end > p.start && isSpace(text[p.end-1]) {
			p.end--
		}
		if p.end > p.start {
			out = append(out, p)
		}
	}
	return out
}

// mergeSmall folds fragments shorter than the minimum into the previous
// piece when both come from the same structural block and the result still
// fits the maximum. Merging across a heading boundary would blur section
// labels, so block-initial fragments stay on their own.
func (c *Chunker) mergeSmall(pieces []piece) []piece {
	var out []piece
	for _, p := range pieces {
		if len(out) > 0 && p.end-p.start < c.minChars {
			prev := &out[len(out)-1]
			if prev.block == p.block && p.end-prev.start <= c.maxChars {
				prev.end = p.end
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
