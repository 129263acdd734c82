package linemerge

import (
	"bytes"

	"github.com/sigilvc/sigil/merge"
)

// Segment is one piece of a line-merge result: either a run of bytes
// every side agreed on, or a conflicted Hunk carrying the per-side slice
// that disagreed.
type Segment struct {
	Matching bool
	Bytes    []byte
	Hunk     merge.Merge[[]byte]
}

// Result is the outcome of Merge: either a single resolved byte stream,
// or an ordered sequence of matching/conflicted segments whose
// concatenation (with conflicted segments rendered as marker blocks by
// package conflict) reproduces a complete file.
type Result struct {
	Resolved bool
	Bytes    []byte
	Segments []Segment
}

// Merge performs the line-level merge described for a Merge<bytes>. For
// the two-sided case (one base, two sides — every concrete scenario this
// engine's conflict markers are tested against) it produces fully
// hunk-granular output via a classic three-way line diff. For
// higher-arity input (two or more removes, which only arises from
// flattening nested conflicts that Simplify could not fully cancel) it
// falls back to a single whole-file conflicted segment: still a valid
// Conflict([hunks]) per term, just coarser than line granularity.
func Merge(m merge.Merge[[]byte]) Result {
	if v, ok := m.IntoResolved(); ok {
		return Result{Resolved: true, Bytes: v}
	}
	if m.NumRemoves() == 1 {
		return mergeTwoSided(m.Removes()[0], m.Adds()[0], m.Adds()[1])
	}
	return Result{Segments: []Segment{{Hunk: m}}}
}

func mergeTwoSided(base, side1, side2 []byte) Result {
	baseLines := splitLines(base)
	side1Lines := splitLines(side1)
	side2Lines := splitLines(side2)

	ops1 := diffOps(baseLines, side1Lines)
	ops2 := diffOps(baseLines, side2Lines)

	anchor := make([]bool, len(baseLines))
	blocks1 := equalBlocksOf(ops1)
	blocks2 := equalBlocksOf(ops2)
	cover1 := coverage(blocks1, len(baseLines))
	cover2 := coverage(blocks2, len(baseLines))
	for i := range anchor {
		anchor[i] = cover1[i] && cover2[i]
	}

	// touches reports whether base boundary p lies on or inside one of
	// blocks, i.e. whether that side is aligned with base at p. A run of
	// non-anchor lines is split wherever both sides are aligned, so edits
	// to adjacent lines made on different sides land in separate hunks.
	touches := func(p int, blocks []equalBlock) bool {
		for _, b := range blocks {
			if p >= b.aStart && p <= b.aEnd {
				return true
			}
		}
		return false
	}

	var segments []Segment
	allResolved := true
	pos := 0
	n := len(baseLines)
	for pos < n {
		if anchor[pos] {
			start := pos
			for pos < n && anchor[pos] {
				pos++
			}
			segments = append(segments, Segment{Matching: true, Bytes: joinLines(baseLines[start:pos])})
			continue
		}
		start := pos
		pos++
		for pos < n && !anchor[pos] && !(touches(pos, blocks1) && touches(pos, blocks2)) {
			pos++
		}
		end := pos
		baseSlice := joinLines(baseLines[start:end])
		s1 := joinLines(side1Lines[mapPos(start, blocks1, len(side1Lines)):mapPos(end, blocks1, len(side1Lines))])
		s2 := joinLines(side2Lines[mapPos(start, blocks2, len(side2Lines)):mapPos(end, blocks2, len(side2Lines))])
		hunk := merge.New([][]byte{s1, s2}, [][]byte{baseSlice})
		resolvedHunk := resolveHunk(hunk)
		if v, ok := resolvedHunk.IntoResolved(); ok {
			segments = append(segments, Segment{Matching: true, Bytes: v})
		} else {
			allResolved = false
			segments = append(segments, Segment{Hunk: resolvedHunk})
		}
	}
	if len(baseLines) == 0 {
		// Degenerate base (e.g. both sides add content with an empty
		// common ancestor): the whole thing is one hunk.
		if bytes.Equal(side1, side2) {
			segments = []Segment{{Matching: true, Bytes: side1}}
		} else {
			hunk := merge.New([][]byte{side1, side2}, [][]byte{base})
			resolvedHunk := resolveHunk(hunk)
			if v, ok := resolvedHunk.IntoResolved(); ok {
				segments = []Segment{{Matching: true, Bytes: v}}
			} else {
				allResolved = false
				segments = []Segment{{Hunk: resolvedHunk}}
			}
		}
	}

	if allResolved {
		var out []byte
		for _, seg := range segments {
			out = append(out, seg.Bytes...)
		}
		return Result{Resolved: true, Bytes: out}
	}
	return Result{Segments: segments}
}

// resolveHunk applies step 3 of the line-merge algorithm: cancel
// (remove, add) pairs by byte equality, leaving a resolution if exactly
// one add survives. merge.Simplify requires a comparable type parameter,
// which []byte is not, so the hunk is round-tripped through string.
func resolveHunk(h merge.Merge[[]byte]) merge.Merge[[]byte] {
	asStrings := merge.Map(h, func(b []byte) string { return string(b) })
	simplified := merge.Simplify(asStrings)
	return merge.Map(simplified, func(s string) []byte { return []byte(s) })
}

type equalBlock struct {
	aStart, aEnd, bStart int
}

func equalBlocksOf(ops []op) []equalBlock {
	var blocks []equalBlock
	for _, o := range ops {
		if o.kind == opEqual {
			blocks = append(blocks, equalBlock{aStart: o.aStart, aEnd: o.aEnd, bStart: o.bStart})
		}
	}
	return blocks
}

func coverage(blocks []equalBlock, n int) []bool {
	cov := make([]bool, n)
	for _, b := range blocks {
		for i := b.aStart; i < b.aEnd; i++ {
			cov[i] = true
		}
	}
	return cov
}

// mapPos maps a base-line boundary position to the corresponding
// position in the side sequence, using whichever equal block covers it.
// pos is guaranteed by the caller to either be 0, n, or interior/edge of
// some block in blocks.
func mapPos(pos int, blocks []equalBlock, sideLen int) int {
	if pos == 0 {
		return 0
	}
	for _, b := range blocks {
		if pos >= b.aStart && pos <= b.aEnd {
			return b.bStart + (pos - b.aStart)
		}
	}
	return sideLen
}
