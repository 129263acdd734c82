package conflict

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sigilvc/sigil/linemerge"
	"github.com/sigilvc/sigil/merge"
)

// Materialize implements §4.3's algorithm: run the line-level merge
// (linemerge.Merge); if it resolves, emit the resolved bytes; otherwise
// render each unresolved hunk as a marker block in the chosen style,
// concatenated with the surrounding matching text.
func Materialize(m merge.Merge[[]byte], style Style) []byte {
	res := linemerge.Merge(m)
	if res.Resolved {
		return res.Bytes
	}
	var buf bytes.Buffer
	for _, seg := range res.Segments {
		if seg.Matching {
			buf.Write(seg.Bytes)
			continue
		}
		buf.Write(renderHunk(seg.Hunk, style))
	}
	out := buf.Bytes()
	if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out
}

func renderHunk(h merge.Merge[[]byte], style Style) []byte {
	if style == StyleGit && h.NumRemoves() == 1 {
		return renderGit(h)
	}
	if style == StyleDiff3 && h.NumRemoves() == 1 {
		return renderDiff3(h)
	}
	if style == StyleSnapshot {
		return renderSnapshot(h)
	}
	return renderDiff(h)
}

func renderGit(h merge.Merge[[]byte]) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, markerStart)
	buf.Write(ensureNL(h.Adds()[0]))
	fmt.Fprintln(&buf, markerSep)
	buf.Write(ensureNL(h.Adds()[1]))
	fmt.Fprintln(&buf, markerEnd)
	return buf.Bytes()
}

func renderDiff3(h merge.Merge[[]byte]) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, markerStart)
	buf.Write(ensureNL(h.Adds()[0]))
	fmt.Fprintln(&buf, markerBase)
	buf.Write(ensureNL(h.Removes()[0]))
	fmt.Fprintln(&buf, markerSep)
	buf.Write(ensureNL(h.Adds()[1]))
	fmt.Fprintln(&buf, markerEnd)
	return buf.Bytes()
}

func renderSnapshot(h merge.Merge[[]byte]) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, markerStart)
	for i, r := range h.Removes() {
		fmt.Fprintf(&buf, "%s Contents of base #%d\n", markerRemove, i+1)
		buf.Write(ensureNL(r))
	}
	for j, a := range h.Adds() {
		fmt.Fprintf(&buf, "%s Contents of side #%d\n", markerAdd, j+1)
		buf.Write(ensureNL(a))
	}
	fmt.Fprintln(&buf, markerEnd)
	return buf.Bytes()
}

// renderDiff pairs each remove with whichever not-yet-used add minimizes
// the line diff against it, emitting a %%%%%%% diff block per pair. The
// arithmetic invariant |adds| = |removes| + 1 guarantees exactly one add
// is always left over; it is emitted as a plain snapshot.
func renderDiff(h merge.Merge[[]byte]) []byte {
	adds := h.Adds()
	used := make([]bool, len(adds))
	var buf bytes.Buffer
	fmt.Fprintln(&buf, markerStart)
	for _, r := range h.Removes() {
		best, bestCost := -1, -1
		for j, a := range adds {
			if used[j] {
				continue
			}
			cost := linemerge.DiffCost(r, a)
			if best == -1 || cost < bestCost {
				best, bestCost = j, cost
			}
		}
		used[best] = true
		fmt.Fprintf(&buf, "%s Changes from base to side #%d\n", markerDiff, best+1)
		for _, l := range linemerge.UnifiedDiffLines(r, adds[best]) {
			buf.WriteByte(l.Prefix)
			buf.Write(l.Text)
			if len(l.Text) == 0 || l.Text[len(l.Text)-1] != '\n' {
				buf.WriteByte('\n')
			}
		}
	}
	for j, a := range adds {
		if used[j] {
			continue
		}
		fmt.Fprintln(&buf, markerAdd)
		buf.Write(ensureNL(a))
	}
	fmt.Fprintln(&buf, markerEnd)
	return buf.Bytes()
}

func ensureNL(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	out := make([]byte, len(b)+1)
	copy(out, b)
	out[len(b)] = '\n'
	return out
}

// Parse is the inverse of Materialize. It is arity-aware: a block is only
// accepted as a conflict if it yields exactly numRemoves removes and
// numAdds adds. Anything else — no markers at all, an unterminated
// marker, or a block whose arity doesn't match — makes Parse treat the
// entire input as plain resolved text and report ok=false, so stray
// marker-like lines in an ordinary file never corrupt a parse. The one
// exception is marker-free input parsed with numRemoves == 0 and
// numAdds == 1: that is returned as the resolved value with ok=true.
//
// Git-style blocks cannot be parsed back into a Merge: by design they
// never encode the base, so there is nothing to reconstruct the removed
// side from. Parse treats them as unparseable the same way, the way a
// real git merge driver treats manually edited conflict markers as final
// text rather than something to re-derive structure from.
func Parse(data []byte, numRemoves, numAdds int) (merge.Merge[[]byte], bool) {
	lines := splitKeepNL(data)

	removeBufs := make([]bytes.Buffer, numRemoves)
	addBufs := make([]bytes.Buffer, numAdds)
	writeAll := func(s string) {
		for i := range removeBufs {
			removeBufs[i].WriteString(s)
		}
		for i := range addBufs {
			addBufs[i].WriteString(s)
		}
	}

	i := 0
	foundBlock := false
	for i < len(lines) {
		if strings.TrimRight(lines[i], "\n") != markerStart {
			writeAll(lines[i])
			i++
			continue
		}
		start := i
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimRight(lines[j], "\n") == markerEnd {
				end = j
				break
			}
		}
		if end == -1 {
			return merge.Resolved(data), false
		}
		blockRemoves, blockAdds, ok := parseBlock(lines[start+1 : end])
		if !ok || len(blockRemoves) != numRemoves || len(blockAdds) != numAdds {
			return merge.Resolved(data), false
		}
		foundBlock = true
		for k, r := range blockRemoves {
			removeBufs[k].Write(r)
		}
		for k, a := range blockAdds {
			addBufs[k].Write(a)
		}
		i = end + 1
	}
	if !foundBlock {
		if numRemoves == 0 && numAdds == 1 {
			return merge.Resolved(data), true
		}
		return merge.Resolved(data), false
	}
	removes := make([][]byte, numRemoves)
	for i := range removeBufs {
		removes[i] = removeBufs[i].Bytes()
	}
	adds := make([][]byte, numAdds)
	for i := range addBufs {
		adds[i] = addBufs[i].Bytes()
	}
	return merge.New(adds, removes), true
}

// parseBlock interprets the inside of one <<<<<<< ... >>>>>>> block,
// auto-detecting which style produced it.
func parseBlock(lines []string) (removes, adds [][]byte, ok bool) {
	if len(lines) == 0 {
		return nil, nil, false
	}
	for _, l := range lines {
		if strings.TrimRight(l, "\n") == markerBase {
			return parseDiff3(lines)
		}
	}
	hasDiff, hasSnapshot, hasSep := false, false, false
	for _, l := range lines {
		t := strings.TrimRight(l, "\n")
		switch {
		case strings.HasPrefix(t, markerDiff):
			hasDiff = true
		case strings.HasPrefix(t, markerAdd), strings.HasPrefix(t, markerRemove):
			hasSnapshot = true
		case t == markerSep:
			hasSep = true
		}
	}
	switch {
	case hasDiff || (hasSnapshot && !hasSep):
		return parseDiffStyle(lines)
	case hasSep && !hasDiff:
		return nil, nil, false // git style: not reconstructible, see Parse's doc comment
	default:
		return nil, nil, false
	}
}

func parseDiff3(lines []string) (removes, adds [][]byte, ok bool) {
	// lines[0] is the first add (ours), up to |||||||, then base, then
	// =======, then the second add (theirs).
	var add1, base, add2 bytes.Buffer
	state := 0
	for _, l := range lines {
		t := strings.TrimRight(l, "\n")
		switch {
		case t == markerBase:
			state = 1
			continue
		case t == markerSep:
			state = 2
			continue
		}
		switch state {
		case 0:
			add1.WriteString(l)
		case 1:
			base.WriteString(l)
		case 2:
			add2.WriteString(l)
		}
	}
	return [][]byte{base.Bytes()}, [][]byte{add1.Bytes(), add2.Bytes()}, true
}

func parseDiffStyle(lines []string) (removes, adds [][]byte, ok bool) {
	i := 0
	for i < len(lines) {
		t := strings.TrimRight(lines[i], "\n")
		switch {
		case strings.HasPrefix(t, markerDiff):
			i++
			var rm, ad bytes.Buffer
			for i < len(lines) {
				tt := strings.TrimRight(lines[i], "\n")
				if strings.HasPrefix(tt, markerDiff) || strings.HasPrefix(tt, markerAdd) || strings.HasPrefix(tt, markerRemove) {
					break
				}
				if len(lines[i]) == 0 {
					i++
					continue
				}
				switch lines[i][0] {
				case '-':
					rm.WriteString(lines[i][1:])
				case '+':
					ad.WriteString(lines[i][1:])
				case ' ':
					rm.WriteString(lines[i][1:])
					ad.WriteString(lines[i][1:])
				default:
					rm.WriteString(lines[i])
					ad.WriteString(lines[i])
				}
				i++
			}
			removes = append(removes, rm.Bytes())
			adds = append(adds, ad.Bytes())
		case strings.HasPrefix(t, markerAdd):
			i++
			var content bytes.Buffer
			for i < len(lines) {
				tt := strings.TrimRight(lines[i], "\n")
				if strings.HasPrefix(tt, markerDiff) || strings.HasPrefix(tt, markerAdd) || strings.HasPrefix(tt, markerRemove) {
					break
				}
				content.WriteString(lines[i])
				i++
			}
			adds = append(adds, content.Bytes())
		case strings.HasPrefix(t, markerRemove):
			i++
			var content bytes.Buffer
			for i < len(lines) {
				tt := strings.TrimRight(lines[i], "\n")
				if strings.HasPrefix(tt, markerDiff) || strings.HasPrefix(tt, markerAdd) || strings.HasPrefix(tt, markerRemove) {
					break
				}
				content.WriteString(lines[i])
				i++
			}
			removes = append(removes, content.Bytes())
		default:
			i++
		}
	}
	return removes, adds, true
}

func splitKeepNL(data []byte) []string {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			lines = append(lines, string(data[start:i+1]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
