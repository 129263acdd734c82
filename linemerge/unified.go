package linemerge

// DiffLine is one line of a textual unified diff between two byte
// sequences, used by the conflict marker codec's "diff" marker style.
type DiffLine struct {
	// Prefix is ' ' (context), '-' (removed) or '+' (added).
	Prefix byte
	Text   []byte
}

// UnifiedDiffLines renders the line diff between a and b as a sequence
// of prefixed lines, the same shape conflict markers embed per hunk.
func UnifiedDiffLines(a, b []byte) []DiffLine {
	la, lb := splitLines(a), splitLines(b)
	ops := diffOps(la, lb)
	var out []DiffLine
	for _, o := range ops {
		switch o.kind {
		case opEqual:
			for i := o.aStart; i < o.aEnd; i++ {
				out = append(out, DiffLine{Prefix: ' ', Text: []byte(la[i])})
			}
		case opDelete:
			for i := o.aStart; i < o.aEnd; i++ {
				out = append(out, DiffLine{Prefix: '-', Text: []byte(la[i])})
			}
		case opInsert:
			for j := o.bStart; j < o.bEnd; j++ {
				out = append(out, DiffLine{Prefix: '+', Text: []byte(lb[j])})
			}
		case opReplace:
			for i := o.aStart; i < o.aEnd; i++ {
				out = append(out, DiffLine{Prefix: '-', Text: []byte(la[i])})
			}
			for j := o.bStart; j < o.bEnd; j++ {
				out = append(out, DiffLine{Prefix: '+', Text: []byte(lb[j])})
			}
		}
	}
	return out
}

// DiffCost is a cheap size estimate of the diff between a and b: the
// number of changed (non-context) lines. The marker codec uses this to
// pick, for each removed side, which surviving add makes the smallest
// diff to display.
func DiffCost(a, b []byte) int {
	cost := 0
	for _, l := range UnifiedDiffLines(a, b) {
		if l.Prefix != ' ' {
			cost++
		}
	}
	return cost
}
