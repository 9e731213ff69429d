package ingest

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines kept around each change in
// the rendered diff.
const contextLines = 3

type lineKind int

const (
	lineEqual lineKind = iota
	lineDelete
	lineInsert
)

type lineOp struct {
	kind lineKind
	text string
}

// Unified computes a unified line-level diff between two texts: hunks with
// @@ headers, prefixed -/+/space lines, three lines of context. Identical
// inputs yield an empty string.
//
// The computation runs diffmatchpatch in line mode (DiffLinesToChars →
// DiffMain → DiffCharsToLines) so operations never split mid-line.
func Unified(oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := toLineOps(diffs)
	return renderHunks(ops)
}

// toLineOps flattens diffmatchpatch output into one operation per line.
func toLineOps(diffs []diffmatchpatch.Diff) []lineOp {
	var ops []lineOp
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		// A chunk ending in "\n" splits into a trailing empty element that
		// is not a line of its own.
		if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(d.Text, "\n") {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, lineOp{lineEqual, line})
			case diffmatchpatch.DiffDelete:
				ops = append(ops, lineOp{lineDelete, line})
			case diffmatchpatch.DiffInsert:
				ops = append(ops, lineOp{lineInsert, line})
			}
		}
	}
	return ops
}

// renderHunks groups operations into context-bounded hunks and renders the
// unified text.
func renderHunks(ops []lineOp) string {
	// Indexes of non-equal operations.
	var changed []int
	for i, op := range ops {
		if op.kind != lineEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return ""
	}

	var sb strings.Builder

	// Walk changes, merging those whose context windows touch into one hunk.
	i := 0
	oldLine, newLine := 1, 1
	pos := 0 // current index into ops, with oldLine/newLine tracking it

	advanceTo := func(target int) {
		for ; pos < target; pos++ {
			switch ops[pos].kind {
			case lineEqual:
				oldLine++
				newLine++
			case lineDelete:
				oldLine++
			case lineInsert:
				newLine++
			}
		}
	}

	for i < len(changed) {
		start := changed[i] - contextLines
		if start < 0 {
			start = 0
		}
		end := changed[i] + contextLines

		// Extend the hunk while the next change is within reach.
		j := i + 1
		for j < len(changed) && changed[j]-contextLines <= end+1 {
			end = changed[j] + contextLines
			j++
		}
		if end >= len(ops) {
			end = len(ops) - 1
		}

		advanceTo(start)
		hunkOldStart, hunkNewStart := oldLine, newLine

		var oldCount, newCount int
		var body strings.Builder
		for ; pos <= end; pos++ {
			op := ops[pos]
			switch op.kind {
			case lineEqual:
				body.WriteString(" " + op.text + "\n")
				oldLine++
				newLine++
				oldCount++
				newCount++
			case lineDelete:
				body.WriteString("-" + op.text + "\n")
				oldLine++
				oldCount++
			case lineInsert:
				body.WriteString("+" + op.text + "\n")
				newLine++
				newCount++
			}
		}

		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", hunkOldStart, oldCount, hunkNewStart, newCount)
		sb.WriteString(body.String())

		i = j
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
