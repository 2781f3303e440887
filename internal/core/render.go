package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderItem formats a DiffItem for plan output: the action header plus one
// indented line per field change. Scalar changes render inline; list-valued
// and multi-line changes render as a line diff so long member lists stay
// readable.
func RenderItem(item DiffItem) string {
	var b strings.Builder
	b.WriteString(item.Describe())
	for _, c := range item.Changes {
		if old, want, ok := diffLines(c.Old, c.New); ok {
			b.WriteString(fmt.Sprintf("\n    - %s:\n", c.Field))
			b.WriteString(strings.TrimSuffix(indent(GenerateDiff(old, want), "        "), "\n"))
			continue
		}
		b.WriteString(fmt.Sprintf("\n    - %s: '%s' -> '%s'", c.Field, c.Old, c.New))
	}
	return b.String()
}

// diffLines converts a field change to one-element-per-line form when both
// sides are worth a line diff: either side multi-line, or both sides in the
// bracketed "[a, b]" list form set-valued fields render as.
func diffLines(old, want string) (string, string, bool) {
	if strings.Contains(old, "\n") || strings.Contains(want, "\n") {
		return withTrailingNewline(old), withTrailingNewline(want), true
	}
	if listValue(old) && listValue(want) {
		return listMembers(old), listMembers(want), true
	}
	return "", "", false
}

func listValue(v string) bool {
	return strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")
}

func listMembers(v string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	if inner == "" {
		return ""
	}
	return strings.Join(strings.Split(inner, ", "), "\n") + "\n"
}

func withTrailingNewline(v string) string {
	if v == "" || strings.HasSuffix(v, "\n") {
		return v
	}
	return v + "\n"
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}

// GenerateDiff produces a line-level unified-style diff between two multi-line
// values. Used when a changed field is too large for the inline old -> new form.
func GenerateDiff(current, desired string) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(current, desired)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buff bytes.Buffer
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			prefix = "  "
		}
		for _, line := range strings.Split(d.Text, "\n") {
			if line == "" {
				continue
			}
			buff.WriteString(prefix + line + "\n")
		}
	}
	return buff.String()
}
