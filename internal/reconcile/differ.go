package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/melih-ucgun/warden/internal/core"
)

// FieldType declares how a field's values compare.
type FieldType int

const (
	// FieldScalar compares by string equality.
	FieldScalar FieldType = iota
	// FieldNumeric compares numerically, whatever the wire representation.
	FieldNumeric
	// FieldStringSet compares list values order-insensitively.
	FieldStringSet
)

// FieldSpec declares one comparable field of a kind.
type FieldSpec struct {
	Name string
	Type FieldType
}

// Schema is the static set of comparable fields for one kind. Fields not in
// the schema never participate in drift comparison: that is where secret
// fields and server-assigned fields (creation time, owner, example flags)
// are excluded.
type Schema []FieldSpec

func (s Schema) spec(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// DiffFields compares the desired field map against a live one, restricted
// to schema-declared fields that are present in desired. Returns the ordered
// field changes, schema order.
func DiffFields(schema Schema, desired, live map[string]any) []core.FieldChange {
	var changes []core.FieldChange
	for _, spec := range schema {
		want, ok := desired[spec.Name]
		if !ok {
			continue
		}
		got, exists := live[spec.Name]
		if exists && fieldEqual(spec.Type, want, got) {
			continue
		}
		changes = append(changes, core.FieldChange{
			Field: spec.Name,
			Old:   displayValue(got),
			New:   displayValue(want),
		})
	}
	return changes
}

func fieldEqual(t FieldType, want, got any) bool {
	switch t {
	case FieldNumeric:
		w, wok := asFloat(want)
		g, gok := asFloat(got)
		if wok && gok {
			return w == g
		}
		return displayValue(want) == displayValue(got)
	case FieldStringSet:
		return stringSetEqual(asStringSlice(want), asStringSlice(got))
	default:
		return displayValue(want) == displayValue(got)
	}
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, displayValue(item))
		}
		return out
	case nil:
		return nil
	default:
		return []string{displayValue(v)}
	}
}

// displayValue renders any field value the way plan output shows it.
func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	case []any:
		return "[" + strings.Join(asStringSlice(val), ", ") + "]"
	case float64:
		// yaml and json both hand integers over as float64
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sortedCopy returns a sorted copy, leaving the input alone.
func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
