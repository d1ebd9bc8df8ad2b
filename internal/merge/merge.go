// Package merge reconciles the columns of a flat mapping produced by the
// normalizers. ByIndex transposes equal-length array columns into one
// column of aligned groups; Simple unions columns into one deduplicated
// array.
//
// Both merges work on a copy: the caller's mapping is never modified, and
// a failed merge returns no partial result.
package merge

import (
	"fmt"
	"strings"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// Rule merges Columns into a new column called Name.
type Rule struct {
	Name    string
	Columns []string
}

// Spec is an ordered list of rules, applied one after the other.
type Spec []Rule

// SpecFromConfig converts configured merge rules into a Spec.
func SpecFromConfig(rules []config.MergeRule) Spec {
	spec := make(Spec, 0, len(rules))
	for _, r := range rules {
		spec = append(spec, Rule{Name: r.Name, Columns: append([]string(nil), r.Columns...)})
	}
	return spec
}

// ParseRule parses a rule written as "name=col1,col2".
func ParseRule(s string) (Rule, error) {
	name, cols, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Rule{}, fmt.Errorf("%w: %q (expected name=col1,col2)", errors.ErrInvalidMergeRule, s)
	}

	var columns []string
	for _, c := range strings.Split(cols, ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}
	if len(columns) == 0 {
		return Rule{}, fmt.Errorf("%w: %q lists no columns", errors.ErrInvalidMergeRule, s)
	}
	return Rule{Name: name, Columns: columns}, nil
}

// ToConfig converts a rule into its configuration form.
func (r Rule) ToConfig() config.MergeRule {
	return config.MergeRule{Name: r.Name, Columns: append([]string(nil), r.Columns...)}
}

// present returns the columns of r found in m, in rule order.
func (r Rule) present(m *models.Object) []string {
	var found []string
	for _, c := range r.Columns {
		if m.Has(c) {
			found = append(found, c)
		}
	}
	return found
}

// ByIndex merges several columns of m into one, per rule:
//
//   - when every present column holds an array, the arrays must be of
//     equal length and are transposed into an array of groups, where
//     group j holds element j of each column;
//   - when every present column holds a string, the result is a single
//     group holding those strings;
//   - any other combination fails with ErrInconsistentColumnType.
//
// Arrays of unequal length fail with ErrUnevenLength. Every listed column
// is removed from the result whether or not it was present; a rule with
// no present columns creates no new column.
func ByIndex(m *models.Object, spec Spec) (*models.Object, error) {
	out := m.Clone()
	for _, rule := range spec {
		cols := rule.present(out)
		if len(cols) > 0 {
			merged, err := transpose(out, rule.Name, cols)
			if err != nil {
				return nil, err
			}
			out.Set(rule.Name, merged)
		}
		for _, c := range rule.Columns {
			out.Delete(c)
		}
	}
	return out, nil
}

func transpose(m *models.Object, name string, cols []string) (models.Value, error) {
	values := make([]models.Value, len(cols))
	for i, c := range cols {
		values[i], _ = m.Get(c)
	}

	switch {
	case allKind(values, models.ArrayKind):
		length := values[0].Len()
		for i, v := range values[1:] {
			if v.Len() != length {
				return models.Value{}, fmt.Errorf("%w: merging %q: column %q has %d elements, column %q has %d",
					errors.ErrUnevenLength, name, cols[0], length, cols[i+1], v.Len())
			}
		}
		groups := make([]models.Value, length)
		for j := range groups {
			group := make([]models.Value, len(values))
			for i, v := range values {
				items, _ := v.AsArray()
				group[i] = items[j]
			}
			groups[j] = models.Array(group...)
		}
		return models.Array(groups...), nil

	case allKind(values, models.StringKind):
		return models.Array(models.Array(values...)), nil

	default:
		kinds := make([]string, len(values))
		for i, v := range values {
			kinds[i] = cols[i] + ":" + v.Kind().String()
		}
		return models.Value{}, fmt.Errorf("%w: merging %q: %s",
			errors.ErrInconsistentColumnType, name, strings.Join(kinds, ", "))
	}
}

// Simple merges several columns of m into one array per rule. Array
// columns contribute their elements and other columns their value, in
// rule order; a value equal to one already collected is dropped. Every
// listed column is removed from the result.
func Simple(m *models.Object, spec Spec) *models.Object {
	out := m.Clone()
	for _, rule := range spec {
		cols := rule.present(out)
		if len(cols) > 0 {
			var union []models.Value
			for _, c := range cols {
				v, _ := out.Get(c)
				if items, ok := v.AsArray(); ok {
					for _, item := range items {
						union = appendUnique(union, item)
					}
					continue
				}
				union = appendUnique(union, v)
			}
			out.Set(rule.Name, models.Array(union...))
		}
		for _, c := range rule.Columns {
			out.Delete(c)
		}
	}
	return out
}

func appendUnique(list []models.Value, v models.Value) []models.Value {
	for _, existing := range list {
		if existing.Equal(v) {
			return list
		}
	}
	return append(list, v)
}

func allKind(values []models.Value, kind models.Kind) bool {
	for _, v := range values {
		if v.Kind() != kind {
			return false
		}
	}
	return true
}
