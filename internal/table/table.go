// Package table assembles flattened records into rows and columns and
// writes them out as JSON, NDJSON, CSV or an SQLite table.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// ValueColumn holds records whose normalized form is not an object, such
// as a scalar root or an array that fell through unflattened.
const ValueColumn = "value"

// Table is an ordered set of rows. Its columns are the union of the keys
// of every row, in the order they were first seen.
type Table struct {
	columns []string
	seen    map[string]struct{}
	rows    []*models.Object
}

// New creates an empty Table.
func New() *Table {
	return &Table{seen: make(map[string]struct{})}
}

// Append adds a row. The table keeps the row; callers must not modify it
// afterwards.
func (t *Table) Append(row *models.Object) {
	for _, k := range row.Keys() {
		if _, ok := t.seen[k]; !ok {
			t.seen[k] = struct{}{}
			t.columns = append(t.columns, k)
		}
	}
	t.rows = append(t.rows, row)
}

// AppendValue adds a normalized record, wrapping anything that is not an
// object into a single ValueColumn cell. Null records are skipped.
func (t *Table) AppendValue(v models.Value) {
	if obj, ok := v.AsObject(); ok {
		t.Append(obj)
		return
	}
	if v.IsNull() {
		return
	}
	t.Append(models.ObjectOf(ValueColumn, v))
}

// Columns returns the column names in first-seen order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Rows returns the rows in insertion order.
func (t *Table) Rows() []*models.Object {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Case is a column naming style.
type Case string

const (
	CaseNone           Case = "none"
	CaseSnake          Case = "snake"
	CaseScreamingSnake Case = "screaming_snake"
	CaseCamel          Case = "camel"
	CaseLowerCamel     Case = "lower_camel"
	CaseKebab          Case = "kebab"
)

// Namer decides the output name of each column and which columns are left
// out.
type Namer struct {
	style Case
	cfg   *config.Config
}

// NewNamer creates a Namer that keeps every column under its own name.
func NewNamer() *Namer {
	return &Namer{style: CaseNone, cfg: config.NewConfig()}
}

// NewNamerWithConfig creates a Namer from the output section of cfg.
func NewNamerWithConfig(cfg *config.Config) (*Namer, error) {
	n := NewNamer()
	style := Case(strings.ToLower(cfg.Output.ColumnCase))
	switch style {
	case "", CaseNone:
		style = CaseNone
	case CaseSnake, CaseScreamingSnake, CaseCamel, CaseLowerCamel, CaseKebab:
	default:
		return nil, fmt.Errorf("%w: column case %q", errors.ErrUnsupportedFormat, cfg.Output.ColumnCase)
	}
	n.style = style
	n.cfg = cfg
	return n, nil
}

// Skip reports whether column is left out of the output.
func (n *Namer) Skip(column string) bool {
	return n.cfg.ShouldSkipColumn(column)
}

// Name returns the output name of column. Explicit mappings win over the
// case style.
func (n *Namer) Name(column string) string {
	if mapped, ok := n.cfg.GetColumnName(column); ok {
		return mapped
	}
	switch n.style {
	case CaseSnake:
		return strcase.ToSnake(column)
	case CaseScreamingSnake:
		return strcase.ToScreamingSnake(column)
	case CaseCamel:
		return strcase.ToCamel(column)
	case CaseLowerCamel:
		return strcase.ToLowerCamel(column)
	case CaseKebab:
		return strcase.ToKebab(column)
	default:
		return column
	}
}

// Layout maps the source columns of a table to unique output names.
type Layout struct {
	Sources []string
	Names   []string
}

// Layout resolves the output columns of t. When two columns end up with
// the same name the later one gets a numeric suffix, starting at _2.
func (n *Namer) Layout(t *Table) Layout {
	var layout Layout
	names := n.assigner()
	for _, c := range t.columns {
		name, ok := names.assign(c)
		if !ok {
			continue
		}
		layout.Sources = append(layout.Sources, c)
		layout.Names = append(layout.Names, name)
	}
	return layout
}

// columnNames hands out unique output names in the order source columns
// are first seen. A source keeps the name it was given for as long as
// the assigner lives.
type columnNames struct {
	namer    *Namer
	assigned map[string]string
	skipped  map[string]bool
	used     map[string]bool
}

func (n *Namer) assigner() *columnNames {
	return &columnNames{
		namer:    n,
		assigned: make(map[string]string),
		skipped:  make(map[string]bool),
		used:     make(map[string]bool),
	}
}

// assign returns the output name of source, or false when the column is
// skipped.
func (c *columnNames) assign(source string) (string, bool) {
	if name, ok := c.assigned[source]; ok {
		return name, true
	}
	if c.skipped[source] {
		return "", false
	}
	if c.namer.Skip(source) {
		c.skipped[source] = true
		return "", false
	}

	name := c.namer.Name(source)
	if c.used[name] {
		for i := 2; ; i++ {
			candidate := name + "_" + strconv.Itoa(i)
			if !c.used[candidate] {
				name = candidate
				break
			}
		}
	}
	c.used[name] = true
	c.assigned[source] = name
	return name, true
}

// rename builds the output object of row, assigning names to columns seen
// for the first time.
func (c *columnNames) rename(row *models.Object) *models.Object {
	out := models.NewObject()
	for k, v := range row.All() {
		if name, ok := c.assign(k); ok {
			out.Set(name, v)
		}
	}
	return out
}

// renameRow builds the output object of row under layout, leaving out
// columns the row does not have.
func renameRow(row *models.Object, layout Layout) *models.Object {
	out := models.NewObject()
	for i, src := range layout.Sources {
		if v, ok := row.Get(src); ok {
			out.Set(layout.Names[i], v)
		}
	}
	return out
}

// Cell renders a value as text for CSV output. Null is the empty string;
// arrays and objects are compact JSON.
func Cell(v models.Value) string {
	switch v.Kind() {
	case models.NullKind:
		return ""
	case models.BoolKind:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case models.NumberKind:
		n, _ := v.AsNumber()
		return n.String()
	case models.StringKind:
		s, _ := v.AsString()
		return s
	case models.ArrayKind, models.ObjectKind:
		return v.String()
	default:
		return ""
	}
}
