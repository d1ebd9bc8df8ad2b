package table

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mcncl/jsonflat/internal/models"
)

// DefaultSQLiteTable is used when no table name is configured.
const DefaultSQLiteTable = "records"

// WriteSQLite stores the rows of t in table name of the SQLite database at
// path. The table is created when missing and gains a column for every
// output column it lacks; existing rows are kept. All rows are inserted
// in one transaction.
func WriteSQLite(ctx context.Context, path, name string, t *Table, namer *Namer) error {
	if name == "" {
		name = DefaultSQLiteTable
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	layout := namer.Layout(t)
	if err := ensureTable(ctx, db, name, layout.Names, columnTypes(t, layout)); err != nil {
		return err
	}
	if len(layout.Names) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quoted := make([]string, len(layout.Names))
	for i, n := range layout.Names {
		quoted[i] = quoteIdent(n)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(layout.Sources))
	for i, row := range t.Rows() {
		for j, src := range layout.Sources {
			v, _ := row.Get(src)
			args[j] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rows: %w", err)
	}
	return nil
}

func ensureTable(ctx context.Context, db *sql.DB, name string, columns, types []string) error {
	existing, err := tableColumns(ctx, db, name)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		defs := make([]string, len(columns))
		for i, c := range columns {
			defs[i] = quoteIdent(c) + " " + types[i]
		}
		if len(defs) == 0 {
			defs = []string{quoteIdent(ValueColumn) + " TEXT"}
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", name, err)
		}
		return nil
	}

	for i, c := range columns {
		if _, ok := existing[c]; ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(name), quoteIdent(c), types[i])
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", c, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, name string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", name, err)
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("reading table %s: %w", name, err)
		}
		columns[colName] = struct{}{}
	}
	return columns, rows.Err()
}

// columnTypes picks an SQLite type per output column from the values the
// rows hold: INTEGER for integers and booleans, REAL for other numbers and
// TEXT for everything else.
func columnTypes(t *Table, layout Layout) []string {
	types := make([]string, len(layout.Sources))
	for i, src := range layout.Sources {
		kind := ""
		for _, row := range t.Rows() {
			v, ok := row.Get(src)
			if !ok || v.IsNull() {
				continue
			}
			kind = widen(kind, sqlType(v))
		}
		if kind == "" {
			kind = "TEXT"
		}
		types[i] = kind
	}
	return types
}

func sqlType(v models.Value) string {
	switch v.Kind() {
	case models.BoolKind:
		return "INTEGER"
	case models.NumberKind:
		n, _ := v.AsNumber()
		if _, err := n.Int64(); err == nil {
			return "INTEGER"
		}
		return "REAL"
	default:
		return "TEXT"
	}
}

func widen(current, next string) string {
	switch {
	case current == "" || current == next:
		return next
	case current == "TEXT" || next == "TEXT":
		return "TEXT"
	default:
		// INTEGER and REAL mix
		return "REAL"
	}
}

func sqlValue(v models.Value) any {
	switch v.Kind() {
	case models.NullKind:
		return nil
	case models.BoolKind:
		b, _ := v.AsBool()
		if b {
			return int64(1)
		}
		return int64(0)
	case models.NumberKind:
		n, _ := v.AsNumber()
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return f
		}
		return n.String()
	default:
		return Cell(v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
