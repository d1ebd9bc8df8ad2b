package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat converts a format name into a Format. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatNDJSON, "jsonl":
		return FormatNDJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatSQLite, "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: output format %q", errors.ErrUnsupportedFormat, s)
	}
}

// WriteJSON writes the table as an indented JSON array of objects. Each
// object holds only the columns its row has.
func WriteJSON(w io.Writer, t *Table, namer *Namer) error {
	layout := namer.Layout(t)

	var raw bytes.Buffer
	raw.WriteByte('[')
	for i, row := range t.Rows() {
		if i > 0 {
			raw.WriteByte(',')
		}
		data, err := renameRow(row, layout).MarshalJSON()
		if err != nil {
			return err
		}
		raw.Write(data)
	}
	raw.WriteByte(']')

	var out bytes.Buffer
	if err := gojson.Indent(&out, raw.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("failed to indent JSON: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

// WriteNDJSON writes one compact JSON object per row.
func WriteNDJSON(w io.Writer, t *Table, namer *Namer) error {
	layout := namer.Layout(t)
	for _, row := range t.Rows() {
		if err := writeLine(w, renameRow(row, layout)); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, row *models.Object) error {
	data, err := row.MarshalJSON()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteCSV writes a header of every column followed by one line per row.
// Cells a row does not have are left empty.
func WriteCSV(w io.Writer, t *Table, namer *Namer) error {
	layout := namer.Layout(t)
	cw := csv.NewWriter(w)

	if err := cw.Write(layout.Names); err != nil {
		return err
	}
	record := make([]string, len(layout.Sources))
	for _, row := range t.Rows() {
		for i, src := range layout.Sources {
			v, _ := row.Get(src)
			record[i] = Cell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sink receives normalized records one at a time.
type Sink interface {
	Append(v models.Value) error
	Close() error
}

// SinkOptions configures NewSink.
type SinkOptions struct {
	Format Format
	Writer io.Writer
	// Path is the database file for FormatSQLite.
	Path string
	// Table is the SQLite table name.
	Table string
	Namer *Namer
}

// NewSink creates the sink for opts.Format. NDJSON rows are written as
// soon as they arrive; every other format needs the full column set and
// is written on Close.
func NewSink(ctx context.Context, opts SinkOptions) (Sink, error) {
	namer := opts.Namer
	if namer == nil {
		namer = NewNamer()
	}

	switch opts.Format {
	case FormatNDJSON:
		return &streamSink{w: opts.Writer, names: namer.assigner()}, nil
	case FormatJSON, "":
		return &bufferedSink{table: New(), flush: func(t *Table) error {
			return WriteJSON(opts.Writer, t, namer)
		}}, nil
	case FormatCSV:
		return &bufferedSink{table: New(), flush: func(t *Table) error {
			return WriteCSV(opts.Writer, t, namer)
		}}, nil
	case FormatSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: sqlite output needs a database file path", errors.ErrUnsupportedFormat)
		}
		return &bufferedSink{table: New(), flush: func(t *Table) error {
			return WriteSQLite(ctx, opts.Path, opts.Table, t, namer)
		}}, nil
	default:
		return nil, fmt.Errorf("%w: output format %q", errors.ErrUnsupportedFormat, opts.Format)
	}
}

// streamSink writes each record as it arrives. Column names are assigned
// once for the whole stream, so a column keeps its output name on every
// line.
type streamSink struct {
	w     io.Writer
	names *columnNames
}

func (s *streamSink) Append(v models.Value) error {
	t := New()
	t.AppendValue(v)
	for _, row := range t.Rows() {
		if err := writeLine(s.w, s.names.rename(row)); err != nil {
			return err
		}
	}
	return nil
}

func (s *streamSink) Close() error { return nil }

type bufferedSink struct {
	table *Table
	flush func(*Table) error
}

func (s *bufferedSink) Append(v models.Value) error {
	s.table.AppendValue(v)
	return nil
}

func (s *bufferedSink) Close() error {
	return s.flush(s.table)
}
