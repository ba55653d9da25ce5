package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("table source not found")
	ErrEmpty    = errors.New("table source has no rows")
)

// Loader reads a tabular source with a header row.
type Loader interface {
	Load(ctx context.Context, path string) (*Table, error)
}

// Table is an immutable set of rows with named columns. Column names are
// trimmed; cell values are kept as trimmed source text.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a table from a header and rows. Rows shorter than the header are
// padded with empty cells and longer rows are truncated.
func New(columns []string, rows [][]string) *Table {
	t := &Table{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]string, 0, len(rows)),
	}
	for i, c := range columns {
		c = strings.TrimSpace(c)
		t.columns[i] = c
		// Duplicate headers resolve to the first occurrence.
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
	for _, r := range rows {
		row := make([]string, len(columns))
		for i := range row {
			if i < len(r) {
				row[i] = strings.TrimSpace(r[i])
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Row(i int) Row {
	return Row{t: t, values: t.rows[i]}
}

func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Row is a read-only view of one table row.
type Row struct {
	t      *Table
	values []string
}

// Get returns the cell for column, or "" when the table has no such column.
func (r Row) Get(column string) string {
	if r.t == nil {
		return ""
	}
	i, ok := r.t.index[column]
	if !ok {
		return ""
	}
	return r.values[i]
}

// At returns the cell at column position i.
func (r Row) At(i int) string {
	return r.values[i]
}

const (
	LoaderCSV    = "csv"
	LoaderDuckDB = "duckdb"
)

// NewLoader returns the loader registered under kind.
func NewLoader(kind string, comma rune) (Loader, error) {
	switch kind {
	case "", LoaderCSV:
		return &CSVLoader{Comma: comma}, nil
	case LoaderDuckDB:
		return &DuckDBLoader{Comma: comma}, nil
	default:
		return nil, fmt.Errorf("unknown loader %q", kind)
	}
}
