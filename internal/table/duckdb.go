package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBLoader reads delimited files through an in-process DuckDB instance,
// letting read_csv sniff quoting and dialect. Every column is read as text so
// values match what the CSV loader produces.
type DuckDBLoader struct {
	// Comma is the field delimiter. Zero lets DuckDB detect it.
	Comma rune
}

func (l *DuckDBLoader) Load(ctx context.Context, path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, readCSVQuery(path, l.Comma))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", path, err)
	}

	var records [][]string
	for rows.Next() {
		cells := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d of %s: %w", len(records)+1, path, err)
		}
		record := make([]string, len(columns))
		for i, c := range cells {
			record[i] = c.String
		}
		if isBlank(record) {
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return New(columns, records), nil
}

func readCSVQuery(path string, comma rune) string {
	opts := []string{"header = true", "all_varchar = true"}
	if comma != 0 {
		opts = append(opts, "delim = "+quoteLiteral(string(comma)))
	}
	return fmt.Sprintf("SELECT * FROM read_csv(%s, %s)", quoteLiteral(path), strings.Join(opts, ", "))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
