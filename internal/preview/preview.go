// Package preview renders a short look at a staged upload before it is sent
// to the join backend: a table for tabular formats, text for plain files.
package preview

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joinhub/console/internal/models"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultRowLimit = 20
	textLimit       = 64 << 10
)

// Kind tells how a preview should be shown.
type Kind string

const (
	KindTable       Kind = "table"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

// Table is the head of a tabular file.
type Table struct {
	Sheet     string     `json:"sheet,omitempty"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// Preview is what the user sees for one file.
type Preview struct {
	FileName string `json:"fileName"`
	Kind     Kind   `json:"kind"`
	Table    *Table `json:"table,omitempty"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Previewer reads staged files. Delimited and JSON files go through an
// in-memory DuckDB, workbooks through excelize.
type Previewer struct {
	db       *sql.DB
	rowLimit int
}

// New opens the in-memory database. rowLimit <= 0 means DefaultRowLimit.
func New(rowLimit int) (*Previewer, error) {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	return &Previewer{db: db, rowLimit: rowLimit}, nil
}

// Close releases the database.
func (p *Previewer) Close() error {
	return p.db.Close()
}

// Preview reads the head of file.
func (p *Previewer) Preview(ctx context.Context, file models.UploadedFile) (*Preview, error) {
	out := &Preview{FileName: file.Name}

	var err error
	switch file.Ext() {
	case ".csv":
		out.Table, err = p.query(ctx, "read_csv_auto(%s)", file.Path)
	case ".tsv":
		out.Table, err = p.query(ctx, "read_csv_auto(%s, delim='\t')", file.Path)
	case ".json":
		out.Table, err = p.query(ctx, "read_json_auto(%s)", file.Path)
	case ".xlsx":
		out.Table, err = p.workbook(file.Path)
	case ".txt", ".md":
		out.Kind = KindText
		out.Text, err = readText(file.Path)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		out.Kind = KindUnsupported
		out.Message = "preview is not available for this file type"
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", file.Name, err)
	}
	out.Kind = KindTable
	return out, nil
}

// query runs SELECT * over a DuckDB table function applied to path.
func (p *Previewer) query(ctx context.Context, source, path string) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stmt := fmt.Sprintf("SELECT * FROM "+source+" LIMIT %d", quoteLiteral(path), p.rowLimit+1)
	rows, err := p.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := &Table{Columns: columns, Rows: [][]string{}}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(table.Rows) == p.rowLimit {
			table.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

// workbook reads the first sheet; the first row is taken as the header.
func (p *Previewer) workbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{Columns: []string{}, Rows: [][]string{}}, nil
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := &Table{Sheet: sheets[0], Columns: []string{}, Rows: [][]string{}}
	header := true
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if header {
			table.Columns = cols
			header = false
			continue
		}
		if len(table.Rows) == p.rowLimit {
			table.Truncated = true
			break
		}
		table.Rows = append(table.Rows, cols)
	}
	return table, nil
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, textLimit))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
