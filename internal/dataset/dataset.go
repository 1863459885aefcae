// Package dataset loads a tabular data file into an in-memory DuckDB
// table named events and answers schema, statistics and SQL requests
// against it. The table name is fixed; the query translation prompt
// relies on it.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/xuri/excelize/v2"
)

const tableName = "events"

// UnsupportedFormatError reports a file extension no loader handles.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (supported: .csv, .tsv, .csv.gz, .parquet, .xlsx, .xls)", e.Ext)
}

// ExecutionError wraps a SQL failure so the caller can report the
// statement that failed without losing the driver error.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Dataset is a loaded data file backed by an in-memory DuckDB.
type Dataset struct {
	db   *sql.DB
	path string
}

// Open creates an in-memory database and loads the file at path into
// the events table.
func Open(ctx context.Context, path string) (*Dataset, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	d := &Dataset{db: db, path: path}
	if err := d.load(ctx, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an existing database handle. The events table is assumed
// to be present already.
func New(db *sql.DB) *Dataset {
	return &Dataset{db: db}
}

func (d *Dataset) Close() error {
	return d.db.Close()
}

func (d *Dataset) Path() string {
	return d.path
}

func (d *Dataset) load(ctx context.Context, path string) error {
	if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tableName); err != nil {
		return fmt.Errorf("reset events table: %w", err)
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return d.createFrom(ctx, fmt.Sprintf("read_parquet(%s)", quoteLiteral(path)))
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".tsv"):
		return d.createFrom(ctx, fmt.Sprintf("read_csv_auto(%s, HEADER=TRUE)", quoteLiteral(path)))
	case strings.HasSuffix(lower, ".csv.gz"), strings.HasSuffix(lower, ".tsv.gz"):
		return d.loadGzip(ctx, path)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return d.loadExcel(ctx, path)
	default:
		return &UnsupportedFormatError{Path: path, Ext: filepath.Ext(path)}
	}
}

func (d *Dataset) createFrom(ctx context.Context, source string) error {
	createSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", tableName, source)
	if _, err := d.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("load data into events table: %w", err)
	}
	return nil
}

// loadGzip decompresses into a temporary CSV so DuckDB's reader can
// sniff the delimiter and column types as usual.
func (d *Dataset) loadGzip(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open compressed file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("read gzip header: %w", err)
	}
	defer func() { _ = reader.Close() }()

	tmp, err := os.CreateTemp("", "datatalk-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("decompress data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return d.createFrom(ctx, fmt.Sprintf("read_csv_auto(%s, HEADER=TRUE)", quoteLiteral(tmp.Name())))
}

// loadExcel reads the first sheet of a workbook and round-trips it
// through a temporary CSV. Short rows are padded to the header width.
func (d *Dataset) loadExcel(ctx context.Context, path string) error {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = workbook.Close() }()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("sheet %q is empty", sheets[0])
	}

	tmp, err := os.CreateTemp("", "datatalk-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	writer := csv.NewWriter(tmp)
	width := len(rows[0])
	for _, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		if err := writer.Write(row[:width]); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp csv: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return d.createFrom(ctx, fmt.Sprintf("read_csv_auto(%s, HEADER=TRUE)", quoteLiteral(tmp.Name())))
}

// Schema returns the events schema as a compact single-line descriptor,
// the form embedded into translation prompts.
func (d *Dataset) Schema(ctx context.Context) (string, error) {
	columns, err := d.columns(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, fmt.Sprintf("%s (%s)", column.Name, column.Type))
	}
	return strings.Join(parts, ", "), nil
}

// ColumnInfo describes one column with a short sample-values preview.
type ColumnInfo struct {
	Name    string
	Type    string
	Samples string
}

// Stats summarizes the loaded table for display before the first
// question.
type Stats struct {
	RowCount    int64
	ColumnCount int
	Columns     []ColumnInfo
}

func (d *Dataset) columns(ctx context.Context) ([]ColumnInfo, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteLiteral(tableName)))
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   bool
			dfltValue any
			pk        bool
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, ColumnInfo{Name: name, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("events table has no columns")
	}
	return columns, nil
}

// Stats collects the row count and up to three distinct sample values
// per column. A failing sample query degrades to a placeholder rather
// than failing the whole call.
func (d *Dataset) Stats(ctx context.Context) (Stats, error) {
	var rowCount int64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName).Scan(&rowCount); err != nil {
		return Stats{}, fmt.Errorf("count rows: %w", err)
	}

	columns, err := d.columns(ctx)
	if err != nil {
		return Stats{}, err
	}
	for i := range columns {
		columns[i].Samples = d.sampleValues(ctx, columns[i].Name)
	}
	return Stats{
		RowCount:    rowCount,
		ColumnCount: len(columns),
		Columns:     columns,
	}, nil
}

func (d *Dataset) sampleValues(ctx context.Context, column string) string {
	querySQL := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT 3",
		quoteIdent(column), tableName, quoteIdent(column),
	)
	rows, err := d.db.QueryContext(ctx, querySQL)
	if err != nil {
		return "[error reading]"
	}
	defer func() { _ = rows.Close() }()

	var samples []string
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return "[error reading]"
		}
		text := fmt.Sprint(normalizeValue(value))
		if len(text) > 20 {
			text = text[:20] + "..."
		}
		samples = append(samples, text)
	}
	if err := rows.Err(); err != nil {
		return "[error reading]"
	}
	if len(samples) == 0 {
		return "[no data]"
	}
	return strings.Join(samples, ", ")
}

// Result is one executed query's column names and normalized rows.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Execute runs a SQL statement against the events table. Trailing
// semicolons are tolerated because models add them.
func (d *Dataset) Execute(ctx context.Context, sqlText string) (Result, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return Result{}, &ExecutionError{SQL: sqlText, Err: fmt.Errorf("sql is required")}
	}

	rows, err := d.db.QueryContext(ctx, trimmed)
	if err != nil {
		return Result{}, &ExecutionError{SQL: trimmed, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &ExecutionError{SQL: trimmed, Err: err}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &ExecutionError{SQL: trimmed, Err: err}
		}
		for i, value := range values {
			values[i] = normalizeValue(value)
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, &ExecutionError{SQL: trimmed, Err: err}
	}
	return Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValue(value any) any {
	if raw, ok := value.([]byte); ok {
		return string(raw)
	}
	return value
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
