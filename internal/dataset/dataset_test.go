package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

const testCSV = "city,population\nBerlin,3700000\nHamburg,1900000\nMunich,1500000\n"

func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openFixture(t *testing.T, name string, content []byte) *Dataset {
	t.Helper()
	d, err := Open(context.Background(), writeFixture(t, name, content))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpenCSV(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	result, err := d.Execute(context.Background(), "SELECT COUNT(*) AS c FROM events")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != int64(3) {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestOpenParquet(t *testing.T) {
	type record struct {
		ID    int64  `parquet:"id"`
		Value string `parquet:"value"`
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[record](buf)
	if _, err := writer.Write([]record{{ID: 1, Value: "a"}, {ID: 2, Value: "b"}}); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet: %v", err)
	}

	d := openFixture(t, "events.parquet", buf.Bytes())

	result, err := d.Execute(context.Background(), "SELECT COUNT(*) AS c FROM events")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestOpenGzipCSV(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	zw := gzip.NewWriter(buf)
	if _, err := zw.Write([]byte(testCSV)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	d := openFixture(t, "cities.csv.gz", buf.Bytes())

	result, err := d.Execute(context.Background(), "SELECT COUNT(*) AS c FROM events")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestOpenExcel(t *testing.T) {
	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	rows := [][]any{
		{"city", "population"},
		{"Berlin", 3700000},
		{"Hamburg", 1900000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := workbook.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := workbook.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	d := openFixture(t, "cities.xlsx", buf.Bytes())

	result, err := d.Execute(context.Background(), "SELECT COUNT(*) AS c FROM events")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestOpenUnsupportedFormat(t *testing.T) {
	path := writeFixture(t, "cities.pdf", []byte("not a table"))
	_, err := Open(context.Background(), path)
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedFormatError", err)
	}
}

func TestSchemaDescriptor(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	schema, err := d.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if schema != "city (VARCHAR), population (BIGINT)" {
		t.Fatalf("schema = %q", schema)
	}
}

func TestStats(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	stats, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RowCount != 3 || stats.ColumnCount != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Columns[0].Samples == "[no data]" || stats.Columns[0].Samples == "[error reading]" {
		t.Fatalf("samples = %q", stats.Columns[0].Samples)
	}
}

func TestExecuteStripsTrailingSemicolons(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	result, err := d.Execute(context.Background(), "SELECT city FROM events ORDER BY city;;")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 3 || result.Rows[0][0] != "Berlin" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecuteReportsSQLErrors(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	_, err := d.Execute(context.Background(), "SELECT nope FROM events")
	var execution *ExecutionError
	if !errors.As(err, &execution) {
		t.Fatalf("err = %v, want ExecutionError", err)
	}
	if execution.SQL != "SELECT nope FROM events" {
		t.Fatalf("sql = %q", execution.SQL)
	}
}

func TestExecuteEmptySQL(t *testing.T) {
	d := openFixture(t, "cities.csv", []byte(testCSV))

	if _, err := d.Execute(context.Background(), " ; "); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func TestStatsDegradesOnSampleFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info('events')")).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "city", "VARCHAR", false, nil, false))
	mock.ExpectQuery("SELECT DISTINCT").
		WillReturnError(errors.New("sample failed"))

	stats, err := New(db).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RowCount != 7 {
		t.Fatalf("row count = %d", stats.RowCount)
	}
	if stats.Columns[0].Samples != "[error reading]" {
		t.Fatalf("samples = %q", stats.Columns[0].Samples)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
