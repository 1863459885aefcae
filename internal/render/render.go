// Package render writes the CLI's terminal output: banners, dataset
// statistics, result tables and the machine-readable JSON and CSV
// formats.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/datatalk/datatalk/internal/dataset"
	"github.com/datatalk/datatalk/internal/observability"
)

// DefaultRowLimit caps table output for readability; full results are
// available through the JSON and CSV formats.
const DefaultRowLimit = 20

const dataTalkLogo = `
██████╗  █████╗ ████████╗ █████╗ ████████╗ █████╗ ██╗     ██╗  ██╗
██╔══██╗██╔══██╗╚══██╔══╝██╔══██╗╚══██╔══╝██╔══██╗██║     ██║ ██╔╝
██║  ██║███████║   ██║   ███████║   ██║   ███████║██║     █████╔╝
██║  ██║██╔══██║   ██║   ██╔══██║   ██║   ██╔══██║██║     ██╔═██╗
██████╔╝██║  ██║   ██║   ██║  ██║   ██║   ██║  ██║███████╗██║  ██╗
╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`

const geoDataTalkLogo = `
 ██████╗ ███████╗ ██████╗ ██████╗  █████╗ ████████╗ █████╗ ████████╗ █████╗ ██╗     ██╗  ██╗
██╔════╝ ██╔════╝██╔═══██╗██╔══██╗██╔══██╗╚══██╔══╝██╔══██╗╚══██╔══╝██╔══██╗██║     ██║ ██╔╝
██║  ███╗█████╗  ██║   ██║██║  ██║███████║   ██║   ███████║   ██║   ███████║██║     █████╔╝
██║   ██║██╔══╝  ██║   ██║██║  ██║██╔══██║   ██║   ██╔══██║   ██║   ██╔══██║██║     ██╔═██╗
╚██████╔╝███████╗╚██████╔╝██████╔╝██║  ██║   ██║   ██║  ██║   ██║   ██║  ██║███████╗██║  ██╗
 ╚═════╝ ╚══════╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`

// Logo prints the startup banner with its tagline.
func Logo(w io.Writer) {
	fmt.Fprint(w, dataTalkLogo, "\n")
	fmt.Fprintln(w, "Ask questions about your CSV, Excel or Parquet data in natural language.")
	fmt.Fprintln(w)
}

// GeoLogo prints the geospatial variant's banner.
func GeoLogo(w io.Writer) {
	fmt.Fprint(w, geoDataTalkLogo, "\n")
	fmt.Fprintln(w, "Ask questions about your geospatial data (vector & raster) in natural language.")
	fmt.Fprintln(w)
}

// Stats prints the dataset summary shown after loading. The per-column
// detail table is skipped when showSchema is false.
func Stats(w io.Writer, stats dataset.Stats, showSchema bool) {
	fmt.Fprintln(w, "Dataset Statistics")
	fmt.Fprintf(w, "  Rows:    %d\n", stats.RowCount)
	fmt.Fprintf(w, "  Columns: %d\n", stats.ColumnCount)
	if !showSchema || len(stats.Columns) == 0 {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Column\tType\tSample Values")
	for _, column := range stats.Columns {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", column.Name, column.Type, column.Samples)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

// Table prints query results as an aligned text table, capped at limit
// rows with an ellipsis row when truncated.
func Table(w io.Writer, columns []string, rows [][]any, limit int) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	if limit <= 0 {
		limit = DefaultRowLimit
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for i, row := range rows {
		if i >= limit {
			ellipsis := make([]string, len(columns))
			for j := range ellipsis {
				ellipsis[j] = "..."
			}
			fmt.Fprintln(tw, strings.Join(ellipsis, "\t"))
			break
		}
		cells := make([]string, len(row))
		for j, value := range row {
			cells[j] = formatCell(value)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	if len(rows) > limit {
		fmt.Fprintf(w, "Showing first %d of %d rows\n", limit, len(rows))
	}
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprint(value)
}

// Suggestions prints the numbered question suggestions.
func Suggestions(w io.Writer, suggestions []string, followUp bool) {
	if len(suggestions) == 0 {
		return
	}
	if followUp {
		fmt.Fprintln(w, "New suggested questions:")
	} else {
		fmt.Fprintln(w, "Suggested questions to get started:")
	}
	for i, suggestion := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
	}
	fmt.Fprintln(w)
}

// TokenReport prints the session token usage statistics.
func TokenReport(w io.Writer, snapshot observability.UsageSnapshot) {
	fmt.Fprintln(w, "Token Usage Statistics")
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Requests\t%d\n", snapshot.Requests)
	fmt.Fprintf(tw, "  Input Tokens\t%d\n", snapshot.PromptTokens)
	fmt.Fprintf(tw, "  Output Tokens\t%d\n", snapshot.CompletionTokens)
	fmt.Fprintf(tw, "  Total Tokens\t%d\n", snapshot.TotalTokens())
	if snapshot.Failures > 0 {
		fmt.Fprintf(tw, "  Failed Requests\t%d\n", snapshot.Failures)
	}
	_ = tw.Flush()
}

// queryDocument is the JSON output contract for one processed query.
type queryDocument struct {
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   *string  `json:"error"`
}

// QueryJSON writes one query outcome as a JSON document. The error
// field is always present so consumers can branch on it.
func QueryJSON(w io.Writer, sqlText string, columns []string, rows [][]any, queryErr error) error {
	document := queryDocument{SQL: sqlText, Columns: columns, Rows: rows}
	if document.Columns == nil {
		document.Columns = []string{}
	}
	if document.Rows == nil {
		document.Rows = [][]any{}
	}
	if queryErr != nil {
		message := queryErr.Error()
		document.Error = &message
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(document)
}

// QueryCSV writes the full result set as CSV, header first.
func QueryCSV(w io.Writer, columns []string, rows [][]any) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, value := range row {
			record[i] = formatCell(value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
