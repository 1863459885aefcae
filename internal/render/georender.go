package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/datatalk/datatalk/internal/geo"
)

// GeoInfo prints the dataset summary for either kind.
func GeoInfo(w io.Writer, info geo.Info, showDetails bool) {
	fmt.Fprintln(w, "Dataset Information")
	fmt.Fprintf(w, "  Type: %s\n", strings.ToUpper(string(info.Kind)))
	switch info.Kind {
	case geo.KindVector:
		vectorInfo(w, info.Vector, showDetails)
	case geo.KindRaster:
		rasterInfo(w, info.Raster)
	}
	fmt.Fprintln(w)
}

func vectorInfo(w io.Writer, info *geo.VectorInfo, showDetails bool) {
	fmt.Fprintf(w, "  Geometry: %s\n", info.GeometryType)
	fmt.Fprintf(w, "  Features: %d\n", info.FeatureCount)
	fmt.Fprintf(w, "  Extent: (%.2f, %.2f) to (%.2f, %.2f)\n",
		info.Extent.MinX, info.Extent.MinY, info.Extent.MaxX, info.Extent.MaxY)

	if !showDetails || len(info.Fields) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Field\tType\tSample Values")
	for _, field := range info.Fields {
		samples := strings.Join(field.Samples, ", ")
		if samples == "" {
			samples = "[no data]"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", field.Name, field.Type, samples)
	}
	_ = tw.Flush()
}

func rasterInfo(w io.Writer, info *geo.RasterInfo) {
	fmt.Fprintf(w, "  Dimensions: %d x %d cells\n", info.Width, info.Height)
	fmt.Fprintf(w, "  Cell Size: %g\n", info.CellSize)
	fmt.Fprintf(w, "  Extent: (%.2f, %.2f) to (%.2f, %.2f)\n",
		info.Extent.MinX, info.Extent.MinY, info.Extent.MaxX, info.Extent.MaxY)
	fmt.Fprintf(w, "  Value Range: %.4f to %.4f\n", info.Min, info.Max)
	if info.HasNoData {
		fmt.Fprintf(w, "  NoData: %g\n", info.NoData)
	}
}

// GeoResult prints an executed operation's outcome in the form matching
// its result type.
func GeoResult(w io.Writer, result geo.Result) {
	switch result.Type {
	case "description":
		GeoInfo(w, *result.Info, true)

	case "features":
		featureTable(w, result)

	case "count":
		fmt.Fprintf(w, "Feature Count: %d\n", result.Count)
		if result.Total != result.Count {
			fmt.Fprintf(w, "(Total features in dataset: %d)\n", result.Total)
		}

	case "statistics":
		stats := result.FieldStats
		fmt.Fprintf(w, "Statistics for field: %s\n", stats.Field)
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "  Count\t%d\n", stats.Count)
		fmt.Fprintf(tw, "  Min\t%.2f\n", stats.Min)
		fmt.Fprintf(tw, "  Max\t%.2f\n", stats.Max)
		fmt.Fprintf(tw, "  Mean\t%.2f\n", stats.Mean)
		fmt.Fprintf(tw, "  Median\t%.2f\n", stats.Median)
		_ = tw.Flush()

	case "band_statistics":
		stats := result.BandStats
		fmt.Fprintf(w, "Band %d Statistics\n", result.Band)
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "  Min\t%.4f\n", stats.Min)
		fmt.Fprintf(tw, "  Max\t%.4f\n", stats.Max)
		fmt.Fprintf(tw, "  Mean\t%.4f\n", stats.Mean)
		fmt.Fprintf(tw, "  Std Dev\t%.4f\n", stats.StdDev)
		_ = tw.Flush()

	case "pixel_value":
		if result.Value == nil {
			fmt.Fprintf(w, "No pixel value at coordinates (%g, %g) - outside raster extent\n",
				result.X, result.Y)
			return
		}
		fmt.Fprintf(w, "Pixel Value: %.4f\n", *result.Value)
		fmt.Fprintf(w, "Band %d at coordinates (%g, %g)\n", result.Band, result.X, result.Y)

	default:
		fmt.Fprintf(w, "Unknown result type: %s\n", result.Type)
	}
}

func featureTable(w io.Writer, result geo.Result) {
	if len(result.Features) == 0 {
		fmt.Fprintln(w, "No features found.")
		return
	}

	// Stable column order: id and geometry type first, attributes
	// sorted after.
	columns := []string{"id", "geometry_type"}
	var attributes []string
	for name := range result.Features[0] {
		if name != "id" && name != "geometry_type" {
			attributes = append(attributes, name)
		}
	}
	sort.Strings(attributes)
	columns = append(columns, attributes...)

	fmt.Fprintf(w, "Features (showing %d of %d)\n", len(result.Features), result.Total)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, feature := range result.Features {
		cells := make([]string, len(columns))
		for i, column := range columns {
			text := formatCell(feature[column])
			if len(text) > 50 {
				text = text[:50] + "..."
			}
			cells[i] = text
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

// geoDocument is the JSON output contract for one geo operation.
type geoDocument struct {
	Operation *geo.Operation `json:"operation"`
	Result    *geo.Result    `json:"result"`
	Error     *string        `json:"error"`
}

// GeoJSON writes one operation round trip as a JSON document.
func GeoJSON(w io.Writer, op *geo.Operation, result *geo.Result, opErr error) error {
	document := geoDocument{Operation: op, Result: result}
	if opErr != nil {
		message := opErr.Error()
		document.Error = &message
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(document)
}
