package geo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const sampleValuesPerField = 3

// Feature is one vector feature with its attributes flattened for
// querying and display.
type Feature struct {
	ID           int
	GeometryType string
	Geometry     geom.T
	Properties   map[string]any
}

// VectorSource holds an entire GeoJSON feature collection in memory.
type VectorSource struct {
	features []Feature
}

func loadVector(raw []byte) (*VectorSource, error) {
	var collection geojson.FeatureCollection
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, fmt.Errorf("parse GeoJSON: %w", err)
	}
	if len(collection.Features) == 0 {
		return nil, fmt.Errorf("GeoJSON contains no features")
	}

	features := make([]Feature, 0, len(collection.Features))
	for i, f := range collection.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, Feature{
			ID:           i,
			GeometryType: geometryTypeName(f.Geometry),
			Geometry:     f.Geometry,
			Properties:   props,
		})
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("GeoJSON contains no features with geometry")
	}
	return &VectorSource{features: features}, nil
}

func geometryTypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.LineString:
		return "LineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}

func (v *VectorSource) describe() VectorInfo {
	extent := Extent{}
	for i, f := range v.features {
		b := f.Geometry.Bounds()
		if i == 0 {
			extent = Extent{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
			continue
		}
		extent.MinX = min(extent.MinX, b.Min(0))
		extent.MinY = min(extent.MinY, b.Min(1))
		extent.MaxX = max(extent.MaxX, b.Max(0))
		extent.MaxY = max(extent.MaxY, b.Max(1))
	}

	return VectorInfo{
		GeometryType: v.features[0].GeometryType,
		FeatureCount: len(v.features),
		Fields:       v.fieldInfos(),
		Extent:       extent,
	}
}

// fieldInfos derives the attribute schema from the union of property
// keys, with up to three distinct sample values per field.
func (v *VectorSource) fieldInfos() []FieldInfo {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, f := range v.features {
		for name := range f.Properties {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	infos := make([]FieldInfo, 0, len(names))
	for _, name := range names {
		info := FieldInfo{Name: name, Type: "String"}
		distinct := make(map[string]bool)
		for _, f := range v.features {
			value, ok := f.Properties[name]
			if !ok || value == nil {
				continue
			}
			if _, isNumber := toFloat(value); isNumber {
				info.Type = "Number"
			}
			text := formatValue(value)
			if !distinct[text] {
				distinct[text] = true
				info.Samples = append(info.Samples, text)
			}
			if len(info.Samples) >= sampleValuesPerField {
				break
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Filter holds the optional attribute and spatial predicates shared by
// the query operations.
type Filter struct {
	Where *Where
	BBox  []float64
}

func (v *VectorSource) matching(filter Filter) ([]Feature, error) {
	out := make([]Feature, 0)
	for _, f := range v.features {
		if len(filter.BBox) == 4 && !boundsIntersect(f.Geometry.Bounds(), filter.BBox) {
			continue
		}
		if filter.Where != nil {
			ok, err := filter.Where.matches(f.Properties)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func boundsIntersect(b *geom.Bounds, bbox []float64) bool {
	return b.Min(0) <= bbox[2] && b.Max(0) >= bbox[0] &&
		b.Min(1) <= bbox[3] && b.Max(1) >= bbox[1]
}

// List returns up to limit matching features as flat attribute maps.
func (v *VectorSource) List(filter Filter, limit int) ([]map[string]any, error) {
	matched, err := v.matching(filter)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	rows := make([]map[string]any, 0, len(matched))
	for _, f := range matched {
		row := map[string]any{
			"id":            f.ID,
			"geometry_type": f.GeometryType,
		}
		for k, val := range f.Properties {
			row[k] = val
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Count returns the number of matching features.
func (v *VectorSource) Count(filter Filter) (int, error) {
	matched, err := v.matching(filter)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// FieldStats summarizes the numeric values of one attribute field.
type FieldStats struct {
	Field  string  `json:"field"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Statistics computes count, min, max, mean and median over the numeric
// values of the named field, after applying the filter. Non-numeric
// values are skipped; a field with no numeric values is an error.
func (v *VectorSource) Statistics(field string, filter Filter) (FieldStats, error) {
	matched, err := v.matching(filter)
	if err != nil {
		return FieldStats{}, err
	}

	values := make([]float64, 0, len(matched))
	for _, f := range matched {
		if raw, ok := f.Properties[field]; ok {
			if value, isNumber := toFloat(raw); isNumber {
				values = append(values, value)
			}
		}
	}
	if len(values) == 0 {
		return FieldStats{}, fmt.Errorf("no numeric values found for field %q", field)
	}

	sort.Float64s(values)
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return FieldStats{
		Field:  field,
		Count:  n,
		Min:    values[0],
		Max:    values[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
