// Package geo loads geospatial datasets and executes structured
// operations against them. Vector data is GeoJSON, raster data is the
// ESRI ASCII grid format; both are read fully into memory, which keeps
// every operation a plain in-process computation.
package geo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind tags a dataset as vector or raster. The operation schema a
// question is translated into depends on this tag.
type Kind string

const (
	KindVector Kind = "vector"
	KindRaster Kind = "raster"
)

// Extent is a 2D bounding box in the dataset's own coordinate system.
type Extent struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// FieldInfo describes one attribute column of a vector dataset.
type FieldInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Samples []string `json:"samples"`
}

// VectorInfo summarizes a loaded vector dataset.
type VectorInfo struct {
	GeometryType string      `json:"geometry_type"`
	FeatureCount int         `json:"feature_count"`
	Fields       []FieldInfo `json:"fields"`
	Extent       Extent      `json:"extent"`
}

// RasterInfo summarizes a loaded raster dataset.
type RasterInfo struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	CellSize  float64 `json:"cell_size"`
	Extent    Extent  `json:"extent"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	NoData    float64 `json:"nodata,omitempty"`
	HasNoData bool    `json:"-"`
}

// Info describes a dataset of either kind. Exactly one of Vector and
// Raster is set, matching Kind.
type Info struct {
	Kind   Kind        `json:"data_type"`
	Path   string      `json:"path"`
	Vector *VectorInfo `json:"vector,omitempty"`
	Raster *RasterInfo `json:"raster,omitempty"`
}

// UnsupportedFormatError reports a file extension no loader handles.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported geospatial format %q (supported: .geojson, .json, .asc)", e.Ext)
}

// Source is an opened geospatial dataset ready to answer operations.
type Source struct {
	Info   Info
	vector *VectorSource
	raster *RasterSource
}

// Open loads the file at path, dispatching on its extension.
func Open(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".geojson", ".json":
		vector, err := loadVector(raw)
		if err != nil {
			return nil, err
		}
		info := vector.describe()
		return &Source{
			Info:   Info{Kind: KindVector, Path: path, Vector: &info},
			vector: vector,
		}, nil
	case ".asc":
		raster, err := loadRaster(raw)
		if err != nil {
			return nil, err
		}
		info := raster.describe()
		return &Source{
			Info:   Info{Kind: KindRaster, Path: path, Raster: &info},
			raster: raster,
		}, nil
	default:
		return nil, &UnsupportedFormatError{Path: path, Ext: ext}
	}
}
