package geo

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultListLimit = 10

// Where is an attribute predicate on one field.
type Where struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

var whereOps = map[string]bool{
	"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"contains": true,
}

func (w *Where) validate() error {
	if strings.TrimSpace(w.Field) == "" {
		return fmt.Errorf("where clause is missing a field")
	}
	if !whereOps[w.Op] {
		return fmt.Errorf("unknown where operator %q", w.Op)
	}
	return nil
}

// matches evaluates the predicate against one feature's attributes. A
// missing or nil attribute never matches. Ordering operators require
// numeric operands on both sides.
func (w *Where) matches(props map[string]any) (bool, error) {
	raw, ok := props[w.Field]
	if !ok || raw == nil {
		return false, nil
	}

	switch w.Op {
	case "contains":
		return strings.Contains(
			strings.ToLower(formatValue(raw)),
			strings.ToLower(formatValue(w.Value)),
		), nil
	case "=", "!=":
		left, leftNum := toFloat(raw)
		right, rightNum := toFloat(w.Value)
		var equal bool
		if leftNum && rightNum {
			equal = left == right
		} else {
			equal = formatValue(raw) == formatValue(w.Value)
		}
		if w.Op == "!=" {
			return !equal, nil
		}
		return equal, nil
	default:
		left, leftNum := toFloat(raw)
		right, rightNum := toFloat(w.Value)
		if !leftNum || !rightNum {
			return false, fmt.Errorf("operator %q needs numeric operands for field %q", w.Op, w.Field)
		}
		switch w.Op {
		case ">":
			return left > right, nil
		case ">=":
			return left >= right, nil
		case "<":
			return left < right, nil
		case "<=":
			return left <= right, nil
		}
		return false, fmt.Errorf("unknown where operator %q", w.Op)
	}
}

// Operation is the structured form a natural-language question is
// translated into. One struct covers both dataset kinds; validation
// enforces the fields each operation actually needs.
type Operation struct {
	Operation string    `json:"operation"`
	Limit     int       `json:"limit,omitempty"`
	Field     string    `json:"field,omitempty"`
	BBox      []float64 `json:"bbox,omitempty"`
	Where     *Where    `json:"where,omitempty"`
	Band      int       `json:"band,omitempty"`
	X         *float64  `json:"x,omitempty"`
	Y         *float64  `json:"y,omitempty"`
}

var (
	vectorOperations = map[string]bool{
		"describe": true, "list_features": true, "count_features": true,
		"filter_features": true, "spatial_filter": true, "statistics": true,
	}
	rasterOperations = map[string]bool{
		"describe": true, "metadata": true, "band_statistics": true,
		"pixel_value": true,
	}
)

// ParseOperation decodes and validates an operation against the schema
// for the given dataset kind.
func ParseOperation(kind Kind, raw string) (Operation, error) {
	var op Operation
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return Operation{}, fmt.Errorf("operation is not valid JSON: %w", err)
	}
	if err := op.validate(kind); err != nil {
		return Operation{}, err
	}
	return op, nil
}

func (op *Operation) validate(kind Kind) error {
	allowed := vectorOperations
	if kind == KindRaster {
		allowed = rasterOperations
	}
	if !allowed[op.Operation] {
		return fmt.Errorf("unknown %s operation %q", kind, op.Operation)
	}

	if len(op.BBox) != 0 && len(op.BBox) != 4 {
		return fmt.Errorf("bbox needs 4 values, got %d", len(op.BBox))
	}
	if op.Where != nil {
		if err := op.Where.validate(); err != nil {
			return err
		}
	}

	switch op.Operation {
	case "spatial_filter":
		if len(op.BBox) != 4 {
			return fmt.Errorf("spatial_filter needs a bbox")
		}
	case "statistics":
		if strings.TrimSpace(op.Field) == "" {
			return fmt.Errorf("statistics needs a field")
		}
	case "pixel_value":
		if op.X == nil || op.Y == nil {
			return fmt.Errorf("pixel_value needs x and y coordinates")
		}
	}
	return nil
}

// Result carries the outcome of an executed operation. Type selects
// which of the other fields are meaningful.
type Result struct {
	Type       string           `json:"type"`
	Info       *Info            `json:"info,omitempty"`
	Features   []map[string]any `json:"features,omitempty"`
	Count      int              `json:"count,omitempty"`
	Total      int              `json:"total,omitempty"`
	FieldStats *FieldStats      `json:"statistics,omitempty"`
	Band       int              `json:"band,omitempty"`
	BandStats  *BandStats       `json:"band_statistics,omitempty"`
	X          float64          `json:"x,omitempty"`
	Y          float64          `json:"y,omitempty"`
	Value      *float64         `json:"value,omitempty"`
}

// Execute runs a validated operation against the dataset.
func (s *Source) Execute(op Operation) (Result, error) {
	switch s.Info.Kind {
	case KindVector:
		return s.executeVector(op)
	case KindRaster:
		return s.executeRaster(op)
	default:
		return Result{}, fmt.Errorf("unknown dataset kind %q", s.Info.Kind)
	}
}

func (s *Source) executeVector(op Operation) (Result, error) {
	filter := Filter{Where: op.Where, BBox: op.BBox}
	limit := op.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	switch op.Operation {
	case "describe":
		return Result{Type: "description", Info: &s.Info}, nil

	case "list_features", "filter_features", "spatial_filter":
		features, err := s.vector.List(filter, limit)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Type:     "features",
			Count:    len(features),
			Features: features,
			Total:    s.Info.Vector.FeatureCount,
		}, nil

	case "count_features":
		count, err := s.vector.Count(filter)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Type:  "count",
			Count: count,
			Total: s.Info.Vector.FeatureCount,
		}, nil

	case "statistics":
		stats, err := s.vector.Statistics(op.Field, filter)
		if err != nil {
			return Result{}, err
		}
		return Result{Type: "statistics", FieldStats: &stats}, nil

	default:
		return Result{}, fmt.Errorf("unknown vector operation %q", op.Operation)
	}
}

func (s *Source) executeRaster(op Operation) (Result, error) {
	band := op.Band
	if band <= 0 {
		band = 1
	}

	switch op.Operation {
	case "describe", "metadata":
		return Result{Type: "description", Info: &s.Info}, nil

	case "band_statistics":
		stats, err := s.raster.BandStatistics(band)
		if err != nil {
			return Result{}, err
		}
		return Result{Type: "band_statistics", Band: band, BandStats: &stats}, nil

	case "pixel_value":
		value, found, err := s.raster.PixelValue(*op.X, *op.Y, band)
		if err != nil {
			return Result{}, err
		}
		result := Result{Type: "pixel_value", Band: band, X: *op.X, Y: *op.Y}
		if found {
			result.Value = &value
		}
		return result, nil

	default:
		return Result{}, fmt.Errorf("unknown raster operation %q", op.Operation)
	}
}
