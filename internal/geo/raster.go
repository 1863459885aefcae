package geo

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RasterSource is a single-band grid parsed from the ESRI ASCII grid
// format. Cells are stored row-major from the top row down, matching
// the file layout.
type RasterSource struct {
	width     int
	height    int
	xll       float64
	yll       float64
	cellSize  float64
	noData    float64
	hasNoData bool
	cells     []float64
}

func loadRaster(raw []byte) (*RasterSource, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	r := &RasterSource{width: -1, height: -1, cellSize: -1}
	headerDone := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !headerDone {
			fields := strings.Fields(line)
			if len(fields) == 2 && !isNumeric(fields[0]) {
				if err := r.readHeader(fields[0], fields[1]); err != nil {
					return nil, err
				}
				continue
			}
			if err := r.checkHeader(); err != nil {
				return nil, err
			}
			headerDone = true
			r.cells = make([]float64, 0, r.width*r.height)
		}
		for _, field := range strings.Fields(line) {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse grid cell %q: %w", field, err)
			}
			r.cells = append(r.cells, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	if !headerDone {
		return nil, fmt.Errorf("grid header is incomplete")
	}
	if len(r.cells) != r.width*r.height {
		return nil, fmt.Errorf("grid has %d cells, expected %d", len(r.cells), r.width*r.height)
	}
	return r, nil
}

func (r *RasterSource) readHeader(key, value string) error {
	parse := func() (float64, error) {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("parse grid header %s: %w", key, err)
		}
		return parsed, nil
	}
	var parsed float64
	var err error
	switch strings.ToLower(key) {
	case "ncols":
		if parsed, err = parse(); err == nil {
			r.width = int(parsed)
		}
	case "nrows":
		if parsed, err = parse(); err == nil {
			r.height = int(parsed)
		}
	case "xllcorner":
		r.xll, err = parse()
	case "yllcorner":
		r.yll, err = parse()
	case "cellsize":
		r.cellSize, err = parse()
	case "nodata_value":
		if r.noData, err = parse(); err == nil {
			r.hasNoData = true
		}
	default:
		return fmt.Errorf("unknown grid header %q", key)
	}
	return err
}

func (r *RasterSource) checkHeader() error {
	if r.width <= 0 || r.height <= 0 {
		return fmt.Errorf("grid header is missing ncols or nrows")
	}
	if r.cellSize <= 0 {
		return fmt.Errorf("grid header is missing cellsize")
	}
	return nil
}

func isNumeric(field string) bool {
	_, err := strconv.ParseFloat(field, 64)
	return err == nil
}

func (r *RasterSource) describe() RasterInfo {
	stats := r.statistics()
	info := RasterInfo{
		Width:    r.width,
		Height:   r.height,
		CellSize: r.cellSize,
		Extent: Extent{
			MinX: r.xll,
			MinY: r.yll,
			MaxX: r.xll + r.cellSize*float64(r.width),
			MaxY: r.yll + r.cellSize*float64(r.height),
		},
		Min:       stats.Min,
		Max:       stats.Max,
		Mean:      stats.Mean,
		NoData:    r.noData,
		HasNoData: r.hasNoData,
	}
	return info
}

// BandStats summarizes valid cell values of a raster band.
type BandStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// BandStatistics computes statistics over the grid, skipping nodata
// cells. The format carries a single band, so only band 1 exists.
func (r *RasterSource) BandStatistics(band int) (BandStats, error) {
	if band != 1 {
		return BandStats{}, fmt.Errorf("band %d out of range, grid has 1 band", band)
	}
	return r.statistics(), nil
}

func (r *RasterSource) statistics() BandStats {
	var (
		count     int
		sum       float64
		minimum   = math.Inf(1)
		maximum   = math.Inf(-1)
		sumSquare float64
	)
	for _, value := range r.cells {
		if r.hasNoData && value == r.noData {
			continue
		}
		count++
		sum += value
		sumSquare += value * value
		minimum = min(minimum, value)
		maximum = max(maximum, value)
	}
	if count == 0 {
		return BandStats{}
	}
	mean := sum / float64(count)
	variance := sumSquare/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return BandStats{
		Min:    minimum,
		Max:    maximum,
		Mean:   mean,
		StdDev: math.Sqrt(variance),
	}
}

// PixelValue reads the cell containing the geographic coordinate. The
// second return is false when the coordinate falls outside the grid or
// hits a nodata cell.
func (r *RasterSource) PixelValue(x, y float64, band int) (float64, bool, error) {
	if band != 1 {
		return 0, false, fmt.Errorf("band %d out of range, grid has 1 band", band)
	}
	col := int(math.Floor((x - r.xll) / r.cellSize))
	topY := r.yll + r.cellSize*float64(r.height)
	row := int(math.Floor((topY - y) / r.cellSize))
	if col < 0 || col >= r.width || row < 0 || row >= r.height {
		return 0, false, nil
	}
	value := r.cells[row*r.width+col]
	if r.hasNoData && value == r.noData {
		return 0, false, nil
	}
	return value, true, nil
}
