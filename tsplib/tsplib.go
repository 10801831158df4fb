// Package tsplib reads symmetric TSPLIB instances with node coordinates.
//
// Supported headers: NAME, COMMENT, TYPE (must start with "TSP"),
// DIMENSION, EDGE_WEIGHT_TYPE (EUC_2D or GEO), DISPLAY_DATA_TYPE, followed
// by NODE_COORD_SECTION. The coordinate section ends at EOF,
// DISPLAY_DATA_SECTION or the end of input. Unknown header keys are kept in
// Instance.Extra so callers can report them.
//
// The reader is all-or-nothing: any malformed line fails the whole load
// with the offending line number; no partial instance is ever returned.
package tsplib

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/katalvlaran/tspgrid/matrix"
)

// Edge weight types understood by Instance.Graph.
const (
	WeightEuc2D = "EUC_2D"
	WeightGeo   = "GEO"
)

var (
	// ErrMalformed reports a syntactically invalid line or header value.
	ErrMalformed = errors.New("tsplib: malformed input")

	// ErrUnsupportedWeightType reports an EDGE_WEIGHT_TYPE other than
	// EUC_2D or GEO.
	ErrUnsupportedWeightType = errors.New("tsplib: unsupported edge weight type")

	// ErrUnsupportedType reports a TYPE that is not a symmetric TSP.
	ErrUnsupportedType = errors.New("tsplib: unsupported problem type")

	// ErrDimension reports a missing DIMENSION or a coordinate count that
	// does not match it.
	ErrDimension = errors.New("tsplib: dimension mismatch")
)

// Instance is a parsed TSPLIB file.
type Instance struct {
	Name            string
	Comment         string
	Type            string
	Dimension       int
	EdgeWeightType  string
	DisplayDataType string
	Extra           map[string]string
	Points          []matrix.Point
}

// lineError decorates a sentinel with the 1-based line number.
func lineError(line int, err error, format string, args ...any) error {
	return fmt.Errorf("line %d: %s: %w", line, fmt.Sprintf(format, args...), err)
}

// ReadFile opens and parses path.
func ReadFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	inst, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return inst, nil
}

// Read parses a TSPLIB instance from r.
func Read(r io.Reader) (*Instance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	inst := &Instance{Extra: map[string]string{}}
	var (
		line     int
		inCoords bool
		seen     []bool
		count    int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		if inCoords {
			if text == "EOF" || strings.HasPrefix(text, "DISPLAY_DATA_SECTION") {
				break
			}
			fields := strings.Fields(text)
			if len(fields) != 3 {
				return nil, lineError(line, ErrMalformed, "want \"index x y\", got %q", text)
			}
			idx, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, lineError(line, ErrMalformed, "bad index %q", fields[0])
			}
			if idx < 1 || idx > inst.Dimension {
				return nil, lineError(line, ErrDimension, "index %d outside 1..%d", idx, inst.Dimension)
			}
			if seen[idx-1] {
				return nil, lineError(line, ErrMalformed, "duplicate index %d", idx)
			}
			x, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, lineError(line, ErrMalformed, "bad x %q", fields[1])
			}
			y, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, lineError(line, ErrMalformed, "bad y %q", fields[2])
			}
			seen[idx-1] = true
			inst.Points[idx-1] = matrix.Point{X: x, Y: y}
			count++
			continue
		}

		if text == "EOF" {
			break
		}
		if strings.HasPrefix(text, "NODE_COORD_SECTION") {
			if err := inst.checkHeader(line); err != nil {
				return nil, err
			}
			inCoords = true
			seen = make([]bool, inst.Dimension)
			inst.Points = make([]matrix.Point, inst.Dimension)
			continue
		}

		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, lineError(line, ErrMalformed, "expected \"KEY : VALUE\", got %q", text)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "NAME":
			inst.Name = value
		case "COMMENT":
			inst.Comment = value
		case "TYPE":
			if !strings.HasPrefix(value, "TSP") {
				return nil, lineError(line, ErrUnsupportedType, "type %q", value)
			}
			inst.Type = value
		case "DIMENSION":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, lineError(line, ErrDimension, "dimension %q", value)
			}
			inst.Dimension = n
		case "EDGE_WEIGHT_TYPE":
			if value != WeightEuc2D && value != WeightGeo {
				return nil, lineError(line, ErrUnsupportedWeightType, "type %q", value)
			}
			inst.EdgeWeightType = value
		case "DISPLAY_DATA_TYPE":
			inst.DisplayDataType = value
		default:
			inst.Extra[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !inCoords {
		return nil, fmt.Errorf("no NODE_COORD_SECTION: %w", ErrMalformed)
	}
	if count != inst.Dimension {
		return nil, fmt.Errorf("read %d coordinates, DIMENSION is %d: %w", count, inst.Dimension, ErrDimension)
	}

	return inst, nil
}

// checkHeader verifies the headers required before coordinates can be read.
func (inst *Instance) checkHeader(line int) error {
	if inst.Dimension == 0 {
		return lineError(line, ErrDimension, "NODE_COORD_SECTION before DIMENSION")
	}
	if inst.EdgeWeightType == "" {
		return lineError(line, ErrUnsupportedWeightType, "NODE_COORD_SECTION before EDGE_WEIGHT_TYPE")
	}

	return nil
}

// Graph materializes the cost matrix. magnification scales EUC_2D
// distances before rounding and is ignored for GEO.
func (inst *Instance) Graph(magnification float64) (*matrix.Dense, error) {
	switch inst.EdgeWeightType {
	case WeightEuc2D:
		return matrix.Euclidean(inst.Points, magnification)
	case WeightGeo:
		return matrix.Geo(inst.Points)
	default:
		return nil, fmt.Errorf("type %q: %w", inst.EdgeWeightType, ErrUnsupportedWeightType)
	}
}
