// Package geometry normalizes the region and column-marker encodings found
// in stored templates. Several generations of template authoring tools wrote
// these in different shapes; everything funnels through one tagged union so
// consumers only ever see a Rect or an x-coordinate.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrUnrecognizedFormat is returned when a descriptor matches none of the
// known encodings. Callers skip the offending element and continue.
var ErrUnrecognizedFormat = errors.New("unrecognized geometry format")

// Rect is a rectangular region in PDF coordinate space. Coordinates are
// kept exactly as authored: the normalizer never swaps corners, consumers
// that need x1<=x2 ordering must call Canonical themselves.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Canonical returns the rect with corners ordered so X1<=X2 and Y1<=Y2.
func (r Rect) Canonical() Rect {
	out := r
	if out.X1 > out.X2 {
		out.X1, out.X2 = out.X2, out.X1
	}
	if out.Y1 > out.Y2 {
		out.Y1, out.Y2 = out.Y2, out.Y1
	}
	return out
}

// Area string in the "x1,y1,x2,y2" form the table engine accepts.
func (r Rect) Area() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.X1, r.Y1, r.X2, r.Y2)
}

// Union returns the bounding rectangle of both rects (canonical form).
func (r Rect) Union(other Rect) Rect {
	a, b := r.Canonical(), other.Canonical()
	return Rect{
		X1: math.Min(a.X1, b.X1),
		Y1: math.Min(a.Y1, b.Y1),
		X2: math.Max(a.X2, b.X2),
		Y2: math.Max(a.Y2, b.Y2),
	}
}

// Marker is a normalized column marker: a vertical boundary at X,
// optionally tied to one region of its section.
type Marker struct {
	X         float64
	Region    int
	HasRegion bool
}

// regionEncoding enumerates the recognized region descriptor shapes.
type regionEncoding int

const (
	regionUnrecognized regionEncoding = iota
	regionRectDict                    // {"x1":..,"y1":..,"x2":..,"y2":..}
	regionPointPair                   // [{"x":..,"y":..},{"x":..,"y":..}]
	regionNestedList                  // [[<one of the above>]]  (legacy)
)

// markerEncoding enumerates the recognized column marker shapes.
type markerEncoding int

const (
	markerUnrecognized  markerEncoding = iota
	markerPointWithIdx                 // [{"x":..,"y":..}, {...}, regionIdx]
	markerPointPair                    // [{"x":..,"y":..},{"x":..,"y":..}]
	markerXDict                        // {"x": ..}
	markerX1Dict                       // {"x1": ..}
	markerValueDict                    // {"value": ..}
	markerPositionDict                 // {"position": ..}
	markerNumber                       // 100.0
	markerNumericString                // "100"
)

// NormalizeRegion converts any recognized region descriptor into a Rect.
func NormalizeRegion(descriptor any) (Rect, error) {
	switch classifyRegion(descriptor) {
	case regionRectDict:
		d := descriptor.(map[string]any)
		return Rect{
			X1: mustNumber(d["x1"]),
			Y1: mustNumber(d["y1"]),
			X2: mustNumber(d["x2"]),
			Y2: mustNumber(d["y2"]),
		}, nil
	case regionPointPair:
		l := descriptor.([]any)
		p1 := l[0].(map[string]any)
		p2 := l[1].(map[string]any)
		return Rect{
			X1: mustNumber(p1["x"]),
			Y1: mustNumber(p1["y"]),
			X2: mustNumber(p2["x"]),
			Y2: mustNumber(p2["y"]),
		}, nil
	case regionNestedList:
		inner := descriptor.([]any)[0]
		return NormalizeRegion(inner)
	default:
		return Rect{}, fmt.Errorf("%w: region descriptor %T", ErrUnrecognizedFormat, descriptor)
	}
}

func classifyRegion(descriptor any) regionEncoding {
	switch v := descriptor.(type) {
	case map[string]any:
		if hasNumber(v, "x1") && hasNumber(v, "y1") && hasNumber(v, "x2") && hasNumber(v, "y2") {
			return regionRectDict
		}
	case []any:
		if len(v) == 2 && isPoint(v[0]) && isPoint(v[1]) {
			return regionPointPair
		}
		if len(v) == 1 {
			if classifyRegion(v[0]) != regionUnrecognized {
				return regionNestedList
			}
		}
	}
	return regionUnrecognized
}

// NormalizeColumnMarker converts any recognized marker encoding into a
// Marker. Only the point-with-index form carries a region association.
func NormalizeColumnMarker(marker any) (Marker, error) {
	switch classifyMarker(marker) {
	case markerPointWithIdx:
		l := marker.([]any)
		p := l[0].(map[string]any)
		idx, _ := toNumber(l[2])
		return Marker{X: mustNumber(p["x"]), Region: int(idx), HasRegion: true}, nil
	case markerPointPair:
		l := marker.([]any)
		p := l[0].(map[string]any)
		return Marker{X: mustNumber(p["x"])}, nil
	case markerXDict:
		return Marker{X: mustNumber(marker.(map[string]any)["x"])}, nil
	case markerX1Dict:
		return Marker{X: mustNumber(marker.(map[string]any)["x1"])}, nil
	case markerValueDict:
		return Marker{X: mustNumber(marker.(map[string]any)["value"])}, nil
	case markerPositionDict:
		return Marker{X: mustNumber(marker.(map[string]any)["position"])}, nil
	case markerNumber:
		n, _ := toNumber(marker)
		return Marker{X: n}, nil
	case markerNumericString:
		n, _ := strconv.ParseFloat(marker.(string), 64)
		return Marker{X: n}, nil
	default:
		return Marker{}, fmt.Errorf("%w: column marker %T", ErrUnrecognizedFormat, marker)
	}
}

func classifyMarker(marker any) markerEncoding {
	switch v := marker.(type) {
	case map[string]any:
		switch {
		case hasNumber(v, "x"):
			return markerXDict
		case hasNumber(v, "x1"):
			return markerX1Dict
		case hasNumber(v, "value"):
			return markerValueDict
		case hasNumber(v, "position"):
			return markerPositionDict
		}
	case []any:
		if len(v) >= 3 && isPoint(v[0]) {
			if _, ok := toNumber(v[2]); ok {
				return markerPointWithIdx
			}
		}
		if len(v) == 2 && isPoint(v[0]) && isPoint(v[1]) {
			return markerPointPair
		}
	case string:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return markerNumericString
		}
	default:
		if _, ok := toNumber(marker); ok {
			return markerNumber
		}
	}
	return markerUnrecognized
}

// DedupeBoundaries sorts the x-coordinates and drops any value within
// minGap of the previously kept one. Nearest-neighbor drop, not averaging.
func DedupeBoundaries(xs []float64, minGap float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	out := sorted[:1]
	for _, x := range sorted[1:] {
		if x-out[len(out)-1] >= minGap {
			out = append(out, x)
		}
	}
	return out
}

func isPoint(v any) bool {
	m, ok := v.(map[string]any)
	return ok && hasNumber(m, "x") && hasNumber(m, "y")
}

func hasNumber(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	_, ok = toNumber(v)
	return ok
}

// toNumber coerces the numeric types JSON decoding can produce.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func mustNumber(v any) float64 {
	n, _ := toNumber(v)
	return n
}
