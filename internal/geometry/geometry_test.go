package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRegion_EquivalentEncodings(t *testing.T) {
	want := Rect{X1: 10, Y1: 700, X2: 400, Y2: 500}

	encodings := map[string]any{
		"rect_dict": map[string]any{
			"x1": 10.0, "y1": 700.0, "x2": 400.0, "y2": 500.0,
		},
		"point_pair": []any{
			map[string]any{"x": 10.0, "y": 700.0},
			map[string]any{"x": 400.0, "y": 500.0},
		},
		"nested_rect_dict": []any{
			map[string]any{"x1": 10.0, "y1": 700.0, "x2": 400.0, "y2": 500.0},
		},
		"nested_point_pair": []any{
			[]any{
				map[string]any{"x": 10.0, "y": 700.0},
				map[string]any{"x": 400.0, "y": 500.0},
			},
		},
	}

	for name, descriptor := range encodings {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeRegion(descriptor)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeRegion_DoesNotInvertCorners(t *testing.T) {
	// Inverted coordinates must come back exactly as authored.
	got, err := NormalizeRegion(map[string]any{
		"x1": 400.0, "y1": 500.0, "x2": 10.0, "y2": 700.0,
	})
	require.NoError(t, err)
	assert.Equal(t, Rect{X1: 400, Y1: 500, X2: 10, Y2: 700}, got)

	canon := got.Canonical()
	assert.Equal(t, Rect{X1: 10, Y1: 500, X2: 400, Y2: 700}, canon)
}

func TestNormalizeRegion_Unrecognized(t *testing.T) {
	cases := []any{
		"not a region",
		map[string]any{"left": 1.0, "top": 2.0},
		[]any{1.0, 2.0, 3.0},
		nil,
	}
	for _, descriptor := range cases {
		_, err := NormalizeRegion(descriptor)
		assert.ErrorIs(t, err, ErrUnrecognizedFormat)
	}
}

func TestNormalizeColumnMarker_EquivalentEncodings(t *testing.T) {
	encodings := map[string]any{
		"x_dict":         map[string]any{"x": 100.0},
		"x1_dict":        map[string]any{"x1": 100.0},
		"value_dict":     map[string]any{"value": 100.0},
		"position_dict":  map[string]any{"position": 100.0},
		"bare_number":    100.0,
		"numeric_string": "100",
		"point_pair": []any{
			map[string]any{"x": 100.0, "y": 0.0},
			map[string]any{"x": 0.0, "y": 0.0},
		},
	}

	for name, marker := range encodings {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeColumnMarker(marker)
			require.NoError(t, err)
			assert.Equal(t, 100.0, got.X)
			assert.False(t, got.HasRegion)
		})
	}
}

func TestNormalizeColumnMarker_PointWithRegionIndex(t *testing.T) {
	marker := []any{
		map[string]any{"x": 250.0, "y": 10.0},
		map[string]any{"x": 0.0, "y": 0.0},
		1.0,
	}
	got, err := NormalizeColumnMarker(marker)
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.X)
	assert.True(t, got.HasRegion)
	assert.Equal(t, 1, got.Region)
}

func TestNormalizeColumnMarker_Unrecognized(t *testing.T) {
	cases := []any{"abc", map[string]any{"y": 5.0}, []any{}, true}
	for _, marker := range cases {
		_, err := NormalizeColumnMarker(marker)
		assert.ErrorIs(t, err, ErrUnrecognizedFormat)
	}
}

func TestDedupeBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		in     []float64
		minGap float64
		want   []float64
	}{
		{
			name:   "drops near neighbors",
			in:     []float64{100, 103, 200, 204, 300},
			minGap: 5,
			want:   []float64{100, 200, 300},
		},
		{
			name:   "sorts input",
			in:     []float64{300, 100, 200},
			minGap: 5,
			want:   []float64{100, 200, 300},
		},
		{
			name:   "keeps exact gap",
			in:     []float64{100, 105},
			minGap: 5,
			want:   []float64{100, 105},
		},
		{
			name:   "empty",
			in:     nil,
			minGap: 5,
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeBoundaries(tt.in, tt.minGap))
		})
	}
}

func TestRectUnion(t *testing.T) {
	a := Rect{X1: 10, Y1: 10, X2: 100, Y2: 100}
	b := Rect{X1: 50, Y1: 5, X2: 200, Y2: 80}
	assert.Equal(t, Rect{X1: 10, Y1: 5, X2: 200, Y2: 100}, a.Union(b))
}

func TestRectArea(t *testing.T) {
	r := Rect{X1: 10, Y1: 700, X2: 400, Y2: 500}
	assert.Equal(t, "10,700,400,500", r.Area())
}
