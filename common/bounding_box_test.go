package common

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBox_IoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     BBox
		expected float32
	}{
		{
			name:     "identical boxes",
			a:        BBox{0, 0, 0.5, 0.5},
			b:        BBox{0, 0, 0.5, 0.5},
			expected: 1,
		},
		{
			name:     "no overlap",
			a:        BBox{0, 0, 0.2, 0.2},
			b:        BBox{0.5, 0.5, 1, 1},
			expected: 0,
		},
		{
			name:     "touching edges",
			a:        BBox{0, 0, 0.5, 0.5},
			b:        BBox{0, 0.5, 0.5, 1},
			expected: 0,
		},
		{
			name:     "quarter offset",
			a:        BBox{0, 0, 100, 100},
			b:        BBox{50, 50, 150, 150},
			expected: 2500.0 / 17500.0,
		},
		{
			name:     "one inside other",
			a:        BBox{0, 0, 1, 1},
			b:        BBox{0.25, 0.25, 0.75, 0.75},
			expected: 0.25,
		},
		{
			name:     "degenerate boxes",
			a:        BBox{0.5, 0.5, 0.5, 0.5},
			b:        BBox{0.5, 0.5, 0.5, 0.5},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.IoU(tt.b), 1e-5)
			assert.InDelta(t, tt.a.IoU(tt.b), tt.b.IoU(tt.a), 1e-6, "IoU must be symmetric")
		})
	}
}

func TestBBox_Clip(t *testing.T) {
	box := BBox{Ymin: -0.1, Xmin: 0.2, Ymax: 1.3, Xmax: 0.9}
	clipped := box.Clip()

	assert.Equal(t, BBox{Ymin: 0, Xmin: 0.2, Ymax: 1, Xmax: 0.9}, clipped)
	assert.True(t, clipped.Valid())
	assert.False(t, box.Valid())
}

func TestBBox_ClipTo(t *testing.T) {
	ref := BBox{Ymin: 0.1, Xmin: 0.1, Ymax: 0.9, Xmax: 0.9}
	clipped := BBox{Ymin: 0, Xmin: 0.5, Ymax: 1, Xmax: 0.6}.ClipTo(ref)

	assert.Equal(t, BBox{Ymin: 0.1, Xmin: 0.5, Ymax: 0.9, Xmax: 0.6}, clipped)
}

func TestBBox_Valid(t *testing.T) {
	assert.True(t, FullImage.Valid())
	assert.True(t, BBox{0.2, 0.2, 0.2, 0.2}.Valid())
	assert.False(t, BBox{0.6, 0.2, 0.5, 0.4}.Valid(), "inverted y")
	assert.False(t, BBox{0.1, 0.5, 0.5, 0.4}.Valid(), "inverted x")
}

func TestBBox_ToRect(t *testing.T) {
	box := BBox{Ymin: 0, Xmin: 0, Ymax: 0.5, Xmax: 0.5}
	assert.Equal(t, image.Rect(0, 0, 100, 50), box.ToRect(200, 100))

	full := FullImage.ToRect(640, 480)
	assert.Equal(t, 640, full.Dx())
	assert.Equal(t, 480, full.Dy())
}

func TestBBox_Area(t *testing.T) {
	assert.InDelta(t, 0.25, BBox{0, 0, 0.5, 0.5}.Area(), 1e-6)
	assert.Zero(t, BBox{0.5, 0.5, 0.4, 0.9}.Area())
}

func TestDetection_JSON(t *testing.T) {
	d := Detection{
		Confidence: 0.75,
		Label:      "dog",
		Box:        BBox{Ymin: 0.1, Xmin: 0.2, Ymax: 0.3, Xmax: 0.4},
	}

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.ElementsMatch(t, []string{"confidence", "label", "box"}, keys(fields))

	box, ok := fields["box"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"ymin", "xmin", "ymax", "xmax"}, keys(box))
}

func TestLabels(t *testing.T) {
	detections := []Detection{{Label: "cat"}, {Label: "dog"}}
	assert.Equal(t, []string{"cat", "dog"}, Labels(detections))
	assert.Empty(t, Labels(nil))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
