package postprocess

import (
	"encoding/json"
	"testing"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleBox(t *testing.T) {
	box := common.BBox{Ymin: 10, Xmin: 20, Ymax: 30, Xmax: 40}

	tests := []struct {
		name   string
		xScale float32
		yScale float32
	}{
		{name: "identity", xScale: 1, yScale: 1},
		{name: "pixel to normalized", xScale: 1.0 / 200, yScale: 1.0 / 100},
		{name: "independent axes", xScale: 2, yScale: 0.5},
		{name: "zero", xScale: 0, yScale: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaled := ScaleBox(box, tt.xScale, tt.yScale)
			assert.Equal(t, box.Ymin*tt.yScale, scaled.Ymin)
			assert.Equal(t, box.Xmin*tt.xScale, scaled.Xmin)
			assert.Equal(t, box.Ymax*tt.yScale, scaled.Ymax)
			assert.Equal(t, box.Xmax*tt.xScale, scaled.Xmax)
		})
	}
}

func TestConvertSSDResult(t *testing.T) {
	boxes := []common.BBox{
		{Ymin: 0.1, Xmin: 0.1, Ymax: 0.5, Xmax: 0.5},
		{Ymin: 0.2, Xmin: 0.3, Ymax: 0.9, Xmax: 0.8},
	}

	t.Run("one-based labels", func(t *testing.T) {
		out, err := ConvertSSDResult([]int{1, 20}, []float32{0.9, 0.6}, boxes, models.VOCClasses)
		require.NoError(t, err)
		require.Len(t, out, 2)

		assert.Equal(t, "aeroplane", out[0].Label)
		assert.Equal(t, float32(0.9), out[0].Confidence)
		assert.Equal(t, boxes[0], out[0].Box)

		assert.Equal(t, "tvmonitor", out[1].Label)
		assert.Equal(t, boxes[1], out[1].Box)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := ConvertSSDResult(nil, nil, nil, models.VOCClasses)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("background index", func(t *testing.T) {
		_, err := ConvertSSDResult([]int{0}, []float32{0.9}, boxes[:1], models.VOCClasses)
		assert.ErrorIs(t, err, ErrClassIndexOutOfRange)
	})

	t.Run("index past vocabulary", func(t *testing.T) {
		_, err := ConvertSSDResult([]int{21}, []float32{0.9}, boxes[:1], models.VOCClasses)
		assert.ErrorIs(t, err, ErrClassIndexOutOfRange)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := ConvertSSDResult([]int{1, 2}, []float32{0.9}, boxes, models.VOCClasses)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}

func TestConvertYOLOResult(t *testing.T) {
	preds := []YOLOPrediction{
		{
			Label:       "person",
			Confidence:  0.8,
			TopLeft:     Point{X: 0, Y: 0},
			BottomRight: Point{X: 100, Y: 50},
		},
		{
			Label:       "dog",
			Confidence:  0.4,
			TopLeft:     Point{X: 50, Y: 25},
			BottomRight: Point{X: 200, Y: 100},
		},
	}

	out, err := ConvertYOLOResult(preds, 200, 100)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "person", out[0].Label)
	assert.Equal(t, float32(0.8), out[0].Confidence)
	assert.InDelta(t, 0, out[0].Box.Ymin, 1e-6)
	assert.InDelta(t, 0, out[0].Box.Xmin, 1e-6)
	assert.InDelta(t, 0.5, out[0].Box.Ymax, 1e-6)
	assert.InDelta(t, 0.5, out[0].Box.Xmax, 1e-6)

	assert.InDelta(t, 0.25, out[1].Box.Ymin, 1e-6)
	assert.InDelta(t, 0.25, out[1].Box.Xmin, 1e-6)
	assert.InDelta(t, 1, out[1].Box.Ymax, 1e-6)
	assert.InDelta(t, 1, out[1].Box.Xmax, 1e-6)

	for _, d := range out {
		assert.True(t, d.Box.Valid(), "box %s must be normalized", d.Box)
	}

	_, err = ConvertYOLOResult(preds, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidImageSize)
}

func TestConvertYOLOMaps(t *testing.T) {
	var records []map[string]any
	raw := `[{"label":"person","confidence":0.8,"topleft":{"x":0,"y":0},"bottomright":{"x":100,"y":50}},
	         {"label":"car","confidence":0.3,"topleft":{"x":20,"y":10},"bottomright":{"x":60,"y":90},"extra":true}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &records))

	out, err := ConvertYOLOMaps(records, 200, 100)
	require.NoError(t, err)
	require.Len(t, out, 2)

	for _, r := range out {
		assert.NotContains(t, r, KeyTopLeft)
		assert.NotContains(t, r, KeyBottomRight)
		assert.Contains(t, r, KeyBox)
		assert.Contains(t, r, KeyLabel)
		assert.Contains(t, r, KeyConfidence)
	}

	// The caller's maps are rewritten in place.
	assert.NotContains(t, records[0], KeyTopLeft)
	assert.Equal(t, true, records[1]["extra"])

	box, ok := out[0][KeyBox].(common.BBox)
	require.True(t, ok)
	assert.InDelta(t, 0, box.Ymin, 1e-6)
	assert.InDelta(t, 0, box.Xmin, 1e-6)
	assert.InDelta(t, 0.5, box.Ymax, 1e-6)
	assert.InDelta(t, 0.5, box.Xmax, 1e-6)
}

func TestConvertYOLOMaps_TypedPoints(t *testing.T) {
	records := []map[string]any{{
		KeyLabel:       "cat",
		KeyTopLeft:     Point{X: 10, Y: 10},
		KeyBottomRight: Point{X: 20, Y: 40},
	}}

	out, err := ConvertYOLOMaps(records, 40, 80)
	require.NoError(t, err)

	box := out[0][KeyBox].(common.BBox)
	assert.InDelta(t, 0.125, box.Ymin, 1e-6)
	assert.InDelta(t, 0.25, box.Xmin, 1e-6)
	assert.InDelta(t, 0.5, box.Ymax, 1e-6)
	assert.InDelta(t, 0.5, box.Xmax, 1e-6)
}

func TestConvertYOLOMaps_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
	}{
		{name: "missing topleft", record: map[string]any{KeyBottomRight: map[string]any{"x": 1, "y": 1}}},
		{name: "missing bottomright", record: map[string]any{KeyTopLeft: map[string]any{"x": 1, "y": 1}}},
		{name: "non numeric", record: map[string]any{
			KeyTopLeft:     map[string]any{"x": "a", "y": 1},
			KeyBottomRight: map[string]any{"x": 1, "y": 1},
		}},
		{name: "wrong type", record: map[string]any{KeyTopLeft: []int{1, 2}, KeyBottomRight: []int{3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertYOLOMaps([]map[string]any{tt.record}, 10, 10)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}

	_, err := ConvertYOLOMaps(nil, 10, -1)
	assert.ErrorIs(t, err, ErrInvalidImageSize)
}
