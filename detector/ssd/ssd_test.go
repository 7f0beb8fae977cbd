package ssd

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSize    = 4
	testAnchors = 4
	testClasses = 21
)

type fakeRunner struct {
	input  []uint8
	scores []float32
	boxes  []float32
	runErr error
	runs   int
	closed int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		input:  make([]uint8, testSize*testSize*images.Channels),
		scores: make([]float32, testAnchors*testClasses),
		boxes:  make([]float32, testAnchors*4),
	}
}

func (f *fakeRunner) Input() []uint8 { return f.input }
func (f *fakeRunner) Run() error {
	f.runs++
	return f.runErr
}
func (f *fakeRunner) Outputs() ([]float32, []float32) { return f.scores, f.boxes }
func (f *fakeRunner) Close() error {
	f.closed++
	return nil
}

func (f *fakeRunner) anchor(a int, box common.BBox, class int, score float32) {
	f.scores[a*testClasses+class] = score
	copy(f.boxes[a*4:], []float32{box.Ymin, box.Xmin, box.Ymax, box.Xmax})
}

func testConfig() config.SSDConfig {
	return config.SSDConfig{
		MemFraction:     1,
		SelectThreshold: 0.5,
		NMSThreshold:    0.45,
		TopK:            postprocess.DefaultTopK,
		InputSize:       testSize,
		NumAnchors:      testAnchors,
		NumClasses:      testClasses,
	}
}

func TestDetect(t *testing.T) {
	r := newFakeRunner()
	r.anchor(0, common.BBox{Ymin: 0.1, Xmin: 0.1, Ymax: 0.5, Xmax: 0.5}, 1, 0.9)
	// Overlaps anchor 0 with the same class and a lower score.
	r.anchor(1, common.BBox{Ymin: 0.12, Xmin: 0.1, Ymax: 0.5, Xmax: 0.5}, 1, 0.8)
	// Spills over the image edge.
	r.anchor(2, common.BBox{Ymin: 0.6, Xmin: 0.7, Ymax: 1.2, Xmax: 1.1}, 15, 0.7)
	// Below the select threshold.
	r.anchor(3, common.BBox{Ymin: 0, Xmin: 0, Ymax: 0.2, Xmax: 0.2}, 12, 0.3)

	d := newDetector(testConfig(), r)
	dets, err := d.Detect(context.Background(), images.Blank(640, 480))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "aeroplane", dets[0].Label)
	assert.Equal(t, float32(0.9), dets[0].Confidence)
	assert.Equal(t, "person", dets[1].Label)
	assert.Equal(t, common.BBox{Ymin: 0.6, Xmin: 0.7, Ymax: 1, Xmax: 1}, dets[1].Box)

	for _, det := range dets {
		assert.True(t, det.Box.Valid(), "box %s must be normalized", det.Box)
	}
	assert.Equal(t, 1, r.runs)
	assert.Equal(t, detector.KindSSD, d.Kind())
}

func TestDetect_ZeroThresholdKeepsBestClass(t *testing.T) {
	r := newFakeRunner()
	// Background dominates: every class scores 0.01.
	for c := 1; c < testClasses; c++ {
		r.scores[c] = 0.01
	}
	r.scores[0] = 0.8
	r.anchor(1, common.BBox{Ymin: 0.2, Xmin: 0.2, Ymax: 0.6, Xmax: 0.6}, 15, 0.55)
	r.scores[1*testClasses+12] = 0.3

	d := newDetector(testConfig(), r)
	dets, err := d.Detect(context.Background(), images.Blank(8, 8), detector.WithSelectThreshold(0))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "person", dets[0].Label)
	assert.Equal(t, float32(0.55), dets[0].Confidence)
}

func TestDetect_Overrides(t *testing.T) {
	r := newFakeRunner()
	r.anchor(0, common.BBox{Ymin: 0.1, Xmin: 0.1, Ymax: 0.5, Xmax: 0.5}, 1, 0.9)
	r.anchor(1, common.BBox{Ymin: 0.12, Xmin: 0.1, Ymax: 0.5, Xmax: 0.5}, 1, 0.8)
	r.anchor(3, common.BBox{Ymin: 0.7, Xmin: 0.7, Ymax: 0.9, Xmax: 0.9}, 12, 0.3)

	d := newDetector(testConfig(), r)
	dets, err := d.Detect(context.Background(), images.Blank(300, 300),
		detector.WithSelectThreshold(0.2),
		detector.WithNMSThreshold(0.99),
		detector.WithNetShape(image.Pt(512, 512)),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"aeroplane", "aeroplane", "dog"}, common.Labels(dets))
}

func TestDetect_FillsInput(t *testing.T) {
	r := newFakeRunner()
	img := image.NewRGBA(image.Rect(0, 0, testSize, testSize))
	for y := 0; y < testSize; y++ {
		for x := 0; x < testSize; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	d := newDetector(testConfig(), r)
	dets, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, dets)
	assert.Equal(t, []uint8{10, 20, 30}, r.input[:3])
	assert.Equal(t, []uint8{10, 20, 30}, r.input[len(r.input)-3:])
}

func TestDetect_Errors(t *testing.T) {
	t.Run("backend failure", func(t *testing.T) {
		r := newFakeRunner()
		r.runErr = errors.New("cuda out of memory")
		_, err := newDetector(testConfig(), r).Detect(context.Background(), images.Blank(8, 8))
		assert.ErrorContains(t, err, "cuda out of memory")
	})

	t.Run("short output", func(t *testing.T) {
		r := newFakeRunner()
		r.boxes = r.boxes[:4]
		_, err := newDetector(testConfig(), r).Detect(context.Background(), images.Blank(8, 8))
		assert.ErrorIs(t, err, postprocess.ErrLengthMismatch)
	})

	t.Run("cancelled", func(t *testing.T) {
		r := newFakeRunner()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newDetector(testConfig(), r).Detect(ctx, images.Blank(8, 8))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, r.runs)
	})

	t.Run("closed", func(t *testing.T) {
		r := newFakeRunner()
		d := newDetector(testConfig(), r)
		require.NoError(t, d.Close())
		require.NoError(t, d.Close())
		assert.Equal(t, 1, r.closed)

		_, err := d.Detect(context.Background(), images.Blank(8, 8))
		assert.ErrorIs(t, err, detector.ErrClosed)
	})
}

func TestValidate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, validate(cfg))

	cfg.NumClasses = 81
	assert.Error(t, validate(cfg))

	cfg = testConfig()
	cfg.MemFraction = 0
	assert.Error(t, validate(cfg))

	cfg = testConfig()
	cfg.InputSize = 0
	assert.Error(t, validate(cfg))
}

func TestNew_MissingModel(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.SSD.ModelPath = "does/not/exist.onnx"

	_, err = New(cfg.SSD, cfg.Runtime)
	assert.Error(t, err)
}

// TestIntegration runs the real model over a black 300x300 image. It needs the model under
// model_files/ and the onnxruntime shared library.
func TestIntegration(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	if _, err := os.Stat(cfg.SSD.ModelPath); err != nil {
		t.Skipf("ssd model not available: %v", err)
	}
	if _, err := os.Stat(providers.GetSharedLibPath(cfg.Runtime.LibraryPath)); err != nil {
		t.Skipf("onnxruntime library not available: %v", err)
	}

	d, err := New(cfg.SSD, cfg.Runtime)
	require.NoError(t, err)
	defer d.Close()

	dets, err := d.Detect(context.Background(), images.Blank(300, 300))
	require.NoError(t, err)
	for _, det := range dets {
		assert.True(t, det.Box.Valid())
	}
}
