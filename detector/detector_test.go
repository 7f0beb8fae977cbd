package detector_test

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/detector/detectortest"
	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func init() {
	detector.Register("mock-a", func(*config.AppConfig) (detector.Detector, error) {
		return detectortest.NewMockDetector("mock-a", detectortest.Person()), nil
	})
	detector.Register("mock-b", func(*config.AppConfig) (detector.Detector, error) {
		return detectortest.NewMockDetector("mock-b"), nil
	})
	detector.Register("mock-broken", func(*config.AppConfig) (detector.Detector, error) {
		return nil, errBoom
	})
}

func TestRegister_Panics(t *testing.T) {
	assert.Panics(t, func() { detector.Register("mock-nil", nil) })
	assert.Panics(t, func() {
		detector.Register("mock-a", func(*config.AppConfig) (detector.Detector, error) { return nil, nil })
	})
}

func TestKinds(t *testing.T) {
	kinds := detector.Kinds()
	assert.Subset(t, kinds, []detector.Kind{"mock-a", "mock-b", "mock-broken"})
	for i := 1; i < len(kinds); i++ {
		assert.Less(t, kinds[i-1], kinds[i])
	}
}

func TestNew(t *testing.T) {
	d, err := detector.New("mock-a", &config.AppConfig{})
	require.NoError(t, err)
	assert.Equal(t, detector.Kind("mock-a"), d.Kind())

	dets, err := d.Detect(context.Background(), images.Blank(10, 10))
	require.NoError(t, err)
	assert.Len(t, dets, 1)
	require.NoError(t, d.Close())

	_, err = d.Detect(context.Background(), images.Blank(10, 10))
	assert.ErrorIs(t, err, detector.ErrClosed)

	_, err = detector.New("nope", &config.AppConfig{})
	assert.ErrorIs(t, err, detector.ErrUnknownKind)

	_, err = detector.New("mock-broken", &config.AppConfig{})
	assert.ErrorIs(t, err, errBoom)
}

func TestOpen(t *testing.T) {
	set, err := detector.Open([]string{"mock-b", "mock-a", "mock-a"}, &config.AppConfig{})
	require.NoError(t, err)
	assert.Equal(t, []detector.Kind{"mock-a", "mock-b"}, set.Kinds())

	d, err := set.Get("mock-a")
	require.NoError(t, err)
	assert.Equal(t, detector.Kind("mock-a"), d.Kind())

	_, err = set.Get("mock-c")
	assert.ErrorIs(t, err, detector.ErrUnknownKind)

	require.NoError(t, set.Close())
	assert.Empty(t, set.Kinds())
}

func TestOpen_FailureClosesLoaded(t *testing.T) {
	_, err := detector.Open([]string{"mock-a", "mock-broken"}, &config.AppConfig{})
	assert.ErrorIs(t, err, errBoom)

	_, err = detector.Open([]string{"missing"}, &config.AppConfig{})
	assert.ErrorIs(t, err, detector.ErrUnknownKind)
}

func TestSet_CloseCombinesErrors(t *testing.T) {
	a := detectortest.NewMockDetector("a")
	a.CloseErr = errors.New("a failed")
	b := detectortest.NewMockDetector("b")
	b.CloseErr = errors.New("b failed")

	err := detector.NewSet(a, b).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
	assert.Equal(t, 1, a.Closed())
	assert.Equal(t, 1, b.Closed())
}

func TestOptions(t *testing.T) {
	o := detector.Apply()
	assert.Equal(t, float32(0.5), o.Select(0.5))
	assert.Equal(t, float32(0.45), o.NMS(0.45))

	o = detector.Apply(detector.WithSelectThreshold(0.2), detector.WithNMSThreshold(0.3))
	assert.Equal(t, float32(0.2), o.Select(0.5))
	assert.Equal(t, float32(0.3), o.NMS(0.45))
}
