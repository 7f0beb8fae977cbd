package client

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/detector/detectortest"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/server"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Client, *detectortest.MockDetector) {
	t.Helper()
	mock := detectortest.NewMockDetector(detector.KindSSD, detectortest.Person())
	s := server.New(config.ServerConfig{MaxBodyBytes: 1 << 20}, detector.NewSet(mock), metrics.New())

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return New(config.ClientConfig{BaseURL: ts.URL, Timeout: 5 * time.Second}), mock
}

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, images.Blank(20, 10)))
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	c, mock := setup(t)

	resp, err := c.Detect(context.Background(), detector.KindSSD, encodedPNG(t),
		detector.WithSelectThreshold(0.25), detector.WithNMSThreshold(0.6))
	require.NoError(t, err)

	assert.Equal(t, "ssd", resp.Detector)
	assert.Equal(t, 20, resp.Width)
	assert.Equal(t, 10, resp.Height)
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, "person", resp.Detections[0].Label)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, float32(0.25), calls[0].Options.Select(0))
	assert.Equal(t, float32(0.6), calls[0].Options.NMS(0))
}

func TestDetect_StatusErrors(t *testing.T) {
	c, _ := setup(t)

	_, err := c.Detect(context.Background(), detector.KindYOLO, encodedPNG(t))
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Message, "unknown detector")
	assert.NotEmpty(t, se.RequestID)

	_, err = c.Detect(context.Background(), detector.KindSSD, []byte("plain text"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnsupportedMediaType, se.StatusCode)
}

func TestDetectorsAndHealth(t *testing.T) {
	c, _ := setup(t)

	kinds, err := c.Detectors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ssd"}, kinds)

	assert.NoError(t, c.Health(context.Background()))
}

func TestUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(config.ClientConfig{BaseURL: url, Timeout: time.Second})
	err := c.Health(context.Background())
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
