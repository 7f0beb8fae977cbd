// Package detectortest provides an in-memory detector.Detector for tests.
package detectortest

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/detector"
)

// MockDetector returns a fixed set of detections and records every call.
//
// @example
// mock := detectortest.NewMockDetector(detector.KindSSD, detectortest.Person())
// dets, err := mock.Detect(ctx, img)
type MockDetector struct {
	KindValue  detector.Kind
	Detections []common.Detection
	// Err, when set, is returned by Detect.
	Err error
	// CloseErr, when set, is returned by Close.
	CloseErr error

	mu      sync.Mutex
	calls   []Call
	closed  bool
	closeCt int
}

// Call is one recorded Detect invocation.
type Call struct {
	Bounds  image.Rectangle
	Options detector.Options
}

// NewMockDetector creates a mock of the given kind that always returns dets.
func NewMockDetector(kind detector.Kind, dets ...common.Detection) *MockDetector {
	return &MockDetector{KindValue: kind, Detections: dets}
}

// Detect records the call and returns the configured detections.
func (m *MockDetector) Detect(ctx context.Context, img image.Image, opts ...detector.Option) ([]common.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, detector.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls = append(m.calls, Call{Bounds: img.Bounds(), Options: detector.Apply(opts...)})
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]common.Detection, len(m.Detections))
	copy(out, m.Detections)
	return out, nil
}

// Kind returns the configured kind.
func (m *MockDetector) Kind() detector.Kind {
	return m.KindValue
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCt++
	return m.CloseErr
}

// Calls returns a copy of the recorded calls.
func (m *MockDetector) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Closed reports how many times Close was called.
func (m *MockDetector) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCt
}

// Person is a sample detection covering the top-left quarter of the image.
func Person() common.Detection {
	return common.Detection{
		Confidence: 0.9,
		Label:      "person",
		Box:        common.BBox{Ymin: 0, Xmin: 0, Ymax: 0.5, Xmax: 0.5},
	}
}
