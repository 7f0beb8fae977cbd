// Package detector defines the common object detector capability and a registry of backends.
//
// Backends register a Factory from their package init, the same way database/sql drivers do, so
// a binary opts into a backend with a blank import:
//
// ```go
//
//	import _ "github.com/nvr-ai/go-detect/detector/ssd"
//
//	d, err := detector.New(detector.KindSSD, cfg)
//
// ```
package detector

import (
	"context"
	"image"
	"sort"
	"sync"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/pkg/errors"
)

// Kind names a detector backend.
type Kind string

const (
	// KindSSD is the single-shot detector served by ONNX Runtime.
	KindSSD Kind = "ssd"
	// KindYOLO is the darknet YOLO detector served by OpenCV DNN.
	KindYOLO Kind = "yolo"
)

var (
	// ErrUnknownKind is returned when no factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown detector kind")
	// ErrClosed is returned by Detect after Close.
	ErrClosed = errors.New("detector is closed")
)

// Detector runs object detection over a single image.
//
// Implementations hold a loaded backend session. They are safe for concurrent use, but calls on
// one detector are serialized.
type Detector interface {
	// Detect returns the detections in img with boxes normalized to [0, 1].
	Detect(ctx context.Context, img image.Image, opts ...Option) ([]common.Detection, error)
	// Kind reports which backend produced the detector.
	Kind() Kind
	// Close releases the backend session. Detect fails with ErrClosed afterwards.
	Close() error
}

// Factory loads a detector from the application configuration.
type Factory func(cfg *config.AppConfig) (Detector, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Kind]Factory)
)

// Register makes a detector backend available under kind.
// It panics if factory is nil or kind is already registered.
func Register(kind Kind, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("detector: Register factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic("detector: Register called twice for kind " + string(kind))
	}
	factories[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func Kinds() []Kind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New loads the detector registered under kind.
//
// Arguments:
//   - kind: The backend to load.
//   - cfg: The application configuration.
//
// Returns:
//   - Detector: The loaded detector. The caller must Close it.
//   - error: ErrUnknownKind, or the backend's load error.
func New(kind Kind, cfg *config.AppConfig) (Detector, error) {
	factoriesMu.RLock()
	factory, ok := factories[kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q (forgotten import?)", kind)
	}

	d, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s detector", kind)
	}
	return d, nil
}
