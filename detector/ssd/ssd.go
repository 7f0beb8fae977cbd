// Package ssd adapts a single-shot multibox detector (SSD-300, VOC classes) served by ONNX
// Runtime to the detector.Detector capability.
package ssd

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func init() {
	detector.Register(detector.KindSSD, func(cfg *config.AppConfig) (detector.Detector, error) {
		return New(cfg.SSD, cfg.Runtime)
	})
}

// Detector runs SSD inference and normalizes its output.
type Detector struct {
	mu     sync.Mutex
	cfg    config.SSDConfig
	labels []string
	runner runner
	closed bool
}

// New loads the SSD model once. The runtime's memory fraction is replaced by cfg.MemFraction.
//
// Arguments:
//   - cfg: The SSD model configuration.
//   - runtime: The execution provider configuration.
//
// Returns:
//   - *Detector: The loaded detector. The caller must Close it.
//   - error: An error if the model or the runtime fails to load.
func New(cfg config.SSDConfig, runtime providers.Config) (*Detector, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	runtime.MemFraction = cfg.MemFraction

	r, err := newORTRunner(cfg, runtime)
	if err != nil {
		return nil, errors.Wrapf(err, "load ssd model %s", cfg.ModelPath)
	}

	logger.Log().Info("ssd model loaded",
		zap.String("model", cfg.ModelPath),
		zap.String("backend", string(runtime.Backend)),
		zap.Float64("memFraction", cfg.MemFraction),
		zap.Int64("gpuMemLimit", runtime.GPUMemLimit()),
		zap.Int("inputSize", cfg.InputSize),
	)
	return newDetector(cfg, r), nil
}

func newDetector(cfg config.SSDConfig, r runner) *Detector {
	return &Detector{cfg: cfg, labels: models.VOCClassSet.Names(), runner: r}
}

func validate(cfg config.SSDConfig) error {
	if cfg.NumClasses != len(models.VOCClasses)+1 {
		return errors.Errorf("ssd expects %d classes including background, got %d",
			len(models.VOCClasses)+1, cfg.NumClasses)
	}
	if cfg.InputSize <= 0 || cfg.NumAnchors <= 0 {
		return errors.Errorf("ssd input size and anchors must be positive, got %d and %d",
			cfg.InputSize, cfg.NumAnchors)
	}
	if cfg.MemFraction <= 0 || cfg.MemFraction > 1 {
		return errors.Errorf("ssd memory fraction must be in (0, 1], got %g", cfg.MemFraction)
	}
	return nil
}

// Kind returns detector.KindSSD.
func (d *Detector) Kind() detector.Kind {
	return detector.KindSSD
}

// Detect runs the model over img and returns VOC-labelled detections.
//
// The image is stretched to the fixed network input, so boxes stay relative to the original
// image. Candidates above the select threshold are clipped to the image, the best TopK are kept,
// and class-aware NMS removes duplicates. detector.WithNetShape is ignored.
//
// Arguments:
//   - ctx: Checked once before inference starts.
//   - img: The image to run detection over.
//   - opts: Threshold overrides.
//
// Returns:
//   - []common.Detection: Detections in descending confidence order.
//   - error: detector.ErrClosed, the context error, or a backend failure.
func (d *Detector) Detect(ctx context.Context, img image.Image, opts ...detector.Option) ([]common.Detection, error) {
	o := detector.Apply(opts...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, detector.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	warped, err := images.Warp(img, d.cfg.InputSize, d.cfg.InputSize)
	if err != nil {
		return nil, err
	}
	if err := images.FillNHWC(warped, d.runner.Input()); err != nil {
		return nil, errors.Wrap(err, "fill ssd input")
	}
	if err := d.runner.Run(); err != nil {
		return nil, errors.Wrap(err, "run ssd")
	}

	scores, boxes, err := d.outputs()
	if err != nil {
		return nil, err
	}

	results, err := postprocess.SelectAnchors(scores, boxes, d.cfg.NumClasses, o.Select(d.cfg.SelectThreshold))
	if err != nil {
		return nil, err
	}
	results = postprocess.ClipToReference(results, common.FullImage)
	results = postprocess.SortTopK(results, d.cfg.TopK)
	results = postprocess.ApplyGreedyNMS(results, &postprocess.NMSConfig{
		IoUThreshold: o.NMS(d.cfg.NMSThreshold),
		ClassAware:   true,
	})

	classes, confidences, bboxes := postprocess.Unzip(results)
	dets, err := postprocess.ConvertSSDResult(classes, confidences, bboxes, d.labels)
	if err != nil {
		return nil, err
	}

	logger.Log().Debug("ssd detect",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("detections", len(dets)),
	)
	return dets, nil
}

// outputs returns the raw [anchors, classes] scores and [anchors, 4] boxes.
func (d *Detector) outputs() (scores, boxes []float32, err error) {
	scores, boxes = d.runner.Outputs()
	anchors := d.cfg.NumAnchors

	if len(scores) != anchors*d.cfg.NumClasses {
		return nil, nil, errors.Wrapf(postprocess.ErrLengthMismatch,
			"scores output has %d values, want %dx%d", len(scores), anchors, d.cfg.NumClasses)
	}
	if len(boxes) != anchors*4 {
		return nil, nil, errors.Wrapf(postprocess.ErrLengthMismatch,
			"boxes output has %d values, want %dx4", len(boxes), anchors)
	}
	return scores, boxes, nil
}

// Close releases the session. Later Detect calls fail with detector.ErrClosed.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.runner.Close()
}
