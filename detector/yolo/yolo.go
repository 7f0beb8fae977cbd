// Package yolo adapts a darknet YOLO network served by OpenCV DNN to the detector.Detector
// capability.
package yolo

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	yolodecode "github.com/nvr-ai/go-detect/models/yolo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func init() {
	detector.Register(detector.KindYOLO, func(cfg *config.AppConfig) (detector.Detector, error) {
		return New(cfg.YOLO)
	})
}

// Detector runs YOLO inference and normalizes its output.
type Detector struct {
	mu     sync.Mutex
	cfg    config.YOLOConfig
	labels []string
	fwd    forwarder
	closed bool
}

// New loads the darknet weights and config once.
//
// OpenCV DNN has no per-network memory cap, so cfg.MemFraction is only reported.
//
// Arguments:
//   - cfg: The YOLO model configuration.
//
// Returns:
//   - *Detector: The loaded detector. The caller must Close it.
//   - error: An error if the names file or the network fails to load.
func New(cfg config.YOLOConfig) (*Detector, error) {
	classes, err := loadClasses(cfg.NamesPath)
	if err != nil {
		return nil, err
	}

	fwd, err := newGocvForwarder(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load yolo model %s", cfg.WeightsPath)
	}

	log := logger.Log()
	if cfg.Backend == "cuda" && cfg.MemFraction < 1 {
		log.Warn("opencv dnn cannot cap gpu memory, memfraction ignored",
			zap.Float64("memFraction", cfg.MemFraction))
	}
	log.Info("yolo model loaded",
		zap.String("weights", cfg.WeightsPath),
		zap.String("config", cfg.ConfigPath),
		zap.String("backend", cfg.Backend),
		zap.String("family", string(classes.Style)),
		zap.Int("classes", len(classes.Classes)),
		zap.Int("inputSize", cfg.InputSize),
	)
	return newDetector(cfg, classes.Names(), fwd), nil
}

func newDetector(cfg config.YOLOConfig, labels []string, fwd forwarder) *Detector {
	return &Detector{cfg: cfg, labels: labels, fwd: fwd}
}

// loadClasses reads a darknet names file, or falls back to COCO when path is empty.
func loadClasses(path string) (*models.OutputClassSet, error) {
	if path == "" {
		return models.COCOClassSet, nil
	}
	labels, err := models.LoadNames(path)
	if err != nil {
		return nil, errors.Wrap(err, "load yolo names")
	}
	return models.NewOutputClassSet(models.ModelFamilyCustom, labels, 0), nil
}

// Kind returns detector.KindYOLO.
func (d *Detector) Kind() detector.Kind {
	return detector.KindYOLO
}

// Detect runs the network over img. Labels are passed through from the names file.
//
// The network reports pixel-space corners, which are rescaled by 1/width and 1/height.
// detector.WithSelectThreshold overrides the class score threshold, detector.WithNetShape is
// ignored.
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

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(postprocess.ErrInvalidImageSize, "got %dx%d", w, h)
	}
	layers, err := d.fwd.Forward(img)
	if err != nil {
		return nil, errors.Wrap(err, "run yolo")
	}

	preds, err := yolodecode.Decode(layers, w, h, yolodecode.DecodeConfig{
		Threshold:    o.Select(d.cfg.Threshold),
		NMSThreshold: o.NMS(d.cfg.NMSThreshold),
		Labels:       d.labels,
	})
	if err != nil {
		return nil, err
	}

	dets, err := postprocess.ConvertYOLOResult(preds, w, h)
	if err != nil {
		return nil, err
	}

	logger.Log().Debug("yolo detect",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("detections", len(dets)),
	)
	return dets, nil
}

// Close releases the network. Later Detect calls fail with detector.ErrClosed.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.fwd.Close()
}
