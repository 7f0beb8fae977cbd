// Package yolo decodes raw Darknet YOLO layer outputs into pixel-space predictions.
package yolo

import (
	"strconv"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
)

const (
	// DefaultThreshold is the minimum class score a prediction needs to be reported.
	DefaultThreshold float32 = 0.1
	// DefaultNMSThreshold is the IoU at or above which overlapping same-class boxes are merged.
	DefaultNMSThreshold float32 = 0.4

	// rowPrefix is the number of leading values per row: cx, cy, w, h and objectness.
	rowPrefix = 5
)

// Layer is one YOLO output layer flattened row-major as [rows, Cols].
type Layer struct {
	Data []float32
	Cols int
}

// DecodeConfig holds the thresholds and vocabulary used by Decode.
type DecodeConfig struct {
	Threshold    float32  `json:"threshold"    yaml:"threshold"`
	NMSThreshold float32  `json:"nmsThreshold" yaml:"nmsThreshold"`
	Labels       []string `json:"labels"       yaml:"labels"`
}

// Decode turns YOLO layer rows into predictions for an image of the given size.
//
// Each row is (cx, cy, w, h, objectness, class scores...) with the geometry normalized to the
// network input. Darknet already folds objectness into the class scores, so a row's confidence
// is its best class score. Rows at or below cfg.Threshold are dropped, survivors go through
// class-aware greedy NMS, and the remaining boxes are converted to pixel corners clamped to the
// image.
//
// Arguments:
//   - layers: The unconnected output layers of the network.
//   - width: Width of the source image in pixels.
//   - height: Height of the source image in pixels.
//   - cfg: Thresholds and labels.
//
// Returns:
//   - []postprocess.YOLOPrediction: Predictions sorted by descending confidence.
//   - error: If a layer is malformed or the image size is not positive.
func Decode(layers []Layer, width, height int, cfg DecodeConfig) ([]postprocess.YOLOPrediction, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(postprocess.ErrInvalidImageSize, "got %dx%d", width, height)
	}

	var candidates []postprocess.Result
	for li, layer := range layers {
		if layer.Cols <= rowPrefix {
			return nil, errors.Errorf("layer %d: need more than %d columns, got %d", li, rowPrefix, layer.Cols)
		}
		if len(layer.Data)%layer.Cols != 0 {
			return nil, errors.Wrapf(postprocess.ErrLengthMismatch,
				"layer %d: %d values is not a multiple of %d columns", li, len(layer.Data), layer.Cols)
		}

		for off := 0; off < len(layer.Data); off += layer.Cols {
			row := layer.Data[off : off+layer.Cols]
			class, score := best(row[rowPrefix:])
			if score <= cfg.Threshold || math32.IsNaN(score) {
				continue
			}
			cx, cy, w, h := row[0], row[1], row[2], row[3]
			candidates = append(candidates, postprocess.Result{
				Box: common.BBox{
					Ymin: cy - h/2,
					Xmin: cx - w/2,
					Ymax: cy + h/2,
					Xmax: cx + w/2,
				}.Clip(),
				Score: score,
				Class: class,
			})
		}
	}

	candidates = postprocess.SortTopK(candidates, 0)
	kept := postprocess.ApplyGreedyNMS(candidates, &postprocess.NMSConfig{
		IoUThreshold: cfg.NMSThreshold,
		ClassAware:   true,
	})

	preds := make([]postprocess.YOLOPrediction, 0, len(kept))
	for _, r := range kept {
		rect := r.Box.ToRect(width, height)
		preds = append(preds, postprocess.YOLOPrediction{
			Label:       label(cfg.Labels, r.Class),
			Confidence:  r.Score,
			TopLeft:     postprocess.Point{X: rect.Min.X, Y: rect.Min.Y},
			BottomRight: postprocess.Point{X: rect.Max.X, Y: rect.Max.Y},
		})
	}
	return preds, nil
}

func best(scores []float32) (int, float32) {
	idx, top := 0, scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > top {
			idx, top = i, scores[i]
		}
	}
	return idx, top
}

// label falls back to the numeric index for classes outside the vocabulary.
func label(labels []string, class int) string {
	if class >= 0 && class < len(labels) {
		return labels[class]
	}
	return strconv.Itoa(class)
}
