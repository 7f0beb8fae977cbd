package postprocess

import (
	"github.com/nvr-ai/go-detect/common"
	"github.com/pkg/errors"
)

var (
	// ErrClassIndexOutOfRange is returned when a backend class index has no label.
	ErrClassIndexOutOfRange = errors.New("class index out of range")
	// ErrLengthMismatch is returned when parallel result arrays differ in length.
	ErrLengthMismatch = errors.New("result arrays differ in length")
	// ErrInvalidImageSize is returned when an image dimension is not positive.
	ErrInvalidImageSize = errors.New("image width and height must be positive")
	// ErrMalformedRecord is returned when a raw YOLO record lacks its corner points.
	ErrMalformedRecord = errors.New("malformed yolo record")
)

// Keys of the raw YOLO records.
const (
	KeyTopLeft     = "topleft"
	KeyBottomRight = "bottomright"
	KeyBox         = "box"
	KeyLabel       = "label"
	KeyConfidence  = "confidence"
)

// ScaleBox multiplies the x fields of box by xScale and the y fields by yScale.
//
// Example:
//
// ```go
//
//	pixels := common.BBox{Ymin: 0, Xmin: 0, Ymax: 50, Xmax: 100}
//	box := ScaleBox(pixels, 1.0/200, 1.0/100) // (0, 0, 0.5, 0.5)
//
// ```
func ScaleBox(box common.BBox, xScale, yScale float32) common.BBox {
	return common.BBox{
		Ymin: box.Ymin * yScale,
		Xmin: box.Xmin * xScale,
		Ymax: box.Ymax * yScale,
		Xmax: box.Xmax * xScale,
	}
}

// ConvertSSDResult maps the SSD backend's parallel arrays to detection records.
//
// Class indices are 1-based (0 is background), so index i is labelled labels[i-1].
//
// Arguments:
//   - classes: Backend class indices.
//   - scores: Confidence per detection.
//   - boxes: Normalized boxes per detection.
//   - labels: The closed vocabulary, usually models.VOCClasses.
//
// Returns:
//   - []common.Detection: One record per input detection, in input order.
//   - error: ErrLengthMismatch or ErrClassIndexOutOfRange.
func ConvertSSDResult(classes []int, scores []float32, boxes []common.BBox, labels []string) ([]common.Detection, error) {
	if len(classes) != len(scores) || len(classes) != len(boxes) {
		return nil, errors.Wrapf(ErrLengthMismatch,
			"classes=%d scores=%d boxes=%d", len(classes), len(scores), len(boxes))
	}

	results := make([]common.Detection, 0, len(classes))
	for i, classID := range classes {
		if classID < 1 || classID > len(labels) {
			return nil, errors.Wrapf(ErrClassIndexOutOfRange,
				"class %d not in 1..%d", classID, len(labels))
		}
		results = append(results, common.Detection{
			Confidence: scores[i],
			Label:      labels[classID-1],
			Box:        boxes[i],
		})
	}
	return results, nil
}

// Point is a pixel position as reported by the YOLO backend.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// YOLOPrediction is one record as the YOLO backend reports it, with pixel-space corners.
type YOLOPrediction struct {
	Label       string  `json:"label"`
	Confidence  float32 `json:"confidence"`
	TopLeft     Point   `json:"topleft"`
	BottomRight Point   `json:"bottomright"`
}

// ConvertYOLOResult rescales pixel-space predictions into normalized detection records.
//
// The corner points are dropped; label and confidence pass through unmodified.
//
// Arguments:
//   - preds: The backend predictions.
//   - width: The width of the image the predictions refer to.
//   - height: The height of the image the predictions refer to.
//
// Returns:
//   - []common.Detection: One record per prediction, in input order.
//   - error: ErrInvalidImageSize if width or height is not positive.
func ConvertYOLOResult(preds []YOLOPrediction, width, height int) ([]common.Detection, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidImageSize, "got %dx%d", width, height)
	}

	xScale, yScale := 1/float32(width), 1/float32(height)
	results := make([]common.Detection, 0, len(preds))
	for _, p := range preds {
		pixels := common.BBox{
			Ymin: float32(p.TopLeft.Y),
			Xmin: float32(p.TopLeft.X),
			Ymax: float32(p.BottomRight.Y),
			Xmax: float32(p.BottomRight.X),
		}
		results = append(results, common.Detection{
			Confidence: p.Confidence,
			Label:      p.Label,
			Box:        ScaleBox(pixels, xScale, yScale),
		})
	}
	return results, nil
}

// ConvertYOLOMaps applies the YOLO normalization to loosely typed records, in place.
//
// Each record must hold "topleft" and "bottomright" maps with numeric "x" and "y" entries. Those
// two keys are deleted and replaced by a single "box" holding a common.BBox; every other key
// (label, confidence, anything else the backend populated) is left untouched.
//
// Returns:
//   - []map[string]any: The same slice that was passed in.
//   - error: ErrInvalidImageSize or ErrMalformedRecord. Records before the failing one have
//     already been rewritten.
func ConvertYOLOMaps(records []map[string]any, width, height int) ([]map[string]any, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidImageSize, "got %dx%d", width, height)
	}

	xScale, yScale := 1/float32(width), 1/float32(height)
	for i, r := range records {
		xmin, ymin, err := corner(r, KeyTopLeft)
		if err != nil {
			return records, errors.Wrapf(err, "record %d", i)
		}
		xmax, ymax, err := corner(r, KeyBottomRight)
		if err != nil {
			return records, errors.Wrapf(err, "record %d", i)
		}

		r[KeyBox] = ScaleBox(common.BBox{Ymin: ymin, Xmin: xmin, Ymax: ymax, Xmax: xmax}, xScale, yScale)
		delete(r, KeyTopLeft)
		delete(r, KeyBottomRight)
	}
	return records, nil
}

func corner(record map[string]any, key string) (x, y float32, err error) {
	raw, ok := record[key]
	if !ok {
		return 0, 0, errors.Wrapf(ErrMalformedRecord, "missing %q", key)
	}

	switch p := raw.(type) {
	case Point:
		return float32(p.X), float32(p.Y), nil
	case map[string]any:
		x, okX := number(p["x"])
		y, okY := number(p["y"])
		if !okX || !okY {
			return 0, 0, errors.Wrapf(ErrMalformedRecord, "%q needs numeric x and y", key)
		}
		return x, y, nil
	default:
		return 0, 0, errors.Wrapf(ErrMalformedRecord, "%q has type %T", key, raw)
	}
}

func number(v any) (float32, bool) {
	switch n := v.(type) {
	case int:
		return float32(n), true
	case int32:
		return float32(n), true
	case int64:
		return float32(n), true
	case float32:
		return n, true
	case float64:
		return float32(n), true
	default:
		return 0, false
	}
}
