package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Foreground views row-major [anchors, numClasses] scores without the background column.
//
// Arguments:
//   - scores: Per-anchor class probabilities, background at column 0.
//   - anchors: Number of rows.
//   - numClasses: Number of columns including background.
//
// Returns:
//   - []float32: A contiguous [anchors, numClasses-1] copy. Column c holds class c+1.
//   - error: ErrLengthMismatch if scores is not anchors×numClasses.
func Foreground(scores []float32, anchors, numClasses int) ([]float32, error) {
	t, err := matrix(scores, anchors, numClasses)
	if err != nil || t == nil {
		return nil, err
	}

	v, err := t.Slice(nil, tensor.S(1, numClasses))
	if err != nil {
		return nil, errors.Wrap(err, "slice background")
	}
	switch data := v.Materialize().Data().(type) {
	case []float32:
		return data, nil
	case float32:
		return []float32{data}, nil
	default:
		return nil, errors.Errorf("unexpected foreground data %T", data)
	}
}

// BestClasses returns the highest scoring class of every anchor, background included.
//
// Ties resolve to the lowest class index.
func BestClasses(scores []float32, anchors, numClasses int) ([]int, error) {
	t, err := matrix(scores, anchors, numClasses)
	if err != nil || t == nil {
		return nil, err
	}

	best, err := t.Argmax(1)
	if err != nil {
		return nil, errors.Wrap(err, "argmax")
	}
	switch data := best.Data().(type) {
	case []int:
		return data, nil
	case int:
		return []int{data}, nil
	default:
		return nil, errors.Errorf("unexpected argmax data %T", data)
	}
}

// matrix returns nil without error when there are no anchors.
func matrix(scores []float32, anchors, numClasses int) (*tensor.Dense, error) {
	if numClasses < 2 {
		return nil, errors.Errorf("numClasses must include background and at least one class, got %d", numClasses)
	}
	if anchors < 0 || len(scores) != anchors*numClasses {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d scores for %d anchors of %d classes", len(scores), anchors, numClasses)
	}
	if anchors == 0 {
		return nil, nil
	}
	return tensor.New(tensor.WithShape(anchors, numClasses), tensor.WithBacking(scores)), nil
}
