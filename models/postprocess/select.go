package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/common"
	"github.com/pkg/errors"
)

// DefaultTopK is the number of candidates kept between sorting and NMS.
const DefaultTopK = 400

// SelectAnchors picks every (anchor, class) pair whose score exceeds threshold.
//
// Background (class 0) is never selected. One anchor may yield several results when more than one
// class clears the threshold. A zero threshold selects each anchor's best class instead, and drops
// anchors whose best class is background.
//
// Arguments:
//   - scores: Per-anchor class probabilities, row-major [anchors, numClasses].
//   - boxes: Per-anchor decoded boxes, row-major [anchors, 4] as (ymin, xmin, ymax, xmax).
//   - numClasses: Number of classes including background.
//   - threshold: Minimum score, exclusive.
//
// Returns:
//   - []Result: The selected candidates, in anchor order.
//   - error: ErrLengthMismatch if the buffers disagree on the anchor count.
func SelectAnchors(scores, boxes []float32, numClasses int, threshold float32) ([]Result, error) {
	if numClasses < 2 {
		return nil, errors.Errorf("numClasses must include background and at least one class, got %d", numClasses)
	}
	if len(boxes)%4 != 0 || len(scores) != len(boxes)/4*numClasses {
		return nil, errors.Wrapf(ErrLengthMismatch,
			"%d scores for %d classes vs %d box coordinates", len(scores), numClasses, len(boxes))
	}

	anchors := len(boxes) / 4
	if threshold <= 0 {
		return selectBest(scores, boxes, anchors, numClasses)
	}

	fg, err := Foreground(scores, anchors, numClasses)
	if err != nil {
		return nil, err
	}

	cols := numClasses - 1
	var results []Result
	for a := 0; a < anchors; a++ {
		for c, score := range fg[a*cols : (a+1)*cols] {
			if score <= threshold {
				continue
			}
			results = append(results, Result{Box: anchorBox(boxes, a), Score: score, Class: c + 1})
		}
	}
	return results, nil
}

func selectBest(scores, boxes []float32, anchors, numClasses int) ([]Result, error) {
	best, err := BestClasses(scores, anchors, numClasses)
	if err != nil {
		return nil, err
	}

	var results []Result
	for a, c := range best {
		if c == 0 {
			continue
		}
		results = append(results, Result{Box: anchorBox(boxes, a), Score: scores[a*numClasses+c], Class: c})
	}
	return results, nil
}

func anchorBox(boxes []float32, a int) common.BBox {
	return common.BBox{
		Ymin: boxes[a*4],
		Xmin: boxes[a*4+1],
		Ymax: boxes[a*4+2],
		Xmax: boxes[a*4+3],
	}
}

// ClipToReference clips every box so it lies inside ref, in place.
func ClipToReference(results []Result, ref common.BBox) []Result {
	for i := range results {
		results[i].Box = results[i].Box.ClipTo(ref)
	}
	return results
}

// SortTopK sorts results by descending score and keeps at most k of them.
//
// Ties keep their original order. A non-positive k keeps everything.
func SortTopK(results []Result, k int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
