// Package postprocess - Postprocessing and result normalization for detector backends.
package postprocess

import "github.com/nvr-ai/go-detect/common"

// Result represents a single raw detection before it is labelled.
type Result struct {
	// The bounding box of the result. Normalized for SSD, pixel space while decoding YOLO.
	Box common.BBox
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result, in the backend's own indexing.
	Class int
}

// Unzip splits results into the parallel class/score/box arrays backends natively produce.
func Unzip(results []Result) (classes []int, scores []float32, boxes []common.BBox) {
	classes = make([]int, 0, len(results))
	scores = make([]float32, 0, len(results))
	boxes = make([]common.BBox, 0, len(results))
	for _, r := range results {
		classes = append(classes, r.Class)
		scores = append(scores, r.Score)
		boxes = append(boxes, r.Box)
	}
	return classes, scores, boxes
}
