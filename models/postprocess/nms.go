package postprocess

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iouThreshold" yaml:"iouThreshold"` // Overlap at or above which a box is suppressed.
	ClassAware   bool    `json:"classAware"   yaml:"classAware"`   // If true, suppress only within same class.
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, still in descending confidence order. If no detections are
//     provided, returns nil.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if anchor.Box.IoU(detections[j].Box) >= config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
