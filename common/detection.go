package common

import "fmt"

// Detection is the normalized record every detector returns.
//
// Records are created fresh for each inference call and carry no identity beyond their position in
// the returned slice.
type Detection struct {
	Confidence float32 `json:"confidence" yaml:"confidence"`
	Label      string  `json:"label"      yaml:"label"`
	Box        BBox    `json:"box"        yaml:"box"`
}

// String formats the detection for display.
func (d Detection) String() string {
	return fmt.Sprintf("Object %s (confidence %f): %s", d.Label, d.Confidence, d.Box)
}

// Labels returns the label of every detection, in order.
func Labels(detections []Detection) []string {
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, d.Label)
	}
	return labels
}
