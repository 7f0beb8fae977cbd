package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// VOCClasses is the closed, ordered vocabulary of the SSD backend.
//
// The network itself emits 21 classes with background at index 0, so backend index i maps to
// VOCClasses[i-1].
var VOCClasses = []string{
	"aeroplane", "bicycle", "bird", "boat",
	"bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse",
	"motorbike", "person", "pottedplant",
	"sheep", "sofa", "train", "tvmonitor",
}

// COCOClasses is the default darknet vocabulary (coco.names), indexed from 0.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "sofa", "pottedplant", "bed", "diningtable", "toilet", "tvmonitor", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style Family `json:"style" yaml:"style"`
	// Classes that are supported and mappable.
	Classes []OutputClass `json:"classes" yaml:"classes"`
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a class set from an ordered list of names.
//
// Arguments:
//   - style: The family the labels belong to.
//   - names: The ordered label names.
//   - offset: The backend index of names[0] (1 for backends that reserve 0 for background).
//
// Returns:
//   - *OutputClassSet: The class set with its name index built.
func NewOutputClassSet(style Family, names []string, offset int) *OutputClassSet {
	set := &OutputClassSet{Style: style, Classes: make([]OutputClass, 0, len(names))}
	for i, name := range names {
		set.Classes = append(set.Classes, OutputClass{Index: i + offset, Name: name})
	}
	set.BuildNameIndexMap()
	return set
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// GetName returns the class name for a backend index.
func (s *OutputClassSet) GetName(idx int) (string, error) {
	for _, c := range s.Classes {
		if c.Index == idx {
			return c.Name, nil
		}
	}
	return "", errors.Errorf("index %d out of range for style %q", idx, s.Style)
}

// GetIndex returns the backend index for a class name.
func (s *OutputClassSet) GetIndex(name string) (int, error) {
	if s.nameToIdx == nil {
		s.BuildNameIndexMap()
	}
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in style %q", name, s.Style)
	}
	return idx, nil
}

// Names returns the label names in index order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, 0, len(s.Classes))
	for _, c := range s.Classes {
		names = append(names, c.Name)
	}
	return names
}

// LoadNames reads a darknet-style names file, one label per line.
//
// Windows line endings and blank lines are tolerated; the order of the remaining lines is the
// backend's class order.
//
// Arguments:
//   - path: The path of the names file.
//
// Returns:
//   - []string: The labels in file order.
//   - error: An error if the file cannot be read or holds no labels.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open names file %s", path)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimRight(scanner.Text(), "\r"))
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read names file %s", path)
	}
	if len(names) == 0 {
		return nil, errors.Errorf("names file %s is empty", path)
	}
	return names, nil
}
