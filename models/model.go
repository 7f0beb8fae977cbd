// Package models - Label vocabularies for the supported detector families.
package models

// Family identifies the naming convention / dataset a backend was trained on.
type Family string

const (
	// ModelFamilyVOC is the Pascal VOC family: 20 classes + background.
	ModelFamilyVOC Family = "voc"
	// ModelFamilyCOCO is the COCO family as shipped with darknet: 80 classes, no background.
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyCustom is any backend-defined vocabulary loaded from a names file.
	ModelFamilyCustom Family = "custom"
)

// VOCClassSet is the SSD vocabulary keyed by backend index (1-based).
var VOCClassSet = NewOutputClassSet(ModelFamilyVOC, VOCClasses, 1)

// COCOClassSet is the default YOLO vocabulary keyed by backend index (0-based).
var COCOClassSet = NewOutputClassSet(ModelFamilyCOCO, COCOClasses, 0)
