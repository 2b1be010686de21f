package undo

import "fmt"

// Feature tags the kind of edit an undo element reverts.
type Feature int

const (
	FeatureCut Feature = iota
	FeaturePaste
	FeatureCreateClip
	FeatureCreateTransition
	FeatureCreateSection
	FeatureCreateSectionClip
	FeatureDeleteSection
	FeaturePropertiesClip
	FeaturePropertiesTransition
	FeaturePropertiesSection
	FeaturePropertiesMaster
	FeatureSceneSplit
	FeatureAudioOverlay
	// FeatureLatest marks the snapshot of the live state recorded by the first
	// Undo after an edit.
	FeatureLatest
)

var featureNames = map[Feature]string{
	FeatureCut:                  "cut",
	FeaturePaste:                "paste",
	FeatureCreateClip:           "create-clip",
	FeatureCreateTransition:     "create-transition",
	FeatureCreateSection:        "create-section",
	FeatureCreateSectionClip:    "create-section-clip",
	FeatureDeleteSection:        "delete-section",
	FeaturePropertiesClip:       "properties-clip",
	FeaturePropertiesTransition: "properties-transition",
	FeaturePropertiesSection:    "properties-section",
	FeaturePropertiesMaster:     "properties-master",
	FeatureSceneSplit:           "scene-split",
	FeatureAudioOverlay:         "audio-overlay",
	FeatureLatest:               "latest",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// IsProperties reports whether successive pushes of f to one clip coalesce.
func (f Feature) IsProperties() bool {
	switch f {
	case FeaturePropertiesClip, FeaturePropertiesTransition, FeaturePropertiesSection, FeaturePropertiesMaster:
		return true
	default:
		return false
	}
}
