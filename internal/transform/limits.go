// Package transform turns head orientation and speaking activity into window transforms
package transform

import "fmt"

// Color is an RGB border color
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Green is the default tile border color
var Green = Color{R: 83, G: 253, B: 49}

// Limits holds the geometry and alpha constants of the transform
type Limits struct {
	MinWidth          float64
	MaxWidth          float64
	HeightRatio       float64 // height = width * HeightRatio
	DistanceScale     float64 // offset gain applied to the deviation length
	ProximityScale    float64 // deviation gain in the proximity ratio
	AlphaMin          float64
	AlphaMax          float64
	AlphaMinThreshold float64 // smoothed alpha below this snaps to AlphaMin
	GazeBand          float64 // fraction of the width span used for gaze labels
	BorderColor       Color
}

// DefaultLimits returns the values used in the study
func DefaultLimits() Limits {
	return Limits{
		MinWidth:          800,
		MaxWidth:          1000,
		HeightRatio:       1,
		DistanceScale:     10000,
		ProximityScale:    150,
		AlphaMin:          0,
		AlphaMax:          1,
		AlphaMinThreshold: 0.015,
		GazeBand:          0.1,
		BorderColor:       Green,
	}
}

// DefaultWidth is the width used when size does not track gaze
func (l Limits) DefaultWidth() float64 {
	return (l.MaxWidth + l.MinWidth) / 2
}

// span returns the band width used for the near-max / near-min tests
func (l Limits) span() float64 {
	return (l.MaxWidth - l.MinWidth) * l.GazeBand
}

// Validate checks the limits for consistency
func (l Limits) Validate() error {
	if l.MinWidth <= 0 || l.MaxWidth < l.MinWidth {
		return fmt.Errorf("invalid width range [%f, %f]", l.MinWidth, l.MaxWidth)
	}
	if l.AlphaMax < l.AlphaMin {
		return fmt.Errorf("invalid alpha range [%f, %f]", l.AlphaMin, l.AlphaMax)
	}
	if l.ProximityScale <= 0 {
		return fmt.Errorf("proximity_scale must be positive, got %f", l.ProximityScale)
	}
	if l.GazeBand < 0 || l.GazeBand > 0.5 {
		return fmt.Errorf("gaze_band must be between 0 and 0.5, got %f", l.GazeBand)
	}
	if l.HeightRatio <= 0 {
		return fmt.Errorf("height_ratio must be positive, got %f", l.HeightRatio)
	}
	return nil
}
