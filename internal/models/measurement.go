package models

import "time"

// PoundsToKilograms is the conversion factor from the scale's native unit
// (pounds) to the kilograms Garmin expects.
const PoundsToKilograms = 0.45359237

// ScaleDevice is one device returned by the Wyze device listing.
type ScaleDevice struct {
	MAC      string `json:"mac"`
	Nickname string `json:"nickname"`
	Type     string `json:"product_type"`
}

// ScaleDeviceType is the product type Wyze reports for its scales.
const ScaleDeviceType = "WyzeScale"

// MeasurementRecord is the latest reading for one scale device.
//
// Weight is always present and stored in the scale's native unit (pounds).
// Every other metric is optional: a nil pointer means the scale did not
// report it, and that absence must survive all the way into the encoded
// payload rather than collapsing to zero.
type MeasurementRecord struct {
	MeasuredAt   time.Time
	Weight       float64
	BodyFat      *float64 // percent
	BodyWater    *float64 // percent hydration
	VisceralFat  *float64 // visceral fat mass / rating
	BoneMineral  *float64 // bone mass, kg
	Muscle       *float64 // muscle mass, kg
	BMR          *float64 // basal metabolic rate, kcal/day
	BodyType     *float64 // physique rating, 1-9
	MetabolicAge *float64 // years
	BMI          *float64
}

// WeightKilograms returns the weight converted from the native unit.
func (m *MeasurementRecord) WeightKilograms() float64 {
	return m.Weight * PoundsToKilograms
}

// Float64 returns a pointer to v, for building records with optional metrics.
func Float64(v float64) *float64 {
	return &v
}
