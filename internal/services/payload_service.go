package services

import (
	"fmt"
	"math"
	"os"

	"github.com/scalesync/server/internal/fit"
	"github.com/scalesync/server/internal/models"
)

// defaultPhysiqueRating is used when the scale reports no body type. Wyze
// frequently omits it and Garmin treats 5 as the neutral rating.
const defaultPhysiqueRating = 5

// activeMetFactor derives the active metabolic estimate from the basal one.
const activeMetFactor = 1.25

// PayloadService turns a measurement record into the FIT payload file the
// destination expects.
type PayloadService struct {
	path string
}

// NewPayloadService creates a PayloadService writing payloads to path.
func NewPayloadService(path string) *PayloadService {
	return &PayloadService{path: path}
}

// Path returns the on-disk location of the current payload.
func (s *PayloadService) Path() string {
	return s.path
}

// weightScaleFromRecord maps a measurement onto the FIT weight-scale
// message. Absent metrics stay absent; the two documented exceptions are
// the physique rating default and the derived active metabolic rate.
func weightScaleFromRecord(record *models.MeasurementRecord) fit.WeightScale {
	m := fit.WeightScale{
		Timestamp:         record.MeasuredAt,
		WeightKG:          record.WeightKilograms(),
		PercentFat:        record.BodyFat,
		PercentHydration:  record.BodyWater,
		VisceralFatMass:   record.VisceralFat,
		BoneMass:          record.BoneMineral,
		MuscleMass:        record.Muscle,
		BasalMet:          record.BMR,
		PhysiqueRating:    record.BodyType,
		MetabolicAge:      record.MetabolicAge,
		VisceralFatRating: record.VisceralFat,
		BMI:               record.BMI,
	}

	if m.PhysiqueRating == nil {
		m.PhysiqueRating = models.Float64(defaultPhysiqueRating)
	}
	if record.BMR != nil {
		m.ActiveMet = models.Float64(math.Round(*record.BMR * activeMetFactor))
	}
	return m
}

// Build encodes a record into FIT payload bytes. Deterministic for a given
// record apart from the record's own timestamp, which is embedded.
func (s *PayloadService) Build(record *models.MeasurementRecord) ([]byte, error) {
	if record == nil {
		return nil, &models.EncodingError{Cause: fmt.Errorf("nil measurement record")}
	}
	if record.Weight <= 0 {
		return nil, &models.EncodingError{Cause: fmt.Errorf("measurement has no weight")}
	}

	enc := fit.NewWeightEncoder()
	enc.WriteFileInfo(record.MeasuredAt)
	enc.WriteFileCreator()
	enc.WriteDeviceInfo(record.MeasuredAt)
	enc.WriteWeightScale(weightScaleFromRecord(record))
	return enc.Finish(), nil
}

// Write stores the payload at its well-known path, replacing any previous
// payload. At most one payload file exists at any time.
func (s *PayloadService) Write(payload []byte) error {
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write payload file: %w", err)
	}
	return nil
}
