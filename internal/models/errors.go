package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline conditions that carry no wrapped cause.
var (
	// ErrDeviceNotFound is returned when the Wyze account has no scale device.
	ErrDeviceNotFound = errors.New("no scale device found")

	// ErrNoMeasurement is returned when a scale exists but has no records.
	ErrNoMeasurement = errors.New("no measurement available for scale")

	// ErrSyncInProgress is returned to a trigger that lost the run lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// AuthenticationError indicates a failed login against either service.
// Service is "wyze" or "garmin".
type AuthenticationError struct {
	Service string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("authentication with %s failed", e.Service)
	}
	return fmt.Sprintf("authentication with %s failed: %v", e.Service, e.Cause)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// EncodingError indicates the measurement could not be encoded as a payload.
type EncodingError struct {
	Cause error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("payload encoding failed: %v", e.Cause)
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// UploadError indicates the destination rejected or never received the payload.
type UploadError struct {
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.Cause)
}

func (e *UploadError) Unwrap() error { return e.Cause }
