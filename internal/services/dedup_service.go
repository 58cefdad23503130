package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// DedupState is the outcome of comparing a fingerprint against the one on
// disk.
type DedupState int

const (
	// DedupUnknown means no fingerprint file exists yet (first run ever).
	DedupUnknown DedupState = iota
	// DedupMatch means the payload is identical to the last committed one.
	DedupMatch
	// DedupMismatch means the payload differs and should be uploaded.
	DedupMismatch
)

func (s DedupState) String() string {
	switch s {
	case DedupUnknown:
		return "unknown"
	case DedupMatch:
		return "match"
	case DedupMismatch:
		return "mismatch"
	default:
		return "invalid"
	}
}

// DedupService persists a content fingerprint of the last successfully
// synced payload in a single state file. Callers must hold the sync run
// lock; the file has exactly one writer at a time.
type DedupService struct {
	path string
}

// NewDedupService creates a DedupService backed by the given state file.
func NewDedupService(path string) *DedupService {
	return &DedupService{path: path}
}

// Fingerprint computes the hex SHA-256 of the payload bytes. Content
// identity is what matters here, not cryptographic strength.
func (s *DedupService) Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Check compares a fingerprint against the stored one.
func (s *DedupService) Check(fingerprint string) (DedupState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return DedupUnknown, nil
	}
	if err != nil {
		return DedupUnknown, fmt.Errorf("read fingerprint file: %w", err)
	}

	stored := strings.TrimSpace(string(data))
	if stored == fingerprint {
		return DedupMatch, nil
	}
	return DedupMismatch, nil
}

// Commit overwrites the stored fingerprint. Only called after a successful
// upload so a failed upload is retried on the next trigger.
func (s *DedupService) Commit(fingerprint string) error {
	if err := os.WriteFile(s.path, []byte(fingerprint), 0o644); err != nil {
		return fmt.Errorf("write fingerprint file: %w", err)
	}
	return nil
}
