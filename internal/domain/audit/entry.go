package audit

import (
	"errors"
	"time"
)

// Supported digest algorithms for report companions.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmSHA512 = "sha512"
)

// Entry is one row of the audit log: a summary of a finished verification run.
type Entry struct {
	Timestamp       time.Time
	RunID           string
	Operator        string
	Hostname        string
	Command         string
	State           string
	ExitCode        int
	Score           float64
	Findings        int
	Interrupted     bool
	Error           string
	DurationSeconds float64
}

// Validate checks the fields every row needs.
func (e *Entry) Validate() error {
	if e == nil {
		return errors.New("entry cannot be nil")
	}
	if e.RunID == "" {
		return errors.New("entry run ID cannot be empty")
	}
	if e.Timestamp.IsZero() {
		return errors.New("entry timestamp cannot be zero")
	}
	return nil
}

// SupportedAlgorithm reports whether alg can seal a report.
func SupportedAlgorithm(alg string) bool {
	return alg == AlgorithmSHA256 || alg == AlgorithmSHA512
}
