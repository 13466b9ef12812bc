package cmd

import "fmt"

// ReportNotFoundError indicates a run report lookup failure.
type ReportNotFoundError struct {
	ID string
}

func (e *ReportNotFoundError) Error() string {
	return fmt.Sprintf("run report %s not found", e.ID)
}

// PolicyError signals that the configured policy could not be loaded or is invalid.
type PolicyError struct {
	Err error
}

func (e *PolicyError) Error() string {
	if e.Err == nil {
		return "invalid policy configuration"
	}
	return fmt.Sprintf("invalid policy configuration: %v", e.Err)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}
