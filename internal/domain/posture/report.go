package posture

import (
	"context"
	"time"
)

// RunReport is the persisted record of one verification run.
type RunReport struct {
	ID               string
	Operator         string
	Hostname         string
	StartedAt        time.Time
	CompletedAt      time.Time
	State            string
	ExitCode         int
	Score            float64
	CriticalFindings []string
	Results          *AllCheckResults
}

// Repository persists run reports.
type Repository interface {
	// Save persists a run report, replacing any previous report with the same ID
	Save(ctx context.Context, report *RunReport) error

	// FindByID retrieves a run report by its ID
	FindByID(ctx context.Context, id string) (*RunReport, error)

	// FindAll retrieves every stored run report, newest first
	FindAll(ctx context.Context) ([]*RunReport, error)
}
