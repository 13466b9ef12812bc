package audit

import "context"

// Repository defines the interface for audit log persistence
type Repository interface {
	// AppendEntry appends a single row to the audit log
	AppendEntry(ctx context.Context, entry *Entry) error

	// Entries returns every row in the audit log, oldest first
	Entries(ctx context.Context) ([]*Entry, error)

	// SealReport hashes a stored run report and writes the digest companion file
	SealReport(ctx context.Context, runID, algorithm string) (string, error)

	// VerifyReport recomputes a report digest and compares it with its companion file
	VerifyReport(ctx context.Context, runID string) (bool, error)
}
