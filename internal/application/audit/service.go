package audit

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/netguard/internal/domain/audit"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

// Service provides application-level audit operations
type Service struct {
	repo audit.Repository
}

// NewService creates a new audit service
func NewService(repo audit.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// RecordRun appends one audit row summarizing a finished run
func (s *Service) RecordRun(ctx context.Context, command string, report *posture.RunReport, interrupted bool, runErr error) error {
	if report == nil {
		return fmt.Errorf("cannot record audit entry for nil report")
	}

	entry := &audit.Entry{
		Timestamp:       report.CompletedAt,
		RunID:           report.ID,
		Operator:        report.Operator,
		Hostname:        report.Hostname,
		Command:         command,
		State:           report.State,
		ExitCode:        report.ExitCode,
		Score:           report.Score,
		Findings:        len(report.CriticalFindings),
		Interrupted:     interrupted,
		DurationSeconds: report.CompletedAt.Sub(report.StartedAt).Seconds(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

// Entries returns the audit log
func (s *Service) Entries(ctx context.Context) ([]*audit.Entry, error) {
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	return entries, nil
}

// SealReport writes a digest companion for a stored run report
func (s *Service) SealReport(ctx context.Context, runID, hashAlgorithm string) (string, error) {
	if !audit.SupportedAlgorithm(hashAlgorithm) {
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHashAlgorithm, hashAlgorithm)
	}

	hash, err := s.repo.SealReport(ctx, runID, hashAlgorithm)
	if err != nil {
		return "", fmt.Errorf("failed to seal report: %w", err)
	}

	return hash, nil
}

// VerifyIntegrity verifies a stored run report against its digest companion
func (s *Service) VerifyIntegrity(ctx context.Context, runID string) (bool, error) {
	valid, err := s.repo.VerifyReport(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("failed to verify integrity: %w", err)
	}

	return valid, nil
}
