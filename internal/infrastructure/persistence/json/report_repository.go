package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
	"github.com/khanhnv2901/netguard/internal/shared/security"
)

// ReportFileName is the per-run report file inside <results_dir>/<run_id>/.
const ReportFileName = "report.json"

// ReportRepository implements the posture.Repository interface using JSON file storage
type ReportRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewReportRepository creates a new JSON-based run report repository
func NewReportRepository(resultsDir string) (*ReportRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ReportRepository{
		resultsDir: resultsDir,
	}, nil
}

// ValidateRunID rejects anything that is not a UUID, which also keeps IDs from
// being used as path components outside the results directory.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", sharedErrors.ErrInvalidRunID, id)
	}
	return nil
}

// ReportPath returns the file a run report is stored in.
func (r *ReportRepository) ReportPath(id string) (string, error) {
	if err := ValidateRunID(id); err != nil {
		return "", err
	}
	return security.ResolveWithin(r.resultsDir, id, ReportFileName)
}

// Save persists a run report, replacing any previous report with the same ID
func (r *ReportRepository) Save(ctx context.Context, report *posture.RunReport) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", sharedErrors.ErrRepositoryOperation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	filePath, err := r.ReportPath(report.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), constants.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(toDTO(report), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	if err := security.WriteFileAtomic(filePath, data, constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	return nil
}

// FindByID retrieves a run report by its ID
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*posture.RunReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.ReportPath(id)
	if err != nil {
		return nil, err
	}

	report, err := r.loadFromFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrReportNotFound, id)
	}
	return report, err
}

// FindAll retrieves every stored run report, newest first. Directories that do
// not hold a readable report are skipped.
func (r *ReportRepository) FindAll(ctx context.Context) ([]*posture.RunReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var reports []*posture.RunReport
	for _, entry := range entries {
		if !entry.IsDir() || ValidateRunID(entry.Name()) != nil {
			continue
		}

		report, err := r.loadFromFile(filepath.Join(r.resultsDir, entry.Name(), ReportFileName))
		if err != nil {
			continue
		}

		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}

// Helper methods

func (r *ReportRepository) loadFromFile(filePath string) (*posture.RunReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var dto runReportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	report, err := fromDTO(dto)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return report, nil
}
