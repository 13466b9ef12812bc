package json

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/csv"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/audit"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
	"github.com/khanhnv2901/netguard/internal/shared/security"
)

// AuditFileName is the audit log kept at the root of the results directory.
const AuditFileName = "audit.csv"

var auditHeader = []string{
	"timestamp",
	"run_id",
	"operator",
	"hostname",
	"command",
	"state",
	"exit_code",
	"score",
	"findings",
	"interrupted",
	"error",
	"duration_seconds",
}

// AuditRepository implements the audit.Repository interface using CSV file storage
type AuditRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewAuditRepository creates a new CSV-based audit repository
func NewAuditRepository(resultsDir string) (*AuditRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &AuditRepository{
		resultsDir: resultsDir,
	}, nil
}

// AppendEntry appends a single row, writing the header when the log is new
func (r *AuditRepository) AppendEntry(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	filePath := filepath.Join(r.resultsDir, AuditFileName)

	fileExists := true
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		fileExists = false
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if !fileExists {
		if err := writer.Write(auditHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	record := []string{
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.RunID,
		entry.Operator,
		entry.Hostname,
		entry.Command,
		entry.State,
		strconv.Itoa(entry.ExitCode),
		strconv.FormatFloat(entry.Score, 'f', 1, 64),
		strconv.Itoa(entry.Findings),
		strconv.FormatBool(entry.Interrupted),
		entry.Error,
		fmt.Sprintf("%.3f", entry.DurationSeconds),
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush audit file: %w", err)
	}
	return nil
}

// Entries returns every row in the audit log, oldest first
func (r *AuditRepository) Entries(ctx context.Context) ([]*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := os.Open(filepath.Join(r.resultsDir, AuditFileName))
	if os.IsNotExist(err) {
		return []*audit.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(auditHeader)

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*audit.Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	entries := make([]*audit.Entry, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		timestamp, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		exitCode, _ := strconv.Atoi(record[6])
		score, _ := strconv.ParseFloat(record[7], 64)
		findings, _ := strconv.Atoi(record[8])
		interrupted, _ := strconv.ParseBool(record[9])
		duration, _ := strconv.ParseFloat(record[11], 64)

		entries = append(entries, &audit.Entry{
			Timestamp:       timestamp,
			RunID:           record[1],
			Operator:        record[2],
			Hostname:        record[3],
			Command:         record[4],
			State:           record[5],
			ExitCode:        exitCode,
			Score:           score,
			Findings:        findings,
			Interrupted:     interrupted,
			Error:           record[10],
			DurationSeconds: duration,
		})
	}

	return entries, nil
}

// SealReport hashes <run_id>/report.json and writes report.json.<algorithm> next to it
// in sha256sum format.
func (r *AuditRepository) SealReport(ctx context.Context, runID, algorithm string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reportPath, err := r.reportPath(runID)
	if err != nil {
		return "", err
	}

	sum, err := computeHash(reportPath, algorithm)
	if err != nil {
		return "", err
	}

	content := fmt.Sprintf("%s  %s\n", sum, filepath.Base(reportPath))
	if err := security.WriteFileAtomic(reportPath+"."+algorithm, []byte(content), constants.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("failed to write hash file: %w", err)
	}
	return sum, nil
}

// VerifyReport compares report.json with the first companion digest it finds
func (r *AuditRepository) VerifyReport(ctx context.Context, runID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reportPath, err := r.reportPath(runID)
	if err != nil {
		return false, err
	}

	for _, algorithm := range []string{audit.AlgorithmSHA256, audit.AlgorithmSHA512} {
		hashContent, err := os.ReadFile(reportPath + "." + algorithm)
		if err != nil {
			continue
		}

		fields := strings.Fields(string(hashContent))
		if len(fields) == 0 {
			return false, fmt.Errorf("empty hash file for run %s", runID)
		}

		actual, err := computeHash(reportPath, algorithm)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(fields[0], actual), nil
	}

	return false, fmt.Errorf("%w: %s", sharedErrors.ErrDigestNotFound, runID)
}

// Helper methods

func (r *AuditRepository) reportPath(runID string) (string, error) {
	if err := ValidateRunID(runID); err != nil {
		return "", err
	}
	path, err := security.ResolveWithin(r.resultsDir, runID, ReportFileName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrReportNotFound, runID)
	}
	return path, nil
}

func computeHash(path, algorithm string) (string, error) {
	var h hash.Hash
	switch algorithm {
	case audit.AlgorithmSHA256:
		h = sha256.New()
	case audit.AlgorithmSHA512:
		h = sha512.New()
	default:
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHashAlgorithm, algorithm)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
