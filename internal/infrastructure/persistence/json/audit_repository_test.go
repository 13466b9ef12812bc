package json

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/netguard/internal/domain/audit"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

func TestAuditRepositoryAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewAuditRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	entries, err := repo.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	first := &audit.Entry{Timestamp: ts, RunID: uuid.NewString(), Operator: "alice", Command: "verify", State: "EXIT_OK", Score: 95, DurationSeconds: 1.5}
	second := &audit.Entry{Timestamp: ts.Add(time.Minute), RunID: uuid.NewString(), Command: "verify", State: "EXIT_INTERRUPTED", ExitCode: 130, Interrupted: true, Error: "interrupted, by operator"}
	require.NoError(t, repo.AppendEntry(ctx, first))
	require.NoError(t, repo.AppendEntry(ctx, second))

	raw, err := os.ReadFile(filepath.Join(dir, AuditFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,run_id,"))

	entries, err = repo.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.RunID, entries[0].RunID)
	assert.Equal(t, 95.0, entries[0].Score)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	assert.Equal(t, 130, entries[1].ExitCode)
	assert.True(t, entries[1].Interrupted)
	assert.Equal(t, "interrupted, by operator", entries[1].Error)
}

func TestAuditRepositoryRejectsInvalidEntry(t *testing.T) {
	repo, err := NewAuditRepository(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, repo.AppendEntry(context.Background(), &audit.Entry{Timestamp: time.Now()}))
	assert.Error(t, repo.AppendEntry(context.Background(), nil))
}

func TestAuditRepositorySealAndVerifyReport(t *testing.T) {
	dir := t.TempDir()
	reports, err := NewReportRepository(dir)
	require.NoError(t, err)
	repo, err := NewAuditRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	report := sampleReport(time.Now().UTC())
	require.NoError(t, reports.Save(ctx, report))

	sum, err := repo.SealReport(ctx, report.ID, audit.AlgorithmSHA256)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	companion, err := os.ReadFile(filepath.Join(dir, report.ID, ReportFileName+".sha256"))
	require.NoError(t, err)
	assert.Equal(t, sum+"  "+ReportFileName+"\n", string(companion))

	ok, err := repo.VerifyReport(ctx, report.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	reportPath := filepath.Join(dir, report.ID, ReportFileName)
	require.NoError(t, os.WriteFile(reportPath, []byte(`{"tampered":true}`), 0o644))
	ok, err = repo.VerifyReport(ctx, report.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditRepositorySealErrors(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewAuditRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.SealReport(ctx, uuid.NewString(), audit.AlgorithmSHA256)
	assert.ErrorIs(t, err, sharedErrors.ErrReportNotFound)

	_, err = repo.SealReport(ctx, "../x", audit.AlgorithmSHA256)
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidRunID)

	reports, err := NewReportRepository(dir)
	require.NoError(t, err)
	report := sampleReport(time.Now().UTC())
	require.NoError(t, reports.Save(ctx, report))

	_, err = repo.SealReport(ctx, report.ID, "md5")
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidHashAlgorithm)

	_, err = repo.VerifyReport(ctx, report.ID)
	assert.ErrorIs(t, err, sharedErrors.ErrDigestNotFound)
}
