package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/scoring"
	consts "github.com/khanhnv2901/netguard/internal/shared/constants"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

const telemetryFileName = "telemetry.jsonl"

type telemetryRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Command         string    `json:"command"`
	RunID           string    `json:"run_id"`
	State           string    `json:"state"`
	ExitCode        int       `json:"exit_code"`
	Score           float64   `json:"score"`
	FindingCount    int       `json:"finding_count"`
	CriticalCount   int       `json:"critical_count"`
	SkippedCount    int       `json:"skipped_count"`
	FailedCount     int       `json:"failed_count"`
	Interrupted     bool      `json:"interrupted"`
	Monitored       bool      `json:"monitored"`
	PacketsSeen     uint64    `json:"packets_seen"`
	LeakCount       int       `json:"leak_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	MonitorSeconds  float64   `json:"monitor_seconds"`
}

func recordTelemetry(appCtx *AppContext, command string, outcome *supervisor.Outcome) error {
	if outcome == nil {
		return fmt.Errorf("no outcome to record")
	}

	record := telemetryRecord{
		Timestamp:       time.Now().UTC(),
		Command:         command,
		RunID:           outcome.RunID,
		State:           string(outcome.State),
		ExitCode:        outcome.ExitCode,
		Score:           outcome.Score,
		FindingCount:    len(outcome.Findings),
		Interrupted:     outcome.Interrupted,
		DurationSeconds: outcome.Duration().Seconds(),
	}
	for _, f := range outcome.Findings {
		if f.Severity == scoring.SeverityCritical {
			record.CriticalCount++
		}
	}
	summarizeSlots(outcome.Results, &record)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath := filepath.Join(appCtx.ResultsDir, telemetryFileName)
	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}

func summarizeSlots(results *posture.AllCheckResults, record *telemetryRecord) {
	if results == nil {
		return
	}
	for _, c := range posture.Categories {
		switch r := results.Get(c).(type) {
		case posture.Skipped:
			record.SkippedCount++
		case posture.Failed:
			record.FailedCount++
		case *posture.TrafficMonitorResult:
			record.Monitored = true
			record.PacketsSeen = r.PacketsSeen
			record.LeakCount = len(r.Leaks)
			if !r.EndedAt.IsZero() {
				record.MonitorSeconds = r.EndedAt.Sub(r.StartedAt).Seconds()
			}
		}
	}
}

// loadTelemetryHistory returns the most recent limit records, oldest first.
// A limit of zero or less returns every record.
func loadTelemetryHistory(resultsDir string, limit int) ([]telemetryRecord, error) {
	path := filepath.Join(resultsDir, telemetryFileName)
	f, err := os.Open(path) // #nosec G304 -- fixed file name inside the configured results directory.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	var records []telemetryRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec telemetryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse telemetry record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read telemetry file: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
