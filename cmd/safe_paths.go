package cmd

import (
	"fmt"

	"github.com/khanhnv2901/netguard/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/netguard/internal/shared/security"
)

// validateRunID ensures run identifiers can't be used for path traversal.
// Run IDs name directories under the results dir, so only UUIDs are accepted.
func validateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("run ID is required")
	}
	return json.ValidateRunID(id)
}

func resolveRunPath(resultsDir, runID string, parts ...string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}
	pathParts := append([]string{runID}, parts...)
	return security.ResolveWithin(resultsDir, pathParts...)
}

func resolveReportPath(resultsDir, runID string) (string, error) {
	return resolveRunPath(resultsDir, runID, json.ReportFileName)
}
