package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

// auditCmd is the parent command for audit-related operations
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log and report integrity",
	Long: `Inspect the audit log and verify stored run reports.

Every verify run appends one row to audit.csv in the results directory and
seals its report.json with a digest companion (report.json.sha256 or
report.json.sha512) so later tampering can be detected.`,
}

// auditListCmd lists audit log entries
var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries",
	RunE:  runAuditList,
}

// auditVerifyCmd verifies a stored report against its digest
var auditVerifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Verify a run report against its stored digest",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

// auditSealCmd (re)writes the digest companion for a stored report
var auditSealCmd = &cobra.Command{
	Use:   "seal <run-id>",
	Short: "Write the digest companion for a stored run report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditSeal,
}

func runAuditList(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()

	limit, _ := cmd.Flags().GetInt("limit")
	showAll, _ := cmd.Flags().GetBool("all")

	entries, err := appCtx.Services.AuditService.Entries(commandContext(cmd))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No audit entries found in %s\n", appCtx.ResultsDir)
		return nil
	}

	// Determine how many entries to show
	entriesToShow := entries
	if !showAll && limit > 0 && len(entries) > limit {
		entriesToShow = entries[len(entries)-limit:]
		fmt.Fprintf(out, "Showing last %d entries (use --all to show all %d entries)\n\n", limit, len(entries))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Timestamp\tRun ID\tOperator\tHost\tState\tExit\tScore\tDuration")
	fmt.Fprintln(w, "---------\t------\t--------\t----\t-----\t----\t-----\t--------")

	for _, entry := range entriesToShow {
		state := formatStateWithColor(entry.State)
		if entry.Interrupted && !strings.Contains(entry.State, "INTERRUPTED") {
			state += " (interrupted)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.1f\t%.2fs\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.RunID,
			entry.Operator,
			entry.Hostname,
			state,
			entry.ExitCode,
			entry.Score,
			entry.DurationSeconds,
		)
	}

	return w.Flush()
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()
	runID := strings.TrimSpace(args[0])

	if err := validateRunID(runID); err != nil {
		return err
	}

	valid, err := appCtx.Services.AuditService.VerifyIntegrity(commandContext(cmd), runID)
	if err != nil {
		switch {
		case errors.Is(err, sharedErrors.ErrReportNotFound):
			return &ReportNotFoundError{ID: runID}
		case errors.Is(err, sharedErrors.ErrDigestNotFound):
			return fmt.Errorf("no digest found for run %s (seal it with 'netguard audit seal %s')", runID, runID)
		}
		return err
	}

	reportPath, _ := resolveReportPath(appCtx.ResultsDir, runID)
	if !valid {
		fmt.Fprintf(out, "%s Report integrity verification FAILED: %s\n", colorError("✗"), reportPath)
		fmt.Fprintf(out, "%s WARNING: The run report may have been tampered with!\n", colorError("✗"))
		return fmt.Errorf("report integrity check failed")
	}

	fmt.Fprintf(out, "%s Report integrity verified: %s\n", colorSuccess("✓"), reportPath)
	return nil
}

func runAuditSeal(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()
	runID := strings.TrimSpace(args[0])

	algorithm, _ := cmd.Flags().GetString("hash")
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))

	if err := validateRunID(runID); err != nil {
		return err
	}

	digest, err := appCtx.Services.AuditService.SealReport(commandContext(cmd), runID, algorithm)
	if err != nil {
		if errors.Is(err, sharedErrors.ErrReportNotFound) {
			return &ReportNotFoundError{ID: runID}
		}
		return err
	}

	fmt.Fprintf(out, "%s Sealed run %s (%s: %s)\n", colorSuccess("✓"), runID, algorithm, digest)
	return nil
}

func init() {
	auditListCmd.Flags().Int("limit", 20, "Number of most recent entries to show")
	auditListCmd.Flags().Bool("all", false, "Show all entries")
	auditSealCmd.Flags().String("hash", "sha256", "Hash algorithm: sha256|sha512")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditSealCmd)
}
