package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/netguard/internal/scoring"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

const (
	jsonPrefix = ""
	jsonIndent = "  "
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored run reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored run reports, newest first",
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Render a stored run report",
	Long: `Render a stored run report.

The text format re-scores the stored results to show per-category status. The
json format prints the stored file as is; yaml converts it key for key.`,
	Args: cobra.ExactArgs(1),
	RunE: runReportShow,
}

var reportTelemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Graph the confidence score trend recorded in telemetry",
	RunE:  runReportTelemetry,
}

func runReportList(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")

	reports, err := appCtx.Services.ReportRepo.FindAll(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintf(out, "%s run reports found in %s\n", colorWarn("No"), appCtx.ResultsDir)
		return nil
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATE\tEXIT\tSCORE\tOPERATOR\tHOST")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatStateWithColor(r.State),
			r.ExitCode,
			r.Score,
			r.Operator,
			r.Hostname,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush report table: %w", err)
	}
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()
	id := strings.TrimSpace(args[0])

	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "text"
	}

	switch format {
	case "text":
		report, err := appCtx.Services.ReportRepo.FindByID(commandContext(cmd), id)
		if err != nil {
			if errors.Is(err, sharedErrors.ErrReportNotFound) {
				return &ReportNotFoundError{ID: id}
			}
			return err
		}
		findings := scoring.NewScorer().Assess(report.Results).Findings
		renderRunSummary(out, report, findings)
		return nil
	case "json", "yaml":
		data, err := readReportFile(appCtx.ResultsDir, id)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeIndentedJSON(out, data)
		}
		converted, err := jsonToYAML(data)
		if err != nil {
			return err
		}
		_, err = out.Write(converted)
		return err
	default:
		return fmt.Errorf("unsupported format %q (use text|json|yaml)", format)
	}
}

func runReportTelemetry(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")

	history, err := loadTelemetryHistory(appCtx.ResultsDir, limit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "%s telemetry records found (enable with --telemetry or defaults.telemetry)\n", colorWarn("No"))
		return nil
	}

	switch strings.ToLower(format) {
	case "json":
		payload, err := json.MarshalIndent(history, jsonPrefix, jsonIndent)
		if err != nil {
			return fmt.Errorf("marshal telemetry: %w", err)
		}
		fmt.Fprintln(out, string(payload))
	case "ascii":
		printTelemetryASCII(out, history)
	default:
		return fmt.Errorf("unsupported format %s (use ascii or json)", format)
	}
	return nil
}

func readReportFile(resultsDir, id string) ([]byte, error) {
	path, err := resolveReportPath(resultsDir, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path resolved within the results directory.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ReportNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return data, nil
}

func writeIndentedJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, jsonPrefix, jsonIndent); err != nil {
		return fmt.Errorf("stored report is not valid JSON: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// jsonToYAML converts through a yaml.Node so the stored key order survives.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	resetStyle(&node)

	var buf bytes.Buffer
	if err := writeYAML(&buf, &node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resetStyle drops the flow and quoting styles JSON input parses into.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		resetStyle(child)
	}
}

func printTelemetryASCII(w io.Writer, records []telemetryRecord) {
	const barWidth = 40
	fmt.Fprintln(w, colorInfo("Confidence Score Trend"))
	for _, rec := range records {
		barLen := int(math.Round((rec.Score / 100.0) * barWidth))
		if barLen < 0 {
			barLen = 0
		}
		if barLen > barWidth {
			barLen = barWidth
		}
		if barLen == 0 && rec.Score > 0 {
			barLen = 1
		}
		bar := strings.Repeat("#", barLen)
		fmt.Fprintf(w, "%s | %5.1f | %-*s | %s (%d leak(s), %d finding(s))\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04"),
			rec.Score,
			barWidth,
			bar,
			rec.State,
			rec.LeakCount,
			rec.FindingCount,
		)
	}
}

func init() {
	reportListCmd.Flags().Int("limit", 0, "Maximum number of reports to list (0 lists all)")
	reportShowCmd.Flags().String("format", "text", "Output format: text|json|yaml")
	reportTelemetryCmd.Flags().String("format", "ascii", "Output format: ascii|json")
	reportTelemetryCmd.Flags().Int("limit", 10, "Number of recent runs to display")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportTelemetryCmd)
}
