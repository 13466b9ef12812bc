package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/scoring"
)

// categoryStatus condenses one slot into OK/WARN/FAIL/SKIPPED/FAILED/MISSING.
func categoryStatus(results *posture.AllCheckResults, findings []scoring.Finding, c posture.Category) string {
	switch results.Get(c).(type) {
	case nil:
		return "MISSING"
	case posture.Skipped:
		return "SKIPPED"
	case posture.Failed:
		return "FAILED"
	}

	status := "OK"
	for _, f := range findings {
		if f.Category != c {
			continue
		}
		if f.Severity == scoring.SeverityCritical {
			return "FAIL"
		}
		status = "WARN"
	}
	return status
}

func categoryDetail(r posture.CategoryResult) string {
	switch r := r.(type) {
	case nil:
		return "did not report"
	case posture.Skipped:
		return r.Reason
	case posture.Failed:
		return r.Reason
	case *posture.InterfaceCheckResult:
		if !r.Found {
			return fmt.Sprintf("%s not found", r.Name)
		}
		link := "down"
		if r.IsUp() {
			link = "up"
		}
		return fmt.Sprintf("%s %s, %d address(es), network %s, external IP %s",
			r.Name, link, len(r.Addresses), r.IPNetworkMatch, r.ExternalIP)
	case *posture.DNSCheckResult:
		return fmt.Sprintf("%s (%d resolver(s) in %s)", r.Status, len(r.Found), r.ResolverPath)
	case *posture.HostAuditResult:
		return fmt.Sprintf("%d finding(s), %d sub-check(s) with collection errors",
			len(r.AllFindings), r.CollectionErrors())
	case *posture.OpsecResult:
		return fmt.Sprintf("%d finding(s)", len(r.AllFindings))
	case *posture.TrafficMonitorResult:
		detail := fmt.Sprintf("%d packet(s) on %s, %d leak(s), %d file event(s)",
			r.PacketsSeen, strings.Join(r.Interfaces, ","), len(r.Leaks), len(r.FileEvents))
		if r.Interrupted {
			detail += ", interrupted"
		}
		return detail
	}
	return ""
}

// renderRunSummary prints the score banner, one line per category and the findings.
func renderRunSummary(w io.Writer, report *posture.RunReport, findings []scoring.Finding) {
	results := report.Results
	if results == nil {
		results = &posture.AllCheckResults{}
	}

	fmt.Fprintf(w, "Run:        %s\n", colorInfo(report.ID))
	fmt.Fprintf(w, "Operator:   %s@%s\n", report.Operator, report.Hostname)
	fmt.Fprintf(w, "Started:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Duration:   %s\n", report.CompletedAt.Sub(report.StartedAt).Round(100 * time.Millisecond))
	fmt.Fprintf(w, "State:      %s (exit %d)\n", formatStateWithColor(report.State), report.ExitCode)
	fmt.Fprintf(w, "Confidence: %s\n\n", colorBold(formatScoreWithColor(report.Score)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Category\tStatus\tDetail")
	fmt.Fprintln(tw, "--------\t------\t------")
	for _, c := range posture.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c, formatStatusWithColor(categoryStatus(results, findings, c)), categoryDetail(results.Get(c)))
	}
	tw.Flush()

	var critical []string
	for _, f := range findings {
		if f.Severity == scoring.SeverityCritical {
			critical = append(critical, f.Message)
		}
	}
	if len(critical) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorError("Critical findings:"))
		for _, msg := range critical {
			fmt.Fprintf(w, "  %s %s\n", colorError("✗"), msg)
		}
	}

	if len(findings) > 0 {
		fmt.Fprintf(w, "\nFindings (%d):\n", len(findings))
		for _, f := range findings {
			fmt.Fprintf(w, "  - %s (-%.0f)\n", f, f.Penalty)
		}
	} else {
		fmt.Fprintf(w, "\n%s No findings\n", colorSuccess("✓"))
	}
}
