package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/khanhnv2901/netguard/internal/capture"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

const verifyCommandName = "verify"

var verifyCmd = &cobra.Command{
	Use:   verifyCommandName,
	Short: "Run the posture checks and report a confidence score",
	Long: `Run the interface, DNS, host audit and opsec checks, optionally monitor the
physical interfaces for traffic escaping the tunnel, then score the result.

Exit status:
  0    confidence at or above the moderate threshold
  1    low confidence
  2    the run failed
  130  interrupted (SIGINT or SIGTERM); partial results are still saved`,
	Example: `  netguard verify
  netguard verify --interface wg0 --monitor eth0,wlan0 --duration 30s
  netguard verify --skip host_audit,opsec`,
	RunE: runVerify,
}

// newVerifySupervisor builds the supervisor for one run; tests replace it.
var newVerifySupervisor = func(appCtx *AppContext, p policy.Policy) *supervisor.Supervisor {
	return appCtx.Services.NewSupervisor(p, appCtx.Operator)
}

// hasCapturePrivileges reports whether libpcap is likely to open devices.
var hasCapturePrivileges = func() bool {
	return unix.Geteuid() == 0
}

func bindVerifyFlags(flags *pflag.FlagSet, cfg *VerifyRuntimeConfig) {
	flags.StringVarP(&cfg.VPNInterface, "interface", "i", cfg.VPNInterface, "VPN interface to verify")
	flags.StringSliceVarP(&cfg.PhysicalInterfaces, "monitor", "m", nil, "physical interfaces to monitor for leaks (comma-separated; empty disables monitoring)")
	flags.DurationVarP(&cfg.Duration, "duration", "d", 0, "monitoring window (0 monitors until interrupted)")
	flags.BoolVar(&cfg.CheckExternalIP, "check-external-ip", false, "query the external IP lookup service")
	flags.StringSliceVar(&cfg.Skip, "skip", nil, "categories to skip: "+categoryNames())
	flags.BoolVar(&cfg.TelemetryEnabled, "telemetry", cfg.TelemetryEnabled, "append a telemetry record for this run")
	flags.BoolVar(&cfg.ProgressEnabled, "progress", cfg.ProgressEnabled, "show monitor progress")
	flags.StringVar(&cfg.HashAlgorithm, "hash-algorithm", cfg.HashAlgorithm, "digest algorithm for the report seal (sha256 or sha512)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	if appCtx == nil || appCtx.Services == nil {
		return fmt.Errorf("application context is not initialized")
	}
	out := cmd.OutOrStdout()
	cfg := &cliConfig.Verify

	p, err := loadPolicy(viper.GetViper())
	if err != nil {
		return &PolicyError{Err: err}
	}
	applyVerifyOverrides(cmd.Flags(), cfg, &p)
	if err := p.Validate(); err != nil {
		return &PolicyError{Err: err}
	}

	skip, err := parseCategories(cfg.Skip)
	if err != nil {
		return &PolicyError{Err: err}
	}

	if p.MonitoringEnabled() && !hasCapturePrivileges() {
		appCtx.Logger.Warnw("Traffic monitoring usually requires root or CAP_NET_RAW", "euid", unix.Geteuid())
		fmt.Fprintf(out, "%s traffic monitoring usually requires root or CAP_NET_RAW\n", colorWarn("!"))
	}

	ctx, cancel := context.WithCancelCause(commandContext(cmd))
	defer cancel(nil)
	stopSignals := notifyInterrupt(ctx, cancel)
	defer stopSignals()

	sup := newVerifySupervisor(appCtx, p)
	sup.Skip = skip

	var progress *progressPrinter
	if cfg.ProgressEnabled && isTerminal(out) && p.MonitoringEnabled() && !slices.Contains(skip, posture.CategoryTrafficMonitor) {
		progress = newProgressPrinter(out, "monitor", p.MonitorDuration, monitorStats(appCtx))
		sup.OnState = func(s supervisor.State) {
			switch s {
			case supervisor.StateMonitoring:
				progress.Start()
			case supervisor.StateAggregate:
				progress.Stop()
			}
		}
		sup.OnTick = progress.Tick
	}

	if p.MonitoringEnabled() {
		window := "until interrupted (Ctrl+C to stop)"
		if p.MonitorDuration > 0 {
			window = "for " + p.MonitorDuration.String()
		}
		fmt.Fprintf(out, "Monitoring %s %s\n", strings.Join(p.PhysicalInterfaces, ", "), window)
	}

	outcome := sup.Run(ctx)
	progress.Stop()

	finishRun(cmd, appCtx, outcome)

	fmt.Fprintln(out)
	if outcome.Report != nil {
		renderRunSummary(out, outcome.Report, outcome.Findings)
	}
	printOutcomeNotes(out, appCtx, outcome)

	exitCode = outcome.ExitCode
	return nil
}

// finishRun seals the stored report, appends the audit row and telemetry. Failures
// here are reported but never change the run's exit status.
func finishRun(cmd *cobra.Command, appCtx *AppContext, outcome *supervisor.Outcome) {
	ctx := context.WithoutCancel(commandContext(cmd))
	logger := appCtx.Logger.With("run_id", outcome.RunID)
	cfg := appCtx.Config
	if cfg == nil {
		cfg = cliConfig
	}

	if outcome.Report != nil && outcome.ReportErr == nil {
		digest, err := appCtx.Services.AuditService.SealReport(ctx, outcome.RunID, cfg.Verify.HashAlgorithm)
		if err != nil {
			logger.Errorw("Failed to seal run report", "error", err)
		} else {
			logger.Infow("Run report sealed", "algorithm", cfg.Verify.HashAlgorithm, "digest", digest)
		}
	}

	if outcome.Report != nil {
		if err := appCtx.Services.AuditService.RecordRun(ctx, verifyCommandName, outcome.Report, outcome.Interrupted, outcome.Err); err != nil {
			logger.Errorw("Failed to record audit entry", "error", err)
		}
	}

	if cfg.Verify.TelemetryEnabled {
		if err := recordTelemetry(appCtx, verifyCommandName, outcome); err != nil {
			logger.Warnw("Failed to record telemetry", "error", err)
		}
	}
}

func printOutcomeNotes(w io.Writer, appCtx *AppContext, outcome *supervisor.Outcome) {
	if outcome.ModerateConfidence {
		fmt.Fprintf(w, "\n%s Moderate confidence: review the findings above.\n", colorWarn("!"))
	}
	if outcome.Interrupted {
		fmt.Fprintf(w, "\n%s Interrupted; partial results were scored and saved.\n", colorWarn("!"))
	}
	if outcome.Err != nil {
		fmt.Fprintf(w, "\n%s %v\n", colorError("✗"), outcome.Err)
	}
	if outcome.ReportErr != nil {
		fmt.Fprintf(w, "\n%s Failed to save the run report: %v\n", colorError("✗"), outcome.ReportErr)
		return
	}
	if path, err := resolveReportPath(appCtx.ResultsDir, outcome.RunID); err == nil {
		fmt.Fprintf(w, "\nReport saved to %s\n", path)
	}
}

// notifyInterrupt cancels ctx with ErrInterrupted on SIGINT or SIGTERM.
func notifyInterrupt(ctx context.Context, cancel context.CancelCauseFunc) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel(sharedErrors.ErrInterrupted)
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func monitorStats(appCtx *AppContext) func() capture.Stats {
	if appCtx.Services == nil || appCtx.Services.Monitor == nil {
		return nil
	}
	return appCtx.Services.Monitor.Stats
}

func parseCategories(values []string) ([]posture.Category, error) {
	var out []posture.Category
	for _, v := range compactStrings(values) {
		c := posture.Category(strings.ToLower(v))
		if !slices.Contains(posture.Categories, c) {
			return nil, fmt.Errorf("unknown category %q (valid: %s)", v, categoryNames())
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func categoryNames() string {
	names := make([]string, 0, len(posture.Categories))
	for _, c := range posture.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func init() {
	bindVerifyFlags(verifyCmd.Flags(), &cliConfig.Verify)
}
