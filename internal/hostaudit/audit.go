// Package hostaudit inspects local host state that can undermine a tunnel:
// listening sockets, rogue processes, logins, recently changed system files,
// kernel modules, systemd units and the firewall ruleset.
//
// Every sub-check downgrades read failures to findings. Nothing here aborts a run.
package hostaudit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

const defaultProcRoot = "/proc"

// Auditor runs the host audit sub-checks.
type Auditor struct {
	ProcRoot string
	Runner   CommandRunner
	Now      func() time.Time
	Logger   *zap.SugaredLogger
}

// NewAuditor returns an auditor reading the live /proc and running real commands.
func NewAuditor(runner CommandRunner, logger *zap.SugaredLogger) *Auditor {
	if runner == nil {
		runner = NewExecRunner(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Auditor{ProcRoot: defaultProcRoot, Runner: runner, Now: time.Now, Logger: logger}
}

// Category implements checker.Collector.
func (a *Auditor) Category() posture.Category { return posture.CategoryHostAudit }

// Collect implements checker.Collector.
func (a *Auditor) Collect(ctx context.Context, p policy.Policy) (posture.CategoryResult, error) {
	return a.Run(ctx, p), nil
}

// Run executes the sub-checks in a fixed order.
func (a *Auditor) Run(ctx context.Context, p policy.Policy) *posture.HostAuditResult {
	if a.Logger == nil {
		a.Logger = zap.NewNop().Sugar()
	}
	a.Logger.Info("starting host audit")

	r := &posture.HostAuditResult{
		Sockets:   a.checkSockets(p.AllowedListeningTCPPorts, p.AllowedListeningUDPPorts),
		Processes: a.checkProcesses(p.DisallowedProcesses),
		Logins:    a.checkLogins(ctx, p.AllowedLoginUsers, p.AllowedLoginHosts),
		Files:     a.checkFiles(p.WatchedFiles),
		Modules:   a.checkModules(p.RequiredKernelModules, p.DisallowedKernelModules, p.EnforceRequiredModulesOnly),
		Systemd:   a.checkSystemd(ctx, p.DisallowedServices, p.DisallowedTimers),
		Firewall:  a.checkFirewall(ctx, p.CheckFirewall),
	}

	for _, findings := range [][]string{
		r.Sockets.Findings, r.Processes.Findings, r.Logins.Findings, r.Files.Findings,
		r.Modules.Findings, r.Systemd.Findings, r.Firewall.Findings,
	} {
		r.AllFindings = append(r.AllFindings, findings...)
	}

	if len(r.AllFindings) == 0 {
		a.Logger.Info("host audit completed with no findings")
	} else {
		a.Logger.Warnw("host audit completed with findings", "count", len(r.AllFindings))
	}
	return r
}

func (a *Auditor) procRoot() string {
	if a.ProcRoot == "" {
		return defaultProcRoot
	}
	return a.ProcRoot
}

func (a *Auditor) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
