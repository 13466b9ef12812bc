// Package scoring folds every category result into one confidence score.
package scoring

import (
	"fmt"
	"math"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// Severity labels a deduction in the summary.
type Severity string

const (
	SeverityMajor    Severity = "Major"
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
)

// Finding is one deduction-worthy observation.
type Finding struct {
	Category posture.Category
	Severity Severity
	Message  string
	Penalty  float64
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Severity, f.Message)
}

// Assessment is the aggregator output.
type Assessment struct {
	Score    float64
	Findings []Finding
}

// Messages renders the findings in evaluation order.
func (a Assessment) Messages() []string {
	out := make([]string, 0, len(a.Findings))
	for _, f := range a.Findings {
		out = append(out, f.String())
	}
	return out
}

// Scorer applies a set of weights.
type Scorer struct {
	Weights Weights
}

// NewScorer returns a scorer using the default weights.
func NewScorer() *Scorer {
	return &Scorer{Weights: DefaultWeights()}
}

// CalculateConfidence scores a snapshot with the default weights. It does not
// modify all, so repeated calls on the same snapshot return identical output.
func CalculateConfidence(all *posture.AllCheckResults) (float64, []string) {
	a := NewScorer().Assess(all)
	return a.Score, a.Messages()
}

// Assess evaluates categories in fixed order and clamps the score once at the end.
func (s *Scorer) Assess(all *posture.AllCheckResults) Assessment {
	if all == nil {
		all = &posture.AllCheckResults{}
	}
	b := &builder{w: s.Weights}

	for _, c := range posture.Categories {
		b.category = c
		switch r := all.Get(c).(type) {
		case nil:
			b.add(SeverityWarning, s.Weights.missing(c), "%s check did not run; result unavailable.", label(c))
		case posture.Skipped:
			// configured off: no opinion
		case posture.Failed:
			b.add(SeverityWarning, s.Weights.missing(c), "%s check failed: %s", label(c), r.Reason)
		case *posture.InterfaceCheckResult:
			b.interfaceResult(r)
		case *posture.DNSCheckResult:
			b.dnsResult(r)
		case *posture.HostAuditResult:
			b.hostAudit(r)
		case *posture.OpsecResult:
			b.opsec(r)
		case *posture.TrafficMonitorResult:
			b.traffic(r)
		}
	}

	score := 100 - b.total
	score = math.Max(0, math.Min(100, score))
	return Assessment{Score: score, Findings: b.findings}
}

type builder struct {
	w        Weights
	category posture.Category
	total    float64
	findings []Finding
}

func (b *builder) add(sev Severity, penalty float64, format string, args ...any) {
	b.total += penalty
	b.findings = append(b.findings, Finding{
		Category: b.category,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Penalty:  penalty,
	})
}

func (b *builder) interfaceResult(r *posture.InterfaceCheckResult) {
	if !r.Found {
		b.add(SeverityMajor, b.w.InterfaceNotFound, "VPN interface %s not found.", r.Name)
		return
	}
	if !r.IsUp() {
		b.add(SeverityCritical, b.w.InterfaceDown, "VPN interface %s is down.", r.Name)
		return
	}
	if r.Running != nil && !*r.Running {
		b.add(SeverityWarning, b.w.InterfaceNotRunning, "VPN interface %s is up but not running.", r.Name)
	}

	switch r.IPNetworkMatch {
	case posture.IPNetworkMismatch:
		b.add(SeverityCritical, b.w.IPNetworkMismatch, "No address on VPN interface %s is in the expected network.", r.Name)
	case posture.IPNetworkNoIPs:
		b.add(SeverityCritical, b.w.IPNetworkMismatch, "VPN interface %s has no IP addresses but an expected network is configured.", r.Name)
	case posture.IPNetworkInterfaceHasNoIPs:
		b.add(SeverityWarning, b.w.InterfaceNoIPs, "VPN interface %s has no IP addresses assigned.", r.Name)
	}

	switch r.ExternalIP {
	case posture.ExternalIPExpectedMismatch:
		reported := "unknown"
		if r.ReportedExternalIP != nil {
			reported = r.ReportedExternalIP.String()
		}
		b.add(SeverityCritical, b.w.ExternalIPMismatch, "External IP %s is not one of the expected external IPs.", reported)
	case posture.ExternalIPCheckFailed:
		b.add(SeverityCritical, b.w.ExternalIPFailed, "External IP check was enabled but failed.")
	}
}

func (b *builder) dnsResult(r *posture.DNSCheckResult) {
	switch r.Status {
	case posture.DNSMismatch:
		b.add(SeverityCritical, b.w.DNSMismatch, "DNS servers in %s do not match the expected resolvers.", r.ResolverPath)
	case posture.DNSNoServersFound:
		b.add(SeverityCritical, b.w.DNSMismatch, "No nameservers found in %s.", r.ResolverPath)
	case posture.DNSReadError:
		b.add(SeverityCritical, b.w.DNSReadError, "Could not read DNS resolver file %s.", r.ResolverPath)
	}
}

func (b *builder) hostAudit(r *posture.HostAuditResult) {
	type item struct {
		count  int
		weight float64
		what   string
	}
	items := []item{
		{len(r.Sockets.Unexpected), b.w.UnexpectedSocket, "unexpected listening socket(s)"},
		{len(r.Processes.Disallowed), b.w.DisallowedProcess, "disallowed process(es) running"},
		{len(r.Logins.Disallowed), b.w.DisallowedLogin, "disallowed login(s)"},
		{len(r.Files.RecentlyModified), b.w.RecentFileChange, "watched file(s) recently modified"},
		{len(r.Modules.Disallowed), b.w.DisallowedModule, "disallowed kernel module(s) loaded"},
		{len(r.Modules.Missing), b.w.MissingModule, "required kernel module(s) missing"},
		{len(r.Modules.Unexpected), b.w.UnexpectedModule, "unexpected kernel module(s) loaded"},
		{len(r.Systemd.DisallowedServices), b.w.DisallowedService, "disallowed systemd service(s) running"},
		{len(r.Systemd.DisallowedTimers), b.w.DisallowedTimer, "disallowed systemd timer(s) active"},
	}

	budget := b.w.HostAuditCap
	spend := func(sev Severity, want float64, format string, args ...any) {
		penalty := math.Min(want, budget)
		budget -= penalty
		b.add(sev, penalty, format, args...)
	}

	for _, it := range items {
		if it.count == 0 {
			continue
		}
		spend(SeverityCritical, float64(it.count)*it.weight, "Host audit: %d %s.", it.count, it.what)
	}
	if n := r.CollectionErrors(); n > 0 {
		spend(SeverityWarning, float64(n)*b.w.AuditCollectError, "Host audit: %d sub-check(s) could not collect complete data.", n)
	}
	if len(r.Firewall.Errors) > 0 {
		spend(SeverityWarning, b.w.FirewallListError, "Host audit: errors listing firewall rules with %s.", r.Firewall.Tool)
	}
	if r.Firewall.Unavailable {
		spend(SeverityWarning, b.w.FirewallUnavailable, "Host audit: firewall check skipped (nft/iptables not found).")
	}
}

func (b *builder) opsec(r *posture.OpsecResult) {
	n := len(r.AllFindings)
	if n == 0 {
		return
	}
	penalty := math.Min(float64(n)*b.w.OpsecPerFinding, b.w.OpsecCap)
	b.add(SeverityWarning, penalty, "Opsec: %d potential opsec issue(s).", n)
}

func (b *builder) traffic(r *posture.TrafficMonitorResult) {
	if n := len(r.Leaks); n > 0 {
		penalty := math.Min(b.w.LeakBase+float64(n)*b.w.LeakPerEvent, b.w.LeakCap)
		b.add(SeverityCritical, penalty, "%d potential traffic leak(s) detected!", n)
		shown := min(n, b.w.MaxLeakDetailsShown)
		for _, leak := range r.Leaks[:shown] {
			b.add(SeverityCritical, 0, "  Leak: %s", leak)
		}
		if n > shown {
			b.add(SeverityCritical, 0, "  ... (%d more leaks logged)", n-shown)
		}
	}
	if n := len(r.Errors); n > 0 {
		b.add(SeverityCritical, b.w.MonitorErrors, "Traffic monitor reported %d error(s); coverage is incomplete.", n)
	}
	if n := len(r.FileEvents); n > 0 {
		penalty := math.Min(float64(n)*b.w.FileEventPerChange, b.w.FileEventCap)
		b.add(SeverityWarning, penalty, "%d watched file change(s) observed during monitoring.", n)
	}
}

func label(c posture.Category) string {
	switch c {
	case posture.CategoryInterface:
		return "Interface"
	case posture.CategoryDNS:
		return "DNS"
	case posture.CategoryHostAudit:
		return "Host audit"
	case posture.CategoryOpsec:
		return "Opsec"
	case posture.CategoryTrafficMonitor:
		return "Traffic monitor"
	}
	return string(c)
}
