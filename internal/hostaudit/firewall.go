package hostaudit

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
)

var iptablesListings = [][]string{
	{"-L", "-n", "-v"},
	{"-t", "nat", "-L", "-n", "-v"},
}

// checkFirewall captures the active ruleset. nft is preferred; iptables and
// ip6tables are listed when nft is not installed.
func (a *Auditor) checkFirewall(ctx context.Context, enabled bool) posture.FirewallCheck {
	check := posture.FirewallCheck{Skipped: !enabled}
	if !enabled {
		return check
	}

	var buf strings.Builder
	addErr := func(msg string) {
		check.Errors = append(check.Errors, msg)
		check.Findings = append(check.Findings, msg)
	}
	list := func(tool string, args ...string) {
		out, err := a.Runner.Run(ctx, tool, args...)
		fmt.Fprintf(&buf, "--- %s %s ---\n%s\n", tool, strings.Join(args, " "), out)
		if err != nil {
			addErr(fmt.Sprintf("Failed to list firewall rules with %s: %v", tool, err))
		}
	}

	switch {
	case a.hasTool("nft"):
		check.Tool = "nft"
		list("nft", "list", "ruleset")
	case a.hasTool("iptables"):
		check.Tool = "iptables"
		for _, args := range iptablesListings {
			list("iptables", args...)
		}
		if a.hasTool("ip6tables") {
			for _, args := range iptablesListings {
				list("ip6tables", args...)
			}
		}
	default:
		check.Unavailable = true
		check.Findings = append(check.Findings, "Neither nft nor iptables found in PATH; cannot check firewall rules.")
		a.Logger.Warn("firewall check skipped: no nft or iptables")
		return check
	}

	check.Ruleset = buf.String()
	if len(check.Ruleset) > constants.FirewallExcerptLimit {
		a.Logger.Warnw("firewall ruleset truncated", "bytes", len(check.Ruleset))
		check.Ruleset = check.Ruleset[:constants.FirewallExcerptLimit] + "\n... (truncated)"
	}
	a.Logger.Infow("firewall ruleset captured", "tool", check.Tool, "bytes", len(check.Ruleset))
	return check
}

func (a *Auditor) hasTool(name string) bool {
	_, err := a.Runner.LookPath(name)
	return err == nil
}
