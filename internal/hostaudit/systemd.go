package hostaudit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

func (a *Auditor) checkSystemd(ctx context.Context, disallowedServices, disallowedTimers []string) posture.SystemdCheck {
	var check posture.SystemdCheck
	if len(disallowedServices) == 0 && len(disallowedTimers) == 0 {
		return check
	}
	addErr := func(msg string) {
		check.Errors = append(check.Errors, msg)
		check.Findings = append(check.Findings, msg)
	}

	if out, err := a.Runner.Run(ctx, "systemctl", "list-units", "--type=service", "--state=running", "--no-pager", "--no-legend"); err != nil {
		addErr(fmt.Sprintf("Failed to list running systemd services: %v", err))
	} else {
		check.RunningServices = parseServiceUnits(string(out))
		for _, unit := range check.RunningServices {
			if matchesUnit(disallowedServices, unit.Name, ".service") {
				check.DisallowedServices = append(check.DisallowedServices, unit)
				check.Findings = append(check.Findings, fmt.Sprintf("Disallowed systemd service running: %s", unit.Name))
			}
		}
	}

	if out, err := a.Runner.Run(ctx, "systemctl", "list-timers", "--state=active", "--no-pager", "--no-legend"); err != nil {
		addErr(fmt.Sprintf("Failed to list active systemd timers: %v", err))
	} else {
		check.ActiveTimers = parseTimerUnits(string(out))
		for _, unit := range check.ActiveTimers {
			if matchesUnit(disallowedTimers, unit.Name, ".timer") {
				check.DisallowedTimers = append(check.DisallowedTimers, unit)
				check.Findings = append(check.Findings, fmt.Sprintf("Disallowed systemd timer active: %s", unit.Name))
			}
		}
	}

	a.Logger.Infow("systemd units audited", "services", len(check.RunningServices), "timers", len(check.ActiveTimers))
	return check
}

// parseServiceUnits reads `systemctl list-units --no-legend`: UNIT LOAD ACTIVE SUB DESCRIPTION.
// Failed units are prefixed with a status glyph which is stripped.
func parseServiceUnits(out string) []posture.SystemdUnit {
	var units []posture.SystemdUnit
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && !startsAlnum(fields[0]) {
			fields = fields[1:]
		}
		if len(fields) < 4 {
			continue
		}
		units = append(units, posture.SystemdUnit{Name: fields[0], Type: "service", State: fields[3]})
	}
	return units
}

// parseTimerUnits reads `systemctl list-timers --no-legend`. The date columns contain
// spaces, so the unit is located by its .timer suffix.
func parseTimerUnits(out string) []posture.SystemdUnit {
	var units []posture.SystemdUnit
	for _, line := range strings.Split(out, "\n") {
		for _, field := range strings.Fields(line) {
			if strings.HasSuffix(field, ".timer") {
				units = append(units, posture.SystemdUnit{Name: field, Type: "timer", State: "active"})
				break
			}
		}
	}
	return units
}

// matchesUnit accepts both "ssh" and "ssh.service" in the policy list.
func matchesUnit(list []string, name, suffix string) bool {
	return slices.Contains(list, name) || slices.Contains(list, strings.TrimSuffix(name, suffix))
}

func startsAlnum(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	return false
}
