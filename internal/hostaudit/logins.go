package hostaudit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

func (a *Auditor) checkLogins(ctx context.Context, allowedUsers, allowedHosts []string) posture.LoginCheck {
	var check posture.LoginCheck
	if len(allowedUsers) == 0 && len(allowedHosts) == 0 {
		return check
	}

	out, err := a.Runner.Run(ctx, "who")
	if err != nil {
		msg := fmt.Sprintf("Failed to list active logins: %v", err)
		check.Errors = append(check.Errors, msg)
		check.Findings = append(check.Findings, msg)
		return check
	}

	check.Active = parseWho(string(out))
	for _, login := range check.Active {
		switch {
		case len(allowedUsers) > 0 && !slices.Contains(allowedUsers, login.User):
			check.Disallowed = append(check.Disallowed, login)
			check.Findings = append(check.Findings,
				fmt.Sprintf("Disallowed user login detected: user %q (terminal %s, host %s)", login.User, login.Terminal, hostOrLocal(login.Host)))
		case login.Host != "" && len(allowedHosts) > 0 && !slices.Contains(allowedHosts, login.Host):
			check.Disallowed = append(check.Disallowed, login)
			check.Findings = append(check.Findings,
				fmt.Sprintf("Login from disallowed host detected: user %q from %q (terminal %s)", login.User, login.Host, login.Terminal))
		}
	}
	a.Logger.Infow("logins audited", "active", len(check.Active), "disallowed", len(check.Disallowed))
	return check
}

// parseWho reads `who` output: USER LINE YYYY-MM-DD HH:MM [(HOST)].
func parseWho(out string) []posture.LoginInfo {
	var logins []posture.LoginInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		login := posture.LoginInfo{User: fields[0], Terminal: fields[1]}
		if len(fields) >= 4 {
			if ts, err := time.ParseInLocation("2006-01-02 15:04", fields[2]+" "+fields[3], time.Local); err == nil {
				login.Since = ts
			}
		}
		if last := fields[len(fields)-1]; strings.HasPrefix(last, "(") && strings.HasSuffix(last, ")") {
			login.Host = strings.Trim(last, "()")
			// tmux and screen sessions report the multiplexer, not a remote host
			if strings.HasPrefix(login.Host, "tmux") || strings.HasPrefix(login.Host, ":") {
				login.Host = ""
			}
		}
		logins = append(logins, login)
	}
	return logins
}

func hostOrLocal(host string) string {
	if host == "" {
		return "local"
	}
	return host
}
