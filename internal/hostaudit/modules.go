package hostaudit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

func (a *Auditor) checkModules(required, disallowed []string, enforceRequiredOnly bool) posture.ModuleCheck {
	var check posture.ModuleCheck
	fail := func(msg string) posture.ModuleCheck {
		check.Errors = append(check.Errors, msg)
		check.Findings = append(check.Findings, msg)
		return check
	}

	if enforceRequiredOnly && len(required) == 0 {
		return fail("Config error: enforce_required_modules_only is set but required_kernel_modules is not.")
	}

	path := filepath.Join(a.procRoot(), "modules")
	f, err := os.Open(path)
	if err != nil {
		return fail(fmt.Sprintf("Failed to open %s: %v", path, err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		check.Loaded = append(check.Loaded, name)

		switch {
		case slices.Contains(disallowed, name):
			check.Disallowed = append(check.Disallowed, name)
			check.Findings = append(check.Findings, fmt.Sprintf("Disallowed kernel module loaded: %s", name))
		case enforceRequiredOnly && !slices.Contains(required, name):
			check.Unexpected = append(check.Unexpected, name)
			check.Findings = append(check.Findings, fmt.Sprintf("Unexpected kernel module loaded (required list enforced): %s", name))
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Sprintf("Error reading %s: %v", path, err))
	}

	for _, name := range required {
		if !slices.Contains(check.Loaded, name) {
			check.Missing = append(check.Missing, name)
			check.Findings = append(check.Findings, fmt.Sprintf("Required kernel module not loaded: %s", name))
		}
	}
	a.Logger.Infow("kernel modules audited", "loaded", len(check.Loaded),
		"disallowed", len(check.Disallowed), "missing", len(check.Missing), "unexpected", len(check.Unexpected))
	return check
}
