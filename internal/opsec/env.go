package opsec

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

var sensitiveKeyParts = []string{"PASS", "SECRET", "TOKEN", "API_KEY", "PRIVATE_KEY"}

var riskyVars = []string{"LD_PRELOAD", "LD_LIBRARY_PATH"}

// CheckEnvironment inspects KEY=VALUE pairs. Secret-looking values are never echoed.
func CheckEnvironment(environ []string, disallowed []string) []string {
	entries := slices.Clone(environ)
	sort.Strings(entries)

	var findings []string
	for _, kv := range entries {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if slices.Contains(disallowed, key) {
			findings = append(findings, fmt.Sprintf("Disallowed environment variable set: %s", key))
			continue
		}

		upper := strings.ToUpper(key)
		for _, part := range sensitiveKeyParts {
			if strings.Contains(upper, part) {
				findings = append(findings, fmt.Sprintf("Potentially sensitive environment variable: %s", key))
				break
			}
		}
		if slices.Contains(riskyVars, upper) {
			findings = append(findings, fmt.Sprintf("Potentially risky environment variable set: %s=%s", key, value))
		}
	}
	return findings
}
