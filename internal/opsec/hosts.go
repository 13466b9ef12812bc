package opsec

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strings"
)

// CheckHostsFile flags entries that redirect names away from where they belong:
// loopback addresses mapped to real names, real addresses mapped to "localhost",
// and explicitly disallowed names pointing anywhere but loopback.
func CheckHostsFile(path string, disallowed []string) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("Failed to open %s: %v", path, err)}
	}
	defer f.Close()

	var findings []string
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			findings = append(findings,
				fmt.Sprintf("Could not parse IP address %q in %s (line %d); entry skipped.", fields[0], path, lineNum))
			continue
		}
		addr = addr.Unmap()
		names := fields[1:]

		if addr.IsLoopback() {
			for _, name := range names {
				if !isLocalhostName(name) {
					findings = append(findings,
						fmt.Sprintf("Suspicious localhost entry: IP %s points to %q (line %d).", addr, name, lineNum))
				}
			}
			continue
		}

		for _, name := range names {
			if name == "localhost" {
				findings = append(findings,
					fmt.Sprintf("Suspicious entry: non-localhost IP %s points to \"localhost\" (line %d).", addr, lineNum))
			}
			if slices.Contains(disallowed, name) {
				findings = append(findings,
					fmt.Sprintf("Disallowed hosts entry: IP %s mapped to disallowed host %q (line %d).", addr, name, lineNum))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		findings = append(findings, fmt.Sprintf("Error reading %s: %v", path, err))
	}
	return findings
}

// isLocalhostName accepts loopback aliases and the machine's own hostname,
// which Debian maps to 127.0.1.1.
func isLocalhostName(name string) bool {
	switch name {
	case "localhost", "localhost.localdomain", "ip6-localhost", "ip6-loopback":
		return true
	}
	if strings.HasSuffix(name, ".localhost") {
		return true
	}
	host, err := os.Hostname()
	if err != nil {
		return false
	}
	return name == host || strings.HasPrefix(name, host+".")
}
