package hostaudit

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

func (a *Auditor) checkProcesses(disallowed []string) posture.ProcessCheck {
	var check posture.ProcessCheck

	entries, err := os.ReadDir(a.procRoot())
	if err != nil {
		msg := fmt.Sprintf("Failed to list processes in %s: %v", a.procRoot(), err)
		check.Errors = append(check.Errors, msg)
		check.Findings = append(check.Findings, msg)
		return check
	}

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}
		info, ok := a.readProcess(pid)
		if !ok {
			// exited between readdir and open
			continue
		}
		check.Scanned++

		if matchesDisallowed(info, disallowed) {
			check.Disallowed = append(check.Disallowed, info)
			check.Findings = append(check.Findings,
				fmt.Sprintf("Disallowed process running: %s (PID %d, cmdline %q)", info.Name, info.PID, info.Cmdline))
		}
	}
	a.Logger.Infow("processes audited", "scanned", check.Scanned, "disallowed", len(check.Disallowed))
	return check
}

func (a *Auditor) readProcess(pid int) (posture.ProcessInfo, bool) {
	dir := filepath.Join(a.procRoot(), strconv.Itoa(pid))
	info := posture.ProcessInfo{PID: pid}

	f, err := os.Open(filepath.Join(dir, "status"))
	if err != nil {
		return info, false
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			info.Name = value
		case "Uid":
			// real, effective, saved, fs
			if fields := strings.Fields(value); len(fields) > 0 {
				if uid, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
					u := uint32(uid)
					info.UID = &u
				}
			}
		}
	}
	_ = f.Close()

	if raw, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		info.Cmdline = strings.TrimSpace(string(bytes.ReplaceAll(raw, []byte{0}, []byte{' '})))
	}
	return info, info.Name != ""
}

// matchesDisallowed compares the kernel task name and the basename of argv[0];
// the task name is truncated to 15 bytes, so argv[0] catches longer names.
func matchesDisallowed(info posture.ProcessInfo, disallowed []string) bool {
	if len(disallowed) == 0 {
		return false
	}
	if slices.Contains(disallowed, info.Name) {
		return true
	}
	if fields := strings.Fields(info.Cmdline); len(fields) > 0 {
		return slices.Contains(disallowed, filepath.Base(fields[0]))
	}
	return false
}
