package hostaudit

import (
	"fmt"
	"os"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
)

func (a *Auditor) checkFiles(watched []string) posture.FileCheck {
	var check posture.FileCheck
	now := a.now()

	for _, path := range watched {
		info, err := os.Stat(path)
		if err != nil {
			msg := fmt.Sprintf("Failed to stat watched file %s: %v", path, err)
			check.Errors = append(check.Errors, msg)
			check.Findings = append(check.Findings, msg)
			continue
		}
		mtime := info.ModTime()
		switch {
		case mtime.After(now):
			check.RecentlyModified = append(check.RecentlyModified, posture.FileChange{Path: path, ModTime: mtime})
			check.Findings = append(check.Findings,
				fmt.Sprintf("Watched file %s has a modification time in the future (%s).", path, mtime.Format("2006-01-02 15:04:05")))
		case now.Sub(mtime) <= constants.RecentModificationWindow:
			check.RecentlyModified = append(check.RecentlyModified, posture.FileChange{Path: path, ModTime: mtime})
			check.Findings = append(check.Findings,
				fmt.Sprintf("Watched file %s was modified recently (%s ago).", path, now.Sub(mtime).Round(time.Second)))
		}
	}
	a.Logger.Infow("watched files audited", "files", len(watched), "recent", len(check.RecentlyModified))
	return check
}
