package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	consts "github.com/khanhnv2901/netguard/internal/shared/constants"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass", "match":
		return colorSuccess(status)
	case "warn", "warning", "skipped":
		return colorWarn(status)
	case "error", "fail", "failed", "missing", "mismatch":
		return colorError(status)
	default:
		return status
	}
}

func confidenceLabel(score float64) string {
	switch {
	case score >= consts.ConfidenceHigh:
		return "HIGH"
	case score >= consts.ConfidenceModerate:
		return "MODERATE"
	default:
		return "LOW"
	}
}

func formatScoreWithColor(score float64) string {
	text := fmt.Sprintf("%.1f/100 (%s)", score, confidenceLabel(score))
	switch {
	case score >= consts.ConfidenceHigh:
		return colorSuccess(text)
	case score >= consts.ConfidenceModerate:
		return colorWarn(text)
	default:
		return colorError(text)
	}
}

func formatStateWithColor(state string) string {
	switch supervisor.State(state) {
	case supervisor.StateExitOK:
		return colorSuccess(state)
	case supervisor.StateExitLowConfidence, supervisor.StateExitInterrupted:
		return colorWarn(state)
	case supervisor.StateExitError:
		return colorError(state)
	default:
		return state
	}
}
