package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// ExternalIPTimeout bounds the single outbound "echo my IP" request.
	ExternalIPTimeout = 10 * time.Second
	// ExternalIPBodyLimit caps how much of the lookup response we read.
	ExternalIPBodyLimit = 1 << 20
	// MonitorPollInterval is how often the supervisor re-checks for shutdown while waiting.
	MonitorPollInterval = 500 * time.Millisecond
	// MonitorJoinTimeout bounds the graceful join of the monitor task after an interrupt.
	MonitorJoinTimeout = 5 * time.Second
	// CaptureReadTimeout is the pcap read timeout, which also bounds cancellation latency.
	CaptureReadTimeout = 500 * time.Millisecond
	// RecentModificationWindow flags watched files changed within this window.
	RecentModificationWindow = time.Hour
	// FirewallExcerptLimit caps the stored firewall ruleset text.
	FirewallExcerptLimit = 16 * 1024
)

const (
	// ConfidenceHigh is the score at or above which a run passes without warning.
	ConfidenceHigh = 90.0
	// ConfidenceModerate is the score below which a run is low-confidence.
	ConfidenceModerate = 70.0
)
