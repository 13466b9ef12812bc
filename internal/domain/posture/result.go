package posture

import (
	"fmt"
	"net/netip"
	"time"
)

// InterfaceCheckResult is produced once per run by the interface verifier.
type InterfaceCheckResult struct {
	Name               string
	Found              bool
	Up                 *bool
	Running            *bool
	Addresses          []netip.Prefix
	MAC                string
	IPNetworkMatch     IPNetworkMatchStatus
	ExternalIP         ExternalIPStatus
	ReportedExternalIP *netip.Addr
	Findings           []string
}

// IsUp reports whether the interface was found with its link up.
func (r *InterfaceCheckResult) IsUp() bool {
	return r.Found && r.Up != nil && *r.Up
}

// DNSCheckResult is produced once per run by the DNS verifier.
type DNSCheckResult struct {
	Expected     []netip.Addr
	Found        []netip.Addr
	Status       DNSMatchStatus
	ResolverPath string
	Findings     []string
}

// ListeningSocket is a bound socket seen in /proc/net.
type ListeningSocket struct {
	Protocol  string
	LocalIP   netip.Addr
	LocalPort uint16
	UID       *uint32
	Inode     uint64
}

func (s ListeningSocket) String() string {
	return fmt.Sprintf("%s %s", s.Protocol, netip.AddrPortFrom(s.LocalIP, s.LocalPort))
}

// SocketCheck holds listening-socket audit output.
type SocketCheck struct {
	Listening  []ListeningSocket
	Unexpected []ListeningSocket
	Errors     []string
	Findings   []string
}

// ProcessInfo describes one running process.
type ProcessInfo struct {
	PID     int
	Name    string
	UID     *uint32
	Cmdline string
}

// ProcessCheck holds process audit output.
type ProcessCheck struct {
	Scanned    int
	Disallowed []ProcessInfo
	Errors     []string
	Findings   []string
}

// LoginInfo is one active user session.
type LoginInfo struct {
	User     string
	Terminal string
	Host     string
	Since    time.Time
}

// LoginCheck holds login audit output.
type LoginCheck struct {
	Active     []LoginInfo
	Disallowed []LoginInfo
	Errors     []string
	Findings   []string
}

// FileChange is a watched file modified inside the recent window.
type FileChange struct {
	Path    string
	ModTime time.Time
}

// FileCheck holds watched-file audit output.
type FileCheck struct {
	RecentlyModified []FileChange
	Errors           []string
	Findings         []string
}

// ModuleCheck holds kernel module audit output.
type ModuleCheck struct {
	Loaded     []string
	Disallowed []string
	Missing    []string
	Unexpected []string
	Errors     []string
	Findings   []string
}

// SystemdUnit is a running service or active timer.
type SystemdUnit struct {
	Name  string
	Type  string
	State string
}

// SystemdCheck holds systemd audit output.
type SystemdCheck struct {
	RunningServices    []SystemdUnit
	ActiveTimers       []SystemdUnit
	DisallowedServices []SystemdUnit
	DisallowedTimers   []SystemdUnit
	Errors             []string
	Findings           []string
}

// FirewallCheck records which tool listed the ruleset and an excerpt of it.
// Errors holds listing command failures. Unavailable is set when neither nft
// nor iptables is installed.
type FirewallCheck struct {
	Skipped     bool
	Unavailable bool
	Tool        string
	Ruleset     string
	Errors      []string
	Findings    []string
}

// HostAuditResult aggregates every host audit sub-check.
type HostAuditResult struct {
	Sockets     SocketCheck
	Processes   ProcessCheck
	Logins      LoginCheck
	Files       FileCheck
	Modules     ModuleCheck
	Systemd     SystemdCheck
	Firewall    FirewallCheck
	AllFindings []string
}

// CollectionErrors counts sub-checks that hit read or parse errors. Firewall
// failures are scored on their own and not counted here.
func (r *HostAuditResult) CollectionErrors() int {
	n := 0
	for _, errs := range [][]string{
		r.Sockets.Errors, r.Processes.Errors, r.Logins.Errors, r.Files.Errors,
		r.Modules.Errors, r.Systemd.Errors,
	} {
		if len(errs) > 0 {
			n++
		}
	}
	return n
}

// OpsecResult holds hosts-file and environment findings.
type OpsecResult struct {
	HostsFindings []string
	EnvFindings   []string
	AllFindings   []string
}

// LeakEvent is a packet that left through a physical interface instead of the tunnel.
type LeakEvent struct {
	Timestamp time.Time
	Interface string
	Src       netip.Addr
	Dst       netip.Addr
	Protocol  string
	SrcPort   uint16
	DstPort   uint16
	Length    int
}

func (e LeakEvent) String() string {
	if e.SrcPort == 0 && e.DstPort == 0 {
		return fmt.Sprintf("%s %s -> %s on %s (%d bytes)", e.Protocol, e.Src, e.Dst, e.Interface, e.Length)
	}
	return fmt.Sprintf("%s %s -> %s on %s (%d bytes)",
		e.Protocol, netip.AddrPortFrom(e.Src, e.SrcPort), netip.AddrPortFrom(e.Dst, e.DstPort), e.Interface, e.Length)
}

// FileEvent is a filesystem change on a watched file observed while monitoring.
type FileEvent struct {
	Timestamp time.Time
	Path      string
	Op        string
}

// TrafficMonitorResult is written once, by the monitor task, when it stops.
type TrafficMonitorResult struct {
	Interfaces  []string
	StartedAt   time.Time
	EndedAt     time.Time
	PacketsSeen uint64
	Leaks       []LeakEvent
	FileEvents  []FileEvent
	Errors      []string
	Interrupted bool
	Findings    []string
}

// AllCheckResults holds one slot per category plus the derived score.
// Each slot is written by exactly one owner, exactly once.
type AllCheckResults struct {
	Interface      CategoryResult
	DNS            CategoryResult
	HostAudit      CategoryResult
	Opsec          CategoryResult
	TrafficMonitor CategoryResult

	ConfidenceScore  float64
	CriticalFindings []string
}

// Get returns the slot for c.
func (a *AllCheckResults) Get(c Category) CategoryResult {
	switch c {
	case CategoryInterface:
		return a.Interface
	case CategoryDNS:
		return a.DNS
	case CategoryHostAudit:
		return a.HostAudit
	case CategoryOpsec:
		return a.Opsec
	case CategoryTrafficMonitor:
		return a.TrafficMonitor
	}
	return nil
}

// Set stores r in the slot named by its category. It refuses to overwrite a populated slot.
func (a *AllCheckResults) Set(r CategoryResult) error {
	if r == nil {
		return fmt.Errorf("cannot store nil category result")
	}
	slot := a.slot(r.Category())
	if slot == nil {
		return fmt.Errorf("unknown category %q", r.Category())
	}
	if *slot != nil {
		return fmt.Errorf("category %q already populated", r.Category())
	}
	*slot = r
	return nil
}

func (a *AllCheckResults) slot(c Category) *CategoryResult {
	switch c {
	case CategoryInterface:
		return &a.Interface
	case CategoryDNS:
		return &a.DNS
	case CategoryHostAudit:
		return &a.HostAudit
	case CategoryOpsec:
		return &a.Opsec
	case CategoryTrafficMonitor:
		return &a.TrafficMonitor
	}
	return nil
}
