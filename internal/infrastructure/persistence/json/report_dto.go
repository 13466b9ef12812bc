package json

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

const (
	slotResult  = "result"
	slotSkipped = "skipped"
	slotFailed  = "failed"
)

// runReportDTO is the data transfer object for JSON serialization
type runReportDTO struct {
	ID               string     `json:"id"`
	Operator         string     `json:"operator,omitempty"`
	Hostname         string     `json:"hostname,omitempty"`
	StartedAt        string     `json:"started_at"`
	CompletedAt      string     `json:"completed_at,omitempty"`
	State            string     `json:"state"`
	ExitCode         int        `json:"exit_code"`
	Score            float64    `json:"score"`
	CriticalFindings []string   `json:"critical_findings"`
	Results          resultsDTO `json:"results"`
}

type resultsDTO struct {
	Interface        *categoryDTO `json:"interface,omitempty"`
	DNS              *categoryDTO `json:"dns,omitempty"`
	HostAudit        *categoryDTO `json:"host_audit,omitempty"`
	Opsec            *categoryDTO `json:"opsec,omitempty"`
	TrafficMonitor   *categoryDTO `json:"traffic_monitor,omitempty"`
	ConfidenceScore  float64      `json:"confidence_score"`
	CriticalFindings []string     `json:"critical_findings,omitempty"`
}

// categoryDTO holds exactly one payload when Slot is "result".
type categoryDTO struct {
	Slot           string             `json:"slot"`
	Reason         string             `json:"reason,omitempty"`
	Interface      *interfaceDTO      `json:"interface,omitempty"`
	DNS            *dnsDTO            `json:"dns,omitempty"`
	HostAudit      *hostAuditDTO      `json:"host_audit,omitempty"`
	Opsec          *opsecDTO          `json:"opsec,omitempty"`
	TrafficMonitor *trafficMonitorDTO `json:"traffic_monitor,omitempty"`
}

type interfaceDTO struct {
	Name               string         `json:"name"`
	Found              bool           `json:"found"`
	Up                 *bool          `json:"up,omitempty"`
	Running            *bool          `json:"running,omitempty"`
	Addresses          []netip.Prefix `json:"addresses,omitempty"`
	MAC                string         `json:"mac,omitempty"`
	IPNetworkMatch     string         `json:"ip_network_match"`
	ExternalIP         string         `json:"external_ip_status"`
	ReportedExternalIP *netip.Addr    `json:"reported_external_ip,omitempty"`
	Findings           []string       `json:"findings,omitempty"`
}

type dnsDTO struct {
	Expected     []netip.Addr `json:"expected,omitempty"`
	Found        []netip.Addr `json:"found,omitempty"`
	Status       string       `json:"status"`
	ResolverPath string       `json:"resolver_path"`
	Findings     []string     `json:"findings,omitempty"`
}

type socketDTO struct {
	Protocol  string     `json:"protocol"`
	LocalIP   netip.Addr `json:"local_ip"`
	LocalPort uint16     `json:"local_port"`
	UID       *uint32    `json:"uid,omitempty"`
	Inode     uint64     `json:"inode,omitempty"`
}

type processDTO struct {
	PID     int     `json:"pid"`
	Name    string  `json:"name"`
	UID     *uint32 `json:"uid,omitempty"`
	Cmdline string  `json:"cmdline,omitempty"`
}

type loginDTO struct {
	User     string `json:"user"`
	Terminal string `json:"terminal,omitempty"`
	Host     string `json:"host,omitempty"`
	Since    string `json:"since,omitempty"`
}

type fileChangeDTO struct {
	Path    string `json:"path"`
	ModTime string `json:"mod_time"`
}

type unitDTO struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	State string `json:"state,omitempty"`
}

type subCheckDTO struct {
	Errors   []string `json:"errors,omitempty"`
	Findings []string `json:"findings,omitempty"`
}

type hostAuditDTO struct {
	Sockets struct {
		Listening  []socketDTO `json:"listening,omitempty"`
		Unexpected []socketDTO `json:"unexpected,omitempty"`
		subCheckDTO
	} `json:"sockets"`
	Processes struct {
		Scanned    int          `json:"scanned"`
		Disallowed []processDTO `json:"disallowed,omitempty"`
		subCheckDTO
	} `json:"processes"`
	Logins struct {
		Active     []loginDTO `json:"active,omitempty"`
		Disallowed []loginDTO `json:"disallowed,omitempty"`
		subCheckDTO
	} `json:"logins"`
	Files struct {
		RecentlyModified []fileChangeDTO `json:"recently_modified,omitempty"`
		subCheckDTO
	} `json:"files"`
	Modules struct {
		Loaded     []string `json:"loaded,omitempty"`
		Disallowed []string `json:"disallowed,omitempty"`
		Missing    []string `json:"missing,omitempty"`
		Unexpected []string `json:"unexpected,omitempty"`
		subCheckDTO
	} `json:"modules"`
	Systemd struct {
		RunningServices    []unitDTO `json:"running_services,omitempty"`
		ActiveTimers       []unitDTO `json:"active_timers,omitempty"`
		DisallowedServices []unitDTO `json:"disallowed_services,omitempty"`
		DisallowedTimers   []unitDTO `json:"disallowed_timers,omitempty"`
		subCheckDTO
	} `json:"systemd"`
	Firewall struct {
		Skipped     bool   `json:"skipped,omitempty"`
		Unavailable bool   `json:"unavailable,omitempty"`
		Tool        string `json:"tool,omitempty"`
		Ruleset     string `json:"ruleset,omitempty"`
		subCheckDTO
	} `json:"firewall"`
	AllFindings []string `json:"all_findings,omitempty"`
}

type opsecDTO struct {
	HostsFindings []string `json:"hosts_findings,omitempty"`
	EnvFindings   []string `json:"env_findings,omitempty"`
	AllFindings   []string `json:"all_findings,omitempty"`
}

type leakDTO struct {
	Timestamp string     `json:"timestamp"`
	Interface string     `json:"interface"`
	Src       netip.Addr `json:"src"`
	Dst       netip.Addr `json:"dst"`
	Protocol  string     `json:"protocol"`
	SrcPort   uint16     `json:"src_port,omitempty"`
	DstPort   uint16     `json:"dst_port,omitempty"`
	Length    int        `json:"length"`
}

type fileEventDTO struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Op        string `json:"op"`
}

type trafficMonitorDTO struct {
	Interfaces  []string       `json:"interfaces,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	EndedAt     string         `json:"ended_at,omitempty"`
	PacketsSeen uint64         `json:"packets_seen"`
	Leaks       []leakDTO      `json:"leaks,omitempty"`
	FileEvents  []fileEventDTO `json:"file_events,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	Interrupted bool           `json:"interrupted"`
	Findings    []string       `json:"findings,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return t, nil
}

func toDTO(report *posture.RunReport) runReportDTO {
	dto := runReportDTO{
		ID:               report.ID,
		Operator:         report.Operator,
		Hostname:         report.Hostname,
		StartedAt:        formatTime(report.StartedAt),
		CompletedAt:      formatTime(report.CompletedAt),
		State:            report.State,
		ExitCode:         report.ExitCode,
		Score:            report.Score,
		CriticalFindings: report.CriticalFindings,
	}
	if dto.CriticalFindings == nil {
		dto.CriticalFindings = []string{}
	}
	if all := report.Results; all != nil {
		dto.Results = resultsDTO{
			Interface:        categoryToDTO(all.Interface),
			DNS:              categoryToDTO(all.DNS),
			HostAudit:        categoryToDTO(all.HostAudit),
			Opsec:            categoryToDTO(all.Opsec),
			TrafficMonitor:   categoryToDTO(all.TrafficMonitor),
			ConfidenceScore:  all.ConfidenceScore,
			CriticalFindings: all.CriticalFindings,
		}
	}
	return dto
}

func fromDTO(dto runReportDTO) (*posture.RunReport, error) {
	startedAt, err := parseTime("started_at", dto.StartedAt)
	if err != nil {
		return nil, err
	}
	completedAt, err := parseTime("completed_at", dto.CompletedAt)
	if err != nil {
		return nil, err
	}

	all := &posture.AllCheckResults{
		ConfidenceScore:  dto.Results.ConfidenceScore,
		CriticalFindings: dto.Results.CriticalFindings,
	}
	slots := []struct {
		category posture.Category
		dto      *categoryDTO
	}{
		{posture.CategoryInterface, dto.Results.Interface},
		{posture.CategoryDNS, dto.Results.DNS},
		{posture.CategoryHostAudit, dto.Results.HostAudit},
		{posture.CategoryOpsec, dto.Results.Opsec},
		{posture.CategoryTrafficMonitor, dto.Results.TrafficMonitor},
	}
	for _, s := range slots {
		r, err := categoryFromDTO(s.category, s.dto)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s result: %w", s.category, err)
		}
		if r == nil {
			continue
		}
		if err := all.Set(r); err != nil {
			return nil, err
		}
	}

	return &posture.RunReport{
		ID:               dto.ID,
		Operator:         dto.Operator,
		Hostname:         dto.Hostname,
		StartedAt:        startedAt,
		CompletedAt:      completedAt,
		State:            dto.State,
		ExitCode:         dto.ExitCode,
		Score:            dto.Score,
		CriticalFindings: dto.CriticalFindings,
		Results:          all,
	}, nil
}

func categoryToDTO(r posture.CategoryResult) *categoryDTO {
	switch v := r.(type) {
	case nil:
		return nil
	case posture.Skipped:
		return &categoryDTO{Slot: slotSkipped, Reason: v.Reason}
	case posture.Failed:
		return &categoryDTO{Slot: slotFailed, Reason: v.Reason}
	case *posture.InterfaceCheckResult:
		return &categoryDTO{Slot: slotResult, Interface: &interfaceDTO{
			Name:               v.Name,
			Found:              v.Found,
			Up:                 v.Up,
			Running:            v.Running,
			Addresses:          v.Addresses,
			MAC:                v.MAC,
			IPNetworkMatch:     string(v.IPNetworkMatch),
			ExternalIP:         string(v.ExternalIP),
			ReportedExternalIP: v.ReportedExternalIP,
			Findings:           v.Findings,
		}}
	case *posture.DNSCheckResult:
		return &categoryDTO{Slot: slotResult, DNS: &dnsDTO{
			Expected:     v.Expected,
			Found:        v.Found,
			Status:       string(v.Status),
			ResolverPath: v.ResolverPath,
			Findings:     v.Findings,
		}}
	case *posture.HostAuditResult:
		return &categoryDTO{Slot: slotResult, HostAudit: hostAuditToDTO(v)}
	case *posture.OpsecResult:
		return &categoryDTO{Slot: slotResult, Opsec: &opsecDTO{
			HostsFindings: v.HostsFindings,
			EnvFindings:   v.EnvFindings,
			AllFindings:   v.AllFindings,
		}}
	case *posture.TrafficMonitorResult:
		return &categoryDTO{Slot: slotResult, TrafficMonitor: trafficToDTO(v)}
	}
	return nil
}

func categoryFromDTO(c posture.Category, dto *categoryDTO) (posture.CategoryResult, error) {
	if dto == nil {
		return nil, nil
	}
	switch dto.Slot {
	case slotSkipped:
		return posture.Skipped{Of: c, Reason: dto.Reason}, nil
	case slotFailed:
		return posture.Failed{Of: c, Reason: dto.Reason}, nil
	case slotResult:
	default:
		return nil, fmt.Errorf("unknown slot kind %q", dto.Slot)
	}

	switch {
	case c == posture.CategoryInterface && dto.Interface != nil:
		d := dto.Interface
		return &posture.InterfaceCheckResult{
			Name:               d.Name,
			Found:              d.Found,
			Up:                 d.Up,
			Running:            d.Running,
			Addresses:          d.Addresses,
			MAC:                d.MAC,
			IPNetworkMatch:     posture.IPNetworkMatchStatus(d.IPNetworkMatch),
			ExternalIP:         posture.ExternalIPStatus(d.ExternalIP),
			ReportedExternalIP: d.ReportedExternalIP,
			Findings:           d.Findings,
		}, nil
	case c == posture.CategoryDNS && dto.DNS != nil:
		d := dto.DNS
		return &posture.DNSCheckResult{
			Expected:     d.Expected,
			Found:        d.Found,
			Status:       posture.DNSMatchStatus(d.Status),
			ResolverPath: d.ResolverPath,
			Findings:     d.Findings,
		}, nil
	case c == posture.CategoryHostAudit && dto.HostAudit != nil:
		return hostAuditFromDTO(dto.HostAudit)
	case c == posture.CategoryOpsec && dto.Opsec != nil:
		return &posture.OpsecResult{
			HostsFindings: dto.Opsec.HostsFindings,
			EnvFindings:   dto.Opsec.EnvFindings,
			AllFindings:   dto.Opsec.AllFindings,
		}, nil
	case c == posture.CategoryTrafficMonitor && dto.TrafficMonitor != nil:
		return trafficFromDTO(dto.TrafficMonitor)
	}
	return nil, fmt.Errorf("missing payload for %s", c)
}

func hostAuditToDTO(r *posture.HostAuditResult) *hostAuditDTO {
	d := &hostAuditDTO{AllFindings: r.AllFindings}

	d.Sockets.Listening = socketsToDTO(r.Sockets.Listening)
	d.Sockets.Unexpected = socketsToDTO(r.Sockets.Unexpected)
	d.Sockets.subCheckDTO = subCheckDTO{r.Sockets.Errors, r.Sockets.Findings}

	d.Processes.Scanned = r.Processes.Scanned
	for _, p := range r.Processes.Disallowed {
		d.Processes.Disallowed = append(d.Processes.Disallowed, processDTO(p))
	}
	d.Processes.subCheckDTO = subCheckDTO{r.Processes.Errors, r.Processes.Findings}

	d.Logins.Active = loginsToDTO(r.Logins.Active)
	d.Logins.Disallowed = loginsToDTO(r.Logins.Disallowed)
	d.Logins.subCheckDTO = subCheckDTO{r.Logins.Errors, r.Logins.Findings}

	for _, f := range r.Files.RecentlyModified {
		d.Files.RecentlyModified = append(d.Files.RecentlyModified, fileChangeDTO{Path: f.Path, ModTime: formatTime(f.ModTime)})
	}
	d.Files.subCheckDTO = subCheckDTO{r.Files.Errors, r.Files.Findings}

	d.Modules.Loaded = r.Modules.Loaded
	d.Modules.Disallowed = r.Modules.Disallowed
	d.Modules.Missing = r.Modules.Missing
	d.Modules.Unexpected = r.Modules.Unexpected
	d.Modules.subCheckDTO = subCheckDTO{r.Modules.Errors, r.Modules.Findings}

	d.Systemd.RunningServices = unitsToDTO(r.Systemd.RunningServices)
	d.Systemd.ActiveTimers = unitsToDTO(r.Systemd.ActiveTimers)
	d.Systemd.DisallowedServices = unitsToDTO(r.Systemd.DisallowedServices)
	d.Systemd.DisallowedTimers = unitsToDTO(r.Systemd.DisallowedTimers)
	d.Systemd.subCheckDTO = subCheckDTO{r.Systemd.Errors, r.Systemd.Findings}

	d.Firewall.Skipped = r.Firewall.Skipped
	d.Firewall.Unavailable = r.Firewall.Unavailable
	d.Firewall.Tool = r.Firewall.Tool
	d.Firewall.Ruleset = r.Firewall.Ruleset
	d.Firewall.subCheckDTO = subCheckDTO{r.Firewall.Errors, r.Firewall.Findings}

	return d
}

func hostAuditFromDTO(d *hostAuditDTO) (*posture.HostAuditResult, error) {
	r := &posture.HostAuditResult{AllFindings: d.AllFindings}

	r.Sockets = posture.SocketCheck{
		Listening:  socketsFromDTO(d.Sockets.Listening),
		Unexpected: socketsFromDTO(d.Sockets.Unexpected),
		Errors:     d.Sockets.Errors,
		Findings:   d.Sockets.Findings,
	}

	r.Processes = posture.ProcessCheck{Scanned: d.Processes.Scanned, Errors: d.Processes.Errors, Findings: d.Processes.Findings}
	for _, p := range d.Processes.Disallowed {
		r.Processes.Disallowed = append(r.Processes.Disallowed, posture.ProcessInfo(p))
	}

	active, err := loginsFromDTO(d.Logins.Active)
	if err != nil {
		return nil, err
	}
	disallowed, err := loginsFromDTO(d.Logins.Disallowed)
	if err != nil {
		return nil, err
	}
	r.Logins = posture.LoginCheck{Active: active, Disallowed: disallowed, Errors: d.Logins.Errors, Findings: d.Logins.Findings}

	r.Files = posture.FileCheck{Errors: d.Files.Errors, Findings: d.Files.Findings}
	for _, f := range d.Files.RecentlyModified {
		mod, err := parseTime("mod_time", f.ModTime)
		if err != nil {
			return nil, err
		}
		r.Files.RecentlyModified = append(r.Files.RecentlyModified, posture.FileChange{Path: f.Path, ModTime: mod})
	}

	r.Modules = posture.ModuleCheck{
		Loaded:     d.Modules.Loaded,
		Disallowed: d.Modules.Disallowed,
		Missing:    d.Modules.Missing,
		Unexpected: d.Modules.Unexpected,
		Errors:     d.Modules.Errors,
		Findings:   d.Modules.Findings,
	}

	r.Systemd = posture.SystemdCheck{
		RunningServices:    unitsFromDTO(d.Systemd.RunningServices),
		ActiveTimers:       unitsFromDTO(d.Systemd.ActiveTimers),
		DisallowedServices: unitsFromDTO(d.Systemd.DisallowedServices),
		DisallowedTimers:   unitsFromDTO(d.Systemd.DisallowedTimers),
		Errors:             d.Systemd.Errors,
		Findings:           d.Systemd.Findings,
	}

	r.Firewall = posture.FirewallCheck{
		Skipped:     d.Firewall.Skipped,
		Unavailable: d.Firewall.Unavailable,
		Tool:        d.Firewall.Tool,
		Ruleset:     d.Firewall.Ruleset,
		Errors:      d.Firewall.Errors,
		Findings:    d.Firewall.Findings,
	}
	return r, nil
}

func socketsToDTO(in []posture.ListeningSocket) []socketDTO {
	var out []socketDTO
	for _, s := range in {
		out = append(out, socketDTO(s))
	}
	return out
}

func socketsFromDTO(in []socketDTO) []posture.ListeningSocket {
	var out []posture.ListeningSocket
	for _, s := range in {
		out = append(out, posture.ListeningSocket(s))
	}
	return out
}

func loginsToDTO(in []posture.LoginInfo) []loginDTO {
	var out []loginDTO
	for _, l := range in {
		out = append(out, loginDTO{User: l.User, Terminal: l.Terminal, Host: l.Host, Since: formatTime(l.Since)})
	}
	return out
}

func loginsFromDTO(in []loginDTO) ([]posture.LoginInfo, error) {
	var out []posture.LoginInfo
	for _, l := range in {
		since, err := parseTime("since", l.Since)
		if err != nil {
			return nil, err
		}
		out = append(out, posture.LoginInfo{User: l.User, Terminal: l.Terminal, Host: l.Host, Since: since})
	}
	return out, nil
}

func unitsToDTO(in []posture.SystemdUnit) []unitDTO {
	var out []unitDTO
	for _, u := range in {
		out = append(out, unitDTO(u))
	}
	return out
}

func unitsFromDTO(in []unitDTO) []posture.SystemdUnit {
	var out []posture.SystemdUnit
	for _, u := range in {
		out = append(out, posture.SystemdUnit(u))
	}
	return out
}

func trafficToDTO(r *posture.TrafficMonitorResult) *trafficMonitorDTO {
	d := &trafficMonitorDTO{
		Interfaces:  r.Interfaces,
		StartedAt:   formatTime(r.StartedAt),
		EndedAt:     formatTime(r.EndedAt),
		PacketsSeen: r.PacketsSeen,
		Errors:      r.Errors,
		Interrupted: r.Interrupted,
		Findings:    r.Findings,
	}
	for _, l := range r.Leaks {
		d.Leaks = append(d.Leaks, leakDTO{
			Timestamp: formatTime(l.Timestamp),
			Interface: l.Interface,
			Src:       l.Src,
			Dst:       l.Dst,
			Protocol:  l.Protocol,
			SrcPort:   l.SrcPort,
			DstPort:   l.DstPort,
			Length:    l.Length,
		})
	}
	for _, e := range r.FileEvents {
		d.FileEvents = append(d.FileEvents, fileEventDTO{Timestamp: formatTime(e.Timestamp), Path: e.Path, Op: e.Op})
	}
	return d
}

func trafficFromDTO(d *trafficMonitorDTO) (*posture.TrafficMonitorResult, error) {
	started, err := parseTime("started_at", d.StartedAt)
	if err != nil {
		return nil, err
	}
	ended, err := parseTime("ended_at", d.EndedAt)
	if err != nil {
		return nil, err
	}
	r := &posture.TrafficMonitorResult{
		Interfaces:  d.Interfaces,
		StartedAt:   started,
		EndedAt:     ended,
		PacketsSeen: d.PacketsSeen,
		Errors:      d.Errors,
		Interrupted: d.Interrupted,
		Findings:    d.Findings,
	}
	for _, l := range d.Leaks {
		ts, err := parseTime("leak timestamp", l.Timestamp)
		if err != nil {
			return nil, err
		}
		r.Leaks = append(r.Leaks, posture.LeakEvent{
			Timestamp: ts,
			Interface: l.Interface,
			Src:       l.Src,
			Dst:       l.Dst,
			Protocol:  l.Protocol,
			SrcPort:   l.SrcPort,
			DstPort:   l.DstPort,
			Length:    l.Length,
		})
	}
	for _, e := range d.FileEvents {
		ts, err := parseTime("file event timestamp", e.Timestamp)
		if err != nil {
			return nil, err
		}
		r.FileEvents = append(r.FileEvents, posture.FileEvent{Timestamp: ts, Path: e.Path, Op: e.Op})
	}
	return r, nil
}
