package scoring

import "github.com/khanhnv2901/netguard/internal/domain/posture"

// Weights are the penalty magnitudes subtracted from a perfect score of 100.
// The magnitudes are tunable; their relative ordering is not.
type Weights struct {
	MissingInterface float64
	MissingDNS       float64
	MissingHostAudit float64
	MissingOpsec     float64
	MissingMonitor   float64

	InterfaceNotFound   float64
	InterfaceDown       float64
	InterfaceNotRunning float64
	IPNetworkMismatch   float64
	InterfaceNoIPs      float64
	ExternalIPMismatch  float64
	ExternalIPFailed    float64

	DNSMismatch  float64
	DNSReadError float64

	UnexpectedSocket    float64
	DisallowedProcess   float64
	DisallowedLogin     float64
	RecentFileChange    float64
	DisallowedModule    float64
	MissingModule       float64
	UnexpectedModule    float64
	DisallowedService   float64
	DisallowedTimer     float64
	AuditCollectError   float64
	FirewallListError   float64
	FirewallUnavailable float64
	HostAuditCap        float64
	OpsecPerFinding     float64
	OpsecCap            float64
	LeakBase            float64
	LeakPerEvent        float64
	LeakCap             float64
	MonitorErrors       float64
	FileEventPerChange  float64
	FileEventCap        float64
	MaxLeakDetailsShown int
}

// DefaultWeights is the shipped scoring policy.
func DefaultWeights() Weights {
	return Weights{
		MissingInterface: 10,
		MissingDNS:       10,
		MissingHostAudit: 10,
		MissingOpsec:     5,
		MissingMonitor:   20,

		InterfaceNotFound:   50,
		InterfaceDown:       30,
		InterfaceNotRunning: 5,
		IPNetworkMismatch:   25,
		InterfaceNoIPs:      10,
		ExternalIPMismatch:  40,
		ExternalIPFailed:    10,

		DNSMismatch:  30,
		DNSReadError: 20,

		UnexpectedSocket:    15,
		DisallowedProcess:   25,
		DisallowedLogin:     20,
		RecentFileChange:    5,
		DisallowedModule:    30,
		MissingModule:       25,
		UnexpectedModule:    10,
		DisallowedService:   20,
		DisallowedTimer:     15,
		AuditCollectError:   5,
		FirewallListError:   10,
		FirewallUnavailable: 5,
		HostAuditCap:        60,
		OpsecPerFinding:     2,
		OpsecCap:            20,
		LeakBase:            50,
		LeakPerEvent:        10,
		LeakCap:             80,
		MonitorErrors:       15,
		FileEventPerChange:  5,
		FileEventCap:        20,
		MaxLeakDetailsShown: 3,
	}
}

func (w Weights) missing(c posture.Category) float64 {
	switch c {
	case posture.CategoryInterface:
		return w.MissingInterface
	case posture.CategoryDNS:
		return w.MissingDNS
	case posture.CategoryHostAudit:
		return w.MissingHostAudit
	case posture.CategoryOpsec:
		return w.MissingOpsec
	case posture.CategoryTrafficMonitor:
		return w.MissingMonitor
	}
	return 0
}
