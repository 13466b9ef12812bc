package checker

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// Observation is a point-in-time view of one network interface.
type Observation struct {
	Name      string
	Flags     net.Flags
	Addresses []netip.Prefix
	MAC       string
}

// InterfaceSource answers interface lookups. A missing interface is reported as
// found == false, not as an error.
type InterfaceSource interface {
	Lookup(name string) (obs Observation, found bool, err error)
}

// OSInterfaceSource queries the host's interfaces through the net package.
type OSInterfaceSource struct{}

// Lookup implements InterfaceSource.
func (OSInterfaceSource) Lookup(name string) (Observation, bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Observation{}, false, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		obs, err := observe(iface)
		return obs, true, err
	}
	return Observation{}, false, nil
}

func observe(iface net.Interface) (Observation, error) {
	obs := Observation{
		Name:  iface.Name,
		Flags: iface.Flags,
		MAC:   iface.HardwareAddr.String(),
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return obs, fmt.Errorf("failed to read addresses of %s: %w", iface.Name, err)
	}
	obs.Addresses = PrefixesFromAddrs(addrs)
	return obs, nil
}

// PrefixesFromAddrs converts net.Addr values into address/prefix-length pairs.
func PrefixesFromAddrs(addrs []net.Addr) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(addrs))
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ones, _ := ipNet.Mask.Size()
		out = append(out, netip.PrefixFrom(addr.Unmap(), ones))
	}
	return out
}

// InterfaceVerifier checks the VPN interface state, addressing and, when enabled,
// the externally reported IP.
type InterfaceVerifier struct {
	Source InterfaceSource
	Lookup IPLookup
	Logger *zap.SugaredLogger
}

// NewInterfaceVerifier builds a verifier backed by the given providers.
func NewInterfaceVerifier(source InterfaceSource, lookup IPLookup, logger *zap.SugaredLogger) *InterfaceVerifier {
	return &InterfaceVerifier{Source: source, Lookup: lookup, Logger: nopIfNil(logger)}
}

// Category implements Collector.
func (v *InterfaceVerifier) Category() posture.Category { return posture.CategoryInterface }

// Collect implements Collector.
func (v *InterfaceVerifier) Collect(ctx context.Context, p policy.Policy) (posture.CategoryResult, error) {
	return v.Verify(ctx, p), nil
}

// Verify never fails: every problem becomes a status plus a finding.
func (v *InterfaceVerifier) Verify(ctx context.Context, p policy.Policy) *posture.InterfaceCheckResult {
	log := nopIfNil(v.Logger)
	result := &posture.InterfaceCheckResult{
		Name:           p.VPNInterface,
		IPNetworkMatch: posture.IPNetworkNotChecked,
		ExternalIP:     posture.ExternalIPDisabled,
	}

	obs, found, err := v.Source.Lookup(p.VPNInterface)
	if err != nil && !found {
		log.Errorw("interface lookup failed", "interface", p.VPNInterface, "error", err)
		result.Findings = append(result.Findings,
			fmt.Sprintf("Configured VPN interface %s not found (lookup error: %v).", p.VPNInterface, err))
		return result
	}
	if !found {
		log.Warnw("VPN interface not found", "interface", p.VPNInterface)
		result.Findings = append(result.Findings, fmt.Sprintf("Configured VPN interface %s not found.", p.VPNInterface))
		return result
	}

	result.Found = true
	up := obs.Flags&net.FlagUp != 0
	running := obs.Flags&net.FlagRunning != 0
	result.Up = &up
	result.Running = &running
	result.Addresses = obs.Addresses
	result.MAC = obs.MAC
	if err != nil {
		// found but addresses unreadable: continue with what we have
		log.Warnw("partial interface observation", "interface", p.VPNInterface, "error", err)
		result.Findings = append(result.Findings,
			fmt.Sprintf("Could not read all addresses of VPN interface %s: %v", p.VPNInterface, err))
	}

	if !up {
		log.Warnw("VPN interface is down", "interface", p.VPNInterface)
		result.Findings = append(result.Findings, fmt.Sprintf("VPN interface %s is down.", p.VPNInterface))
		return result
	}
	if !running {
		result.Findings = append(result.Findings, fmt.Sprintf("VPN interface %s is up but not running.", p.VPNInterface))
	}

	result.IPNetworkMatch = classifyAddresses(result, p.ExpectedVPNNetwork)
	log.Infow("interface addressing evaluated",
		"interface", p.VPNInterface, "status", result.IPNetworkMatch, "addresses", len(result.Addresses))

	if !p.CheckExternalIP {
		return result
	}
	log.Warnw("external IP check enabled: the lookup request may not be routed through the tunnel",
		"url", lookupURL(p))
	v.checkExternalIP(ctx, p, result, log)
	return result
}

func classifyAddresses(result *posture.InterfaceCheckResult, expected *netip.Prefix) posture.IPNetworkMatchStatus {
	name := result.Name
	if expected == nil {
		if len(result.Addresses) == 0 {
			result.Findings = append(result.Findings, fmt.Sprintf("VPN interface %s has no IP addresses assigned.", name))
			return posture.IPNetworkInterfaceHasNoIPs
		}
		return posture.IPNetworkNotChecked
	}

	if len(result.Addresses) == 0 {
		result.Findings = append(result.Findings,
			fmt.Sprintf("VPN interface %s has no IP addresses, expected an address in %s.", name, expected))
		return posture.IPNetworkNoIPs
	}

	for _, prefix := range result.Addresses {
		if expected.Contains(prefix.Addr()) {
			return posture.IPNetworkMatch
		}
	}

	result.Findings = append(result.Findings,
		fmt.Sprintf("No IP address on VPN interface %s belongs to the expected network %s. Found IPs: %s",
			name, expected, joinPrefixes(result.Addresses)))
	return posture.IPNetworkMismatch
}

func (v *InterfaceVerifier) checkExternalIP(ctx context.Context, p policy.Policy, result *posture.InterfaceCheckResult, log *zap.SugaredLogger) {
	if v.Lookup == nil {
		result.ExternalIP = posture.ExternalIPCheckFailed
		result.Findings = append(result.Findings, "External IP check failed: no lookup client configured.")
		return
	}

	url := lookupURL(p)
	addr, err := v.Lookup.Lookup(ctx, url)
	if err != nil {
		log.Errorw("external IP lookup failed", "url", url, "error", err)
		result.ExternalIP = posture.ExternalIPCheckFailed
		result.Findings = append(result.Findings, fmt.Sprintf("External IP check via %s failed: %v", url, err))
		return
	}
	result.ReportedExternalIP = &addr

	switch {
	case len(p.ExpectedExternalIPs) == 0:
		result.ExternalIP = posture.ExternalIPCheckedOK
	case slices.Contains(p.ExpectedExternalIPs, addr):
		result.ExternalIP = posture.ExternalIPExpectedMatch
	default:
		result.ExternalIP = posture.ExternalIPExpectedMismatch
		result.Findings = append(result.Findings,
			fmt.Sprintf("External IP %s does not match any expected external IP [%s].", addr, joinAddrs(p.ExpectedExternalIPs)))
	}
	log.Infow("external IP evaluated", "reported", addr, "status", result.ExternalIP)
}

func lookupURL(p policy.Policy) string {
	if p.ExternalIPCheckURL == "" {
		return policy.DefaultExternalIPCheckURL
	}
	return p.ExternalIPCheckURL
}

func joinPrefixes(prefixes []netip.Prefix) string {
	parts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

func joinAddrs(addrs []netip.Addr) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
