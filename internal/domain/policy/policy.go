// Package policy describes the expected network posture a host is verified against.
package policy

import (
	"fmt"
	"net/netip"
	"net/url"
	"time"

	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

const (
	DefaultVPNInterface       = "tun0"
	DefaultResolverPath       = "/etc/resolv.conf"
	DefaultHostsPath          = "/etc/hosts"
	DefaultExternalIPCheckURL = "https://ifconfig.me/ip"
)

// Policy is the process-wide verification configuration. It is built once and
// treated as read-only afterwards; verifiers never mutate it.
//
// A nil or empty slice for any "expected" or allow-list field means the
// comparison is skipped. It never means "expect nothing".
type Policy struct {
	VPNInterface       string
	ExpectedVPNNetwork *netip.Prefix
	ExpectedDNSServers []netip.Addr
	ResolverPath       string

	CheckExternalIP     bool
	ExternalIPCheckURL  string
	ExpectedExternalIPs []netip.Addr

	// Traffic monitor
	PhysicalInterfaces []string
	LocalSubnets       []netip.Prefix
	VPNServerIPs       []netip.Addr
	AllowedLeakIPs     []netip.Addr
	AllowedLeakPorts   []uint16 // excluded for both tcp and udp
	MonitorDuration    time.Duration

	// Host audit
	AllowedListeningTCPPorts   []uint16
	AllowedListeningUDPPorts   []uint16
	DisallowedProcesses        []string
	AllowedLoginUsers          []string
	AllowedLoginHosts          []string
	WatchedFiles               []string
	RequiredKernelModules      []string
	DisallowedKernelModules    []string
	EnforceRequiredModulesOnly bool
	DisallowedServices         []string
	DisallowedTimers           []string
	CheckFirewall              bool

	// Opsec
	HostsPath              string
	DisallowedEnvVars      []string
	DisallowedHostsEntries []string
}

// Default returns the built-in policy: a Quad9-pinned resolver set behind tun0.
func Default() Policy {
	return Policy{
		VPNInterface: DefaultVPNInterface,
		ExpectedDNSServers: mustAddrs(
			"9.9.9.9",
			"149.112.112.112",
			"2620:fe::fe",
			"2620:fe::9",
		),
		ResolverPath:       DefaultResolverPath,
		ExternalIPCheckURL: DefaultExternalIPCheckURL,
		LocalSubnets: mustPrefixes(
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"fe80::/10",
			"fc00::/7",
		),
		AllowedListeningTCPPorts: []uint16{22},
		AllowedListeningUDPPorts: []uint16{68},
		DisallowedProcesses:      []string{"nc", "netcat", "ncat", "socat", "mimikatz", "meterpreter"},
		WatchedFiles:             []string{"/etc/passwd", "/etc/shadow", "/etc/group", "/etc/gshadow", "/etc/sudoers", "/etc/hosts", "/etc/resolv.conf"},
		DisallowedKernelModules:  []string{"dummy", "floppy"},
		CheckFirewall:            true,
		HostsPath:                DefaultHostsPath,
		DisallowedEnvVars:        []string{"LD_PRELOAD", "LD_LIBRARY_PATH"},
	}
}

// MonitoringEnabled reports whether traffic capture should run.
func (p Policy) MonitoringEnabled() bool {
	return len(p.PhysicalInterfaces) > 0
}

// Validate rejects policies that cannot be evaluated consistently.
func (p Policy) Validate() error {
	if p.VPNInterface == "" {
		return fmt.Errorf("%w: %w", sharedErrors.ErrInvalidPolicy, sharedErrors.ErrEmptyInterfaceName)
	}
	if p.EnforceRequiredModulesOnly && len(p.RequiredKernelModules) == 0 {
		return fmt.Errorf("%w: %w", sharedErrors.ErrInvalidPolicy, sharedErrors.ErrRequiredModulesUnset)
	}
	for _, group := range [][]uint16{p.AllowedLeakPorts, p.AllowedListeningTCPPorts, p.AllowedListeningUDPPorts} {
		for _, port := range group {
			if port == 0 {
				return fmt.Errorf("%w: %w", sharedErrors.ErrInvalidPolicy, sharedErrors.ErrInvalidPort)
			}
		}
	}
	if p.CheckExternalIP && p.ExternalIPCheckURL != "" {
		u, err := url.Parse(p.ExternalIPCheckURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %w: %q", sharedErrors.ErrInvalidPolicy, sharedErrors.ErrInvalidLookupURL, p.ExternalIPCheckURL)
		}
	}
	if p.MonitorDuration < 0 {
		return fmt.Errorf("%w: monitor duration cannot be negative", sharedErrors.ErrInvalidPolicy)
	}
	return nil
}

// ParseAddrs parses textual IP addresses, reporting the first invalid entry.
func ParseAddrs(values []string) ([]netip.Addr, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]netip.Addr, 0, len(values))
	for _, v := range values {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid IP address %q: %w", v, err)
		}
		out = append(out, addr.Unmap())
	}
	return out, nil
}

// ParsePrefixes parses CIDR strings, masking host bits.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		prefix, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", v, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// ParsePorts converts integers into ports, rejecting anything outside 1..65535.
func ParsePorts(values []int) ([]uint16, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]uint16, 0, len(values))
	for _, v := range values {
		if v < 1 || v > 65535 {
			return nil, fmt.Errorf("%w: %d", sharedErrors.ErrInvalidPort, v)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func mustAddrs(values ...string) []netip.Addr {
	addrs, err := ParseAddrs(values)
	if err != nil {
		panic(err)
	}
	return addrs
}

func mustPrefixes(values ...string) []netip.Prefix {
	prefixes, err := ParsePrefixes(values)
	if err != nil {
		panic(err)
	}
	return prefixes
}
