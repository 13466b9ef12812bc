package capture

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
)

// alwaysAllowed destinations never count as leaks: loopback, link-local,
// multicast and limited broadcast.
var alwaysAllowed = []string{
	"dst net 127.0.0.0/8",
	"dst host ::1",
	"dst net fe80::/10",
	"dst net ff00::/8",
	"dst net 224.0.0.0/4",
	"dst host 255.255.255.255",
}

// BuildFilter returns a BPF expression matching outbound IP traffic from the
// host's physical addresses to anything the policy does not allow.
// Without local addresses the source clause is omitted and the filter is wider.
func BuildFilter(localIPs []netip.Addr, p policy.Policy) string {
	conditions := []string{"(ip or ip6)"}

	if len(localIPs) > 0 {
		src := make([]string, 0, len(localIPs))
		for _, ip := range localIPs {
			src = append(src, "src host "+ip.WithZone("").String())
		}
		conditions = append(conditions, "("+strings.Join(src, " or ")+")")
	}

	exclude := append([]string{}, alwaysAllowed...)
	for _, subnet := range p.LocalSubnets {
		exclude = append(exclude, "dst net "+subnet.Masked().String())
	}
	for _, ip := range p.VPNServerIPs {
		exclude = append(exclude, "dst host "+ip.String())
	}
	for _, ip := range p.AllowedLeakIPs {
		exclude = append(exclude, "dst host "+ip.String())
	}
	for _, port := range p.AllowedLeakPorts {
		exclude = append(exclude, fmt.Sprintf("(tcp dst port %d)", port), fmt.Sprintf("(udp dst port %d)", port))
	}
	conditions = append(conditions, "not ("+strings.Join(exclude, " or ")+")")

	return strings.Join(conditions, " and ")
}
