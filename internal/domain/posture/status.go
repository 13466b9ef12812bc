package posture

// IPNetworkMatchStatus classifies the VPN interface addresses against the expected network.
type IPNetworkMatchStatus string

const (
	IPNetworkNotChecked        IPNetworkMatchStatus = "NOT_CHECKED"
	IPNetworkMatch             IPNetworkMatchStatus = "MATCH"
	IPNetworkMismatch          IPNetworkMatchStatus = "MISMATCH"
	IPNetworkNoIPs             IPNetworkMatchStatus = "NO_IPS"
	IPNetworkInterfaceHasNoIPs IPNetworkMatchStatus = "INTERFACE_HAS_NO_IPS"
)

// ExternalIPStatus is the outcome of the opt-in "echo my IP" lookup.
type ExternalIPStatus string

const (
	ExternalIPDisabled         ExternalIPStatus = "DISABLED"
	ExternalIPCheckFailed      ExternalIPStatus = "CHECK_FAILED"
	ExternalIPCheckedOK        ExternalIPStatus = "CHECKED_OK"
	ExternalIPExpectedMatch    ExternalIPStatus = "EXPECTED_MATCH"
	ExternalIPExpectedMismatch ExternalIPStatus = "EXPECTED_MISMATCH"
)

// DNSMatchStatus compares configured resolvers with the expected set.
type DNSMatchStatus string

const (
	DNSNotChecked     DNSMatchStatus = "NOT_CHECKED"
	DNSReadError      DNSMatchStatus = "READ_ERROR"
	DNSMatch          DNSMatchStatus = "MATCH"
	DNSMismatch       DNSMatchStatus = "MISMATCH"
	DNSNoServersFound DNSMatchStatus = "NO_SERVERS_FOUND"
)
