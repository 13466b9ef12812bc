package posture

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRoutesByCategory(t *testing.T) {
	var all AllCheckResults

	require.NoError(t, all.Set(&InterfaceCheckResult{Name: "tun0"}))
	require.NoError(t, all.Set(Skipped{Of: CategoryTrafficMonitor}))
	require.NoError(t, all.Set(Failed{Of: CategoryHostAudit, Reason: "boom"}))

	assert.IsType(t, &InterfaceCheckResult{}, all.Get(CategoryInterface))
	assert.Equal(t, Skipped{Of: CategoryTrafficMonitor}, all.Get(CategoryTrafficMonitor))
	assert.Equal(t, CategoryHostAudit, all.Get(CategoryHostAudit).Category())
	assert.Nil(t, all.Get(CategoryDNS))
}

func TestSetRefusesSecondWrite(t *testing.T) {
	var all AllCheckResults
	require.NoError(t, all.Set(&DNSCheckResult{Status: DNSMatch}))
	assert.Error(t, all.Set(&DNSCheckResult{Status: DNSMismatch}))
	assert.Error(t, all.Set(nil))
}

func TestInterfaceIsUp(t *testing.T) {
	up := true
	down := false

	assert.False(t, (&InterfaceCheckResult{Found: false}).IsUp())
	assert.False(t, (&InterfaceCheckResult{Found: true, Up: &down}).IsUp())
	assert.True(t, (&InterfaceCheckResult{Found: true, Up: &up}).IsUp())
}

func TestCollectionErrorsCountsSubChecks(t *testing.T) {
	r := &HostAuditResult{}
	r.Sockets.Errors = []string{"a", "b"}
	r.Systemd.Errors = []string{"c"}
	r.Firewall.Errors = []string{"d"}
	assert.Equal(t, 2, r.CollectionErrors(), "firewall errors are scored separately")
}

func TestLeakEventString(t *testing.T) {
	e := LeakEvent{
		Interface: "eth0",
		Src:       netip.MustParseAddr("192.0.2.10"),
		Dst:       netip.MustParseAddr("198.51.100.7"),
		Protocol:  "TCP",
		SrcPort:   50123,
		DstPort:   443,
		Length:    60,
	}
	assert.Equal(t, "TCP 192.0.2.10:50123 -> 198.51.100.7:443 on eth0 (60 bytes)", e.String())

	e.Protocol, e.SrcPort, e.DstPort = "ICMPv4", 0, 0
	assert.Equal(t, "ICMPv4 192.0.2.10 -> 198.51.100.7 on eth0 (60 bytes)", e.String())
}
