package checker

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

func writeResolvConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolv.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write resolv.conf: %v", err)
	}
	return path
}

func addrs(values ...string) []netip.Addr {
	out := make([]netip.Addr, 0, len(values))
	for _, v := range values {
		out = append(out, netip.MustParseAddr(v))
	}
	return out
}

func TestDNSVerifier_NotCheckedWithoutExpectation(t *testing.T) {
	testCases := []struct {
		name     string
		expected []netip.Addr
	}{
		{"nil list", nil},
		{"empty list", []netip.Addr{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := testPolicy()
			p.ExpectedDNSServers = tc.expected
			p.ResolverPath = writeResolvConf(t, "nameserver 1.1.1.1\n")

			result := NewDNSVerifier(nil).Verify(context.Background(), p)

			if result.Status != posture.DNSNotChecked {
				t.Errorf("Expected NOT_CHECKED, got %s", result.Status)
			}
			if len(result.Findings) != 0 {
				t.Errorf("Expected no findings, got %v", result.Findings)
			}
		})
	}
}

func TestDNSVerifier_MissingFile(t *testing.T) {
	p := testPolicy()
	p.ResolverPath = filepath.Join(t.TempDir(), "resolv.conf")

	result := NewDNSVerifier(nil).Verify(context.Background(), p)

	if result.Status != posture.DNSReadError {
		t.Errorf("Expected READ_ERROR, got %s", result.Status)
	}
	if len(result.Findings) != 1 {
		t.Errorf("Expected one finding, got %v", result.Findings)
	}
}

func TestDNSVerifier_MissingIPv6Servers(t *testing.T) {
	p := testPolicy()
	p.ResolverPath = writeResolvConf(t, "nameserver 9.9.9.9\nnameserver 149.112.112.112\n")

	result := NewDNSVerifier(nil).Verify(context.Background(), p)

	if result.Status != posture.DNSMismatch {
		t.Fatalf("Expected MISMATCH, got %s", result.Status)
	}
	want := "DNS server configuration mismatch. Missing expected servers: [2620:fe::9, 2620:fe::fe] Found unexpected servers: []"
	if len(result.Findings) != 1 || result.Findings[0] != want {
		t.Errorf("Expected %q, got %v", want, result.Findings)
	}
}

func TestDNSVerifier_SetEquality(t *testing.T) {
	testCases := []struct {
		name       string
		expected   []netip.Addr
		content    string
		wantStatus posture.DNSMatchStatus
		missing    string
		unexpected string
	}{
		{
			name:       "same set different order with duplicates",
			expected:   addrs("1.1.1.1", "9.9.9.9"),
			content:    "nameserver 9.9.9.9\nnameserver 1.1.1.1\nnameserver 9.9.9.9\n",
			wantStatus: posture.DNSMatch,
		},
		{
			name:       "unexpected server",
			expected:   addrs("9.9.9.9"),
			content:    "nameserver 9.9.9.9\nnameserver 192.168.1.1\nnameserver 8.8.8.8\n",
			wantStatus: posture.DNSMismatch,
			missing:    "[]",
			unexpected: "[8.8.8.8, 192.168.1.1]",
		},
		{
			name:       "missing and unexpected",
			expected:   addrs("9.9.9.9", "149.112.112.112"),
			content:    "nameserver 8.8.8.8\nnameserver 9.9.9.9\n",
			wantStatus: posture.DNSMismatch,
			missing:    "[149.112.112.112]",
			unexpected: "[8.8.8.8]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := testPolicy()
			p.ExpectedDNSServers = tc.expected
			p.ResolverPath = writeResolvConf(t, tc.content)

			result := NewDNSVerifier(nil).Verify(context.Background(), p)

			if result.Status != tc.wantStatus {
				t.Fatalf("Expected %s, got %s", tc.wantStatus, result.Status)
			}
			if tc.wantStatus == posture.DNSMatch {
				if len(result.Findings) != 0 {
					t.Errorf("Expected no findings, got %v", result.Findings)
				}
				return
			}
			finding := result.Findings[len(result.Findings)-1]
			if !strings.Contains(finding, "Missing expected servers: "+tc.missing) {
				t.Errorf("Expected missing %s in %q", tc.missing, finding)
			}
			if !strings.Contains(finding, "Found unexpected servers: "+tc.unexpected) {
				t.Errorf("Expected unexpected %s in %q", tc.unexpected, finding)
			}
		})
	}
}

func TestDNSVerifier_NoServers(t *testing.T) {
	p := testPolicy()
	p.ResolverPath = writeResolvConf(t, "# generated\nsearch example.com\noptions edns0\n")

	result := NewDNSVerifier(nil).Verify(context.Background(), p)

	if result.Status != posture.DNSNoServersFound {
		t.Errorf("Expected NO_SERVERS_FOUND, got %s", result.Status)
	}
}

func TestParseResolvConf(t *testing.T) {
	content := strings.Join([]string{
		"# comment nameserver 1.2.3.4",
		"; also a comment",
		"",
		"  nameserver\t9.9.9.9   # quad9",
		"nameserver 2620:fe::fe",
		"nameserver fe80::1%eth0",
		"nameserver not-an-ip",
		"nameserver 9.9.9.9",
		"search lan",
	}, "\n")

	got, findings, err := ParseResolvConf(strings.NewReader(content), "/etc/resolv.conf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := addrs("9.9.9.9", "2620:fe::fe", "fe80::1")
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}

	if len(findings) != 1 || !strings.Contains(findings[0], `"not-an-ip"`) || !strings.Contains(findings[0], "line 7") {
		t.Errorf("Expected a single per-line finding, got %v", findings)
	}
}
