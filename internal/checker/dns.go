package checker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

var nameserverLine = regexp.MustCompile(`^\s*nameserver\s+([^\s#;]+)`)

// DNSVerifier compares the resolver configuration against the expected servers.
type DNSVerifier struct {
	Logger *zap.SugaredLogger
}

// NewDNSVerifier builds a DNS verifier.
func NewDNSVerifier(logger *zap.SugaredLogger) *DNSVerifier {
	return &DNSVerifier{Logger: nopIfNil(logger)}
}

// Category implements Collector.
func (d *DNSVerifier) Category() posture.Category { return posture.CategoryDNS }

// Collect implements Collector.
func (d *DNSVerifier) Collect(ctx context.Context, p policy.Policy) (posture.CategoryResult, error) {
	return d.Verify(ctx, p), nil
}

// Verify never fails: read and parse problems are reported as statuses and findings.
func (d *DNSVerifier) Verify(_ context.Context, p policy.Policy) *posture.DNSCheckResult {
	log := nopIfNil(d.Logger)
	path := p.ResolverPath
	if path == "" {
		path = policy.DefaultResolverPath
	}

	result := &posture.DNSCheckResult{
		Status:       posture.DNSNotChecked,
		ResolverPath: path,
	}
	if len(p.ExpectedDNSServers) == 0 {
		log.Infow("DNS verification skipped: no expected servers configured")
		return result
	}
	result.Expected = canonicalSet(p.ExpectedDNSServers)

	f, err := os.Open(path)
	if err != nil {
		log.Errorw("cannot open resolver file", "path", path, "error", err)
		result.Status = posture.DNSReadError
		result.Findings = append(result.Findings, fmt.Sprintf("Failed to read DNS resolver file %s: %v", path, err))
		return result
	}
	defer f.Close()

	found, findings, err := ParseResolvConf(f, path)
	result.Findings = append(result.Findings, findings...)
	if err != nil {
		log.Errorw("cannot read resolver file", "path", path, "error", err)
		result.Status = posture.DNSReadError
		result.Findings = append(result.Findings, fmt.Sprintf("Failed to read DNS resolver file %s: %v", path, err))
		return result
	}
	result.Found = found

	if len(found) == 0 {
		result.Status = posture.DNSNoServersFound
		result.Findings = append(result.Findings, fmt.Sprintf("No valid nameserver entries found in %s.", path))
		return result
	}

	missing, unexpected := setDifference(result.Expected, found)
	if len(missing) == 0 && len(unexpected) == 0 {
		result.Status = posture.DNSMatch
		log.Infow("DNS servers match expected set", "servers", len(found))
		return result
	}

	result.Status = posture.DNSMismatch
	result.Findings = append(result.Findings,
		fmt.Sprintf("DNS server configuration mismatch. Missing expected servers: [%s] Found unexpected servers: [%s]",
			joinAddrs(missing), joinAddrs(unexpected)))
	log.Warnw("DNS server mismatch", "missing", len(missing), "unexpected", len(unexpected))
	return result
}

// ParseResolvConf extracts nameserver addresses. Invalid addresses are reported per
// line and skipped; the returned set is deduplicated and sorted.
func ParseResolvConf(r io.Reader, path string) ([]netip.Addr, []string, error) {
	var (
		addrs    []netip.Addr
		findings []string
	)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		m := nameserverLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		addr, err := netip.ParseAddr(m[1])
		if err != nil {
			findings = append(findings,
				fmt.Sprintf("Invalid nameserver address %q in %s (line %d).", m[1], path, lineNum))
			continue
		}
		addrs = append(addrs, addr.WithZone("").Unmap())
	}
	if err := scanner.Err(); err != nil {
		return canonicalSet(addrs), findings, err
	}
	return canonicalSet(addrs), findings, nil
}

func canonicalSet(addrs []netip.Addr) []netip.Addr {
	out := slices.Clone(addrs)
	slices.SortFunc(out, func(a, b netip.Addr) int { return a.Compare(b) })
	return slices.Compact(out)
}

// setDifference returns expected-minus-found and found-minus-expected, both sorted.
func setDifference(expected, found []netip.Addr) (missing, unexpected []netip.Addr) {
	for _, e := range expected {
		if !slices.Contains(found, e) {
			missing = append(missing, e)
		}
	}
	for _, f := range found {
		if !slices.Contains(expected, f) {
			unexpected = append(unexpected, f)
		}
	}
	return missing, unexpected
}
