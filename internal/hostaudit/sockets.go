package hostaudit

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

const tcpListen = "0A"

var procNetTables = []struct {
	file     string
	protocol string
}{
	{"tcp", "TCP"},
	{"tcp6", "TCP6"},
	{"udp", "UDP"},
	{"udp6", "UDP6"},
}

// checkSockets compares non-loopback listeners with the allow list of their
// own protocol. An empty list skips the comparison for that protocol.
func (a *Auditor) checkSockets(allowedTCP, allowedUDP []uint16) posture.SocketCheck {
	var check posture.SocketCheck

	for _, table := range procNetTables {
		path := filepath.Join(a.procRoot(), "net", table.file)
		sockets, err := parseProcNet(path, table.protocol)
		if err != nil {
			if os.IsNotExist(err) && strings.HasSuffix(table.file, "6") {
				// IPv6 disabled
				continue
			}
			msg := fmt.Sprintf("Failed to read %s: %v", path, err)
			check.Errors = append(check.Errors, msg)
			check.Findings = append(check.Findings, msg)
			continue
		}
		allowed := allowedUDP
		if strings.HasPrefix(table.protocol, "TCP") {
			allowed = allowedTCP
		}
		for _, s := range sockets {
			if s.LocalIP.IsLoopback() {
				continue
			}
			check.Listening = append(check.Listening, s)
			if len(allowed) > 0 && !slices.Contains(allowed, s.LocalPort) {
				check.Unexpected = append(check.Unexpected, s)
				check.Findings = append(check.Findings, fmt.Sprintf("Unexpected listening socket: %s", s))
			}
		}
	}
	a.Logger.Infow("listening sockets audited", "listening", len(check.Listening), "unexpected", len(check.Unexpected))
	return check
}

// parseProcNet reads one /proc/net table. TCP rows count only in LISTEN state;
// every UDP row is a bound socket.
func parseProcNet(path, protocol string) ([]posture.ListeningSocket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	isTCP := strings.HasPrefix(protocol, "TCP")
	var out []posture.ListeningSocket
	scanner := bufio.NewScanner(f)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}
		if isTCP && fields[3] != tcpListen {
			continue
		}
		addr, port, err := parseHexAddrPort(fields[1])
		if err != nil {
			continue
		}
		s := posture.ListeningSocket{Protocol: protocol, LocalIP: addr, LocalPort: port}
		if uid, err := strconv.ParseUint(fields[7], 10, 32); err == nil {
			u := uint32(uid)
			s.UID = &u
		}
		if inode, err := strconv.ParseUint(fields[9], 10, 64); err == nil {
			s.Inode = inode
		}
		out = append(out, s)
	}
	return out, scanner.Err()
}

// parseHexAddrPort decodes "0100007F:0016" style fields. The kernel prints each
// 32-bit word of the address in host (little-endian) order.
func parseHexAddrPort(field string) (netip.Addr, uint16, error) {
	hexIP, hexPort, ok := strings.Cut(field, ":")
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("invalid address field %q", field)
	}
	port, err := strconv.ParseUint(hexPort, 16, 16)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid port %q: %w", hexPort, err)
	}
	raw, err := hex.DecodeString(hexIP)
	if err != nil || (len(raw) != 4 && len(raw) != 16) {
		return netip.Addr{}, 0, fmt.Errorf("invalid address %q", hexIP)
	}
	for i := 0; i < len(raw); i += 4 {
		raw[i], raw[i+1], raw[i+2], raw[i+3] = raw[i+3], raw[i+2], raw[i+1], raw[i]
	}
	addr, _ := netip.AddrFromSlice(raw)
	return addr.Unmap(), uint16(port), nil
}
