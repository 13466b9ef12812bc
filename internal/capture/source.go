package capture

import (
	"fmt"
	"net"
	"net/netip"
	"slices"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/khanhnv2901/netguard/internal/checker"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

const defaultSnapLen = 65535

// PacketSource yields raw frames from one device. *pcap.Handle satisfies it.
type PacketSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// Opener enumerates capture devices and opens filtered sources on them.
type Opener interface {
	Devices() ([]string, error)
	Open(device, filter string) (PacketSource, error)
}

// PcapOpener opens live libpcap handles.
type PcapOpener struct {
	SnapLen int32
	Timeout time.Duration
}

// NewPcapOpener returns an opener with a full snap length and the given read timeout.
func NewPcapOpener(timeout time.Duration) PcapOpener {
	return PcapOpener{SnapLen: defaultSnapLen, Timeout: timeout}
}

// Devices lists the interfaces libpcap can capture on.
func (o PcapOpener) Devices() ([]string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrCaptureUnavailable, err)
	}
	names := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, d.Name)
	}
	return names, nil
}

// Open starts a non-promiscuous capture on device with filter applied.
func (o PcapOpener) Open(device, filter string) (PacketSource, error) {
	snap := o.SnapLen
	if snap <= 0 {
		snap = defaultSnapLen
	}
	handle, err := pcap.OpenLive(device, snap, false, o.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", sharedErrors.ErrCaptureUnavailable, device, err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter on %s: %w", device, err)
		}
	}
	return handle, nil
}

// OSLocalAddrs returns the addresses of every up, non-loopback interface other
// than the VPN interface, sorted.
func OSLocalAddrs(vpnInterface string) ([]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	var out []netip.Addr
	for _, iface := range ifaces {
		if iface.Name == vpnInterface || iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, prefix := range checker.PrefixesFromAddrs(addrs) {
			out = append(out, prefix.Addr())
		}
	}
	slices.SortFunc(out, func(a, b netip.Addr) int { return a.Compare(b) })
	return slices.Compact(out), nil
}
