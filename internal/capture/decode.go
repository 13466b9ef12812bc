package capture

import (
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// DecodeLeak turns a packet that already passed the leak filter into a LeakEvent.
// Non-IP frames are rejected.
func DecodeLeak(data []byte, decoder gopacket.Decoder, iface string, ci gopacket.CaptureInfo) (posture.LeakEvent, bool) {
	pkt := gopacket.NewPacket(data, decoder, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ev := posture.LeakEvent{
		Timestamp: ci.Timestamp,
		Interface: iface,
		Length:    ci.Length,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Length == 0 {
		ev.Length = len(data)
	}

	var fallback string
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		ev.Src, ev.Dst = toAddr(ip.SrcIP), toAddr(ip.DstIP)
		fallback = ip.Protocol.String()
	case *layers.IPv6:
		ev.Src, ev.Dst = toAddr(ip.SrcIP), toAddr(ip.DstIP)
		fallback = ip.NextHeader.String()
	default:
		return ev, false
	}

	switch t := pkt.TransportLayer().(type) {
	case *layers.TCP:
		ev.Protocol = "TCP"
		ev.SrcPort, ev.DstPort = uint16(t.SrcPort), uint16(t.DstPort)
	case *layers.UDP:
		ev.Protocol = "UDP"
		ev.SrcPort, ev.DstPort = uint16(t.SrcPort), uint16(t.DstPort)
	default:
		switch {
		case pkt.Layer(layers.LayerTypeICMPv4) != nil:
			ev.Protocol = "ICMPv4"
		case pkt.Layer(layers.LayerTypeICMPv6) != nil:
			ev.Protocol = "ICMPv6"
		default:
			ev.Protocol = fallback
		}
	}
	return ev, ev.Src.IsValid() && ev.Dst.IsValid()
}

func toAddr(ip net.IP) netip.Addr {
	addr, _ := netip.AddrFromSlice(ip)
	return addr.Unmap()
}
