// Package frame parses captured link-layer bytes into the Ethernet/IP/TCP
// header fields the rest of the pipeline needs, using gopacket's
// zero-copy, lazy decoding (component B, spec.md §4.B).
package frame

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// View is one parsed packet: addressing, TCP flags, and a reference to its
// application payload. Immutable after construction and valid only for the
// lifetime of the capture buffer it points into — callers that retain a
// View past the next capture read must copy Payload.
type View struct {
	SrcMAC, DstMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	SrcPort        uint16
	DstPort        uint16
	SYN, ACK, FIN, RST, PSH bool
	Payload        []byte
}

// Decode parses a raw captured frame. It returns ok=false for anything
// that is not an Ethernet/IPv4-or-IPv6/TCP frame — spec.md §4.B treats
// every such case as a silent Skip, not an error.
func Decode(raw []byte) (v View, ok bool) {
	packet := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return View{}, false
	}
	eth, _ := ethLayer.(*layers.Ethernet)

	var srcIP, dstIP net.IP
	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip4, _ := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if ip4.Protocol != layers.IPProtocolTCP {
			return View{}, false
		}
		srcIP, dstIP = ip4.SrcIP, ip4.DstIP
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip6, _ := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if ip6.NextHeader != layers.IPProtocolTCP {
			return View{}, false
		}
		srcIP, dstIP = ip6.SrcIP, ip6.DstIP
	default:
		return View{}, false
	}

	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return View{}, false
	}
	tcp, _ := tcpLayer.(*layers.TCP)

	return View{
		SrcMAC:  eth.SrcMAC,
		DstMAC:  eth.DstMAC,
		SrcIP:   srcIP,
		DstIP:   dstIP,
		SrcPort: uint16(tcp.SrcPort),
		DstPort: uint16(tcp.DstPort),
		SYN:     tcp.SYN,
		ACK:     tcp.ACK,
		FIN:     tcp.FIN,
		RST:     tcp.RST,
		PSH:     tcp.PSH,
		Payload: tcp.Payload,
	}, true
}
