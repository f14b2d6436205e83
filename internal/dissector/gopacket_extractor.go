package dissector

import (
	"time"

	"NetSpectraDPI/internal/dpimodel"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// GopacketExtractor is a reference L34Extractor built on
// github.com/google/gopacket, adapted from the teacher's
// internal/engine/protocol.ParsePacket. Unlike the teacher's version it
// also handles IPv6 (SPEC_FULL.md requires both flow-table shards to be
// reachable) and returns the spec's tagged Status instead of a Go error;
// it never assembles IP fragments itself — it reports
// dpimodel.StatusIPFragment for a non-final fragment, exactly as
// SPEC_FULL.md §4.3 step 5 requires, and leaves reassembly to whatever
// production dissector eventually replaces this reference one.
type GopacketExtractor struct {
	// DecodeOptions controls gopacket's decode strictness. The zero value
	// (gopacket.Default) is used when unset.
	DecodeOptions gopacket.DecodeOptions
}

func (g GopacketExtractor) Extract(payload []byte, arrival time.Time) dpimodel.ParseResult {
	opts := g.DecodeOptions
	packet := gopacket.NewPacket(payload, layers.LayerTypeEthernet, opts)

	var ft dpimodel.FiveTuple
	var ipVersion dpimodel.IPVersion
	var l7Offset int
	var fragment bool
	var lastFragment bool

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip4 := l.(*layers.IPv4)
		ft.SrcIP = ip4.SrcIP
		ft.DstIP = ip4.DstIP
		ft.Protocol = dpimodel.L4Proto(ip4.Protocol)
		ipVersion = dpimodel.IPv4
		l7Offset = len(payload) - len(ip4.LayerPayload())

		moreFragments := ip4.Flags&layers.IPv4MoreFragments != 0
		fragOffset := ip4.FragOffset != 0
		if moreFragments || fragOffset {
			fragment = true
			lastFragment = !moreFragments
		}
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip6 := l.(*layers.IPv6)
		ft.SrcIP = ip6.SrcIP
		ft.DstIP = ip6.DstIP
		ft.Protocol = dpimodel.L4Proto(ip6.NextHeader)
		ipVersion = dpimodel.IPv6
		l7Offset = len(payload) - len(ip6.LayerPayload())

		if l := packet.Layer(layers.LayerTypeIPv6Fragment); l != nil {
			frag := l.(*layers.IPv6Fragment)
			fragment = true
			lastFragment = !frag.MoreFragments
		}
	} else {
		return dpimodel.ParseResult{Status: dpimodel.StatusParseError}
	}

	if fragment && !lastFragment {
		return dpimodel.ParseResult{Status: dpimodel.StatusIPFragment, IPVersion: ipVersion, FiveTuple: ft}
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		ft.SrcPort = uint16(tcp.SrcPort)
		ft.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		ft.SrcPort = uint16(udp.SrcPort)
		ft.DstPort = uint16(udp.DstPort)
	} else {
		return dpimodel.ParseResult{Status: dpimodel.StatusTransportNotSupported, IPVersion: ipVersion, FiveTuple: ft}
	}

	status := dpimodel.StatusOK
	var reassembled []byte
	if lastFragment {
		status = dpimodel.StatusIPLastFragment
		reassembled = append([]byte(nil), payload...)
	}

	return dpimodel.ParseResult{
		Status:      status,
		IPVersion:   ipVersion,
		FiveTuple:   ft,
		L7Offset:    l7Offset,
		Reassembled: reassembled,
	}
}
