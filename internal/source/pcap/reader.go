// Package pcap is a reference pipeline.PacketSource built on
// github.com/google/gopacket/pcap, adapted from the teacher's
// pkg/pcap.Reader. The teacher's reader is push-based — it parses every
// packet itself and shoves the result onto a channel until the file is
// exhausted. SPEC_FULL.md's PacketSource contract is pull-based instead
// (the L34Emitter calls ReadPacket once per slot it needs to fill), and
// parsing belongs to the L34Worker, not the source, so this reader's job
// shrinks to handing back raw bytes and a timestamp.
package pcap

import (
	"context"
	"io"

	"NetSpectraDPI/internal/dpimodel"

	"github.com/google/gopacket/pcap"
)

// Reader reads packets one at a time from an offline pcap file or a live
// capture handle.
type Reader struct {
	handle *pcap.Handle
}

// OpenOffline opens a pcap file for reading.
func OpenOffline(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// OpenLive opens a live capture on iface, mirroring the teacher's cmd/
// capture setup (snaplen and promiscuous mode are passed to
// pcap.OpenLive). The timeout argument is not used: the handle always
// opens with pcap.BlockForever, so a read waits until a packet arrives.
func OpenLive(iface string, snapLen int32, promiscuous bool, timeout int64) (*Reader, error) {
	handle, err := pcap.OpenLive(iface, snapLen, promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close releases the underlying pcap handle.
func (r *Reader) Close() { r.handle.Close() }

// ReadPacket implements pipeline.PacketSource: one ReadPacketData call
// per invocation. An exhausted offline file surfaces as io.EOF, exactly
// as the L34Emitter's Step expects.
func (r *Reader) ReadPacket(ctx context.Context) (*dpimodel.PacketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ci, err := r.handle.ReadPacketData()
	if err != nil {
		if err == io.EOF || err == pcap.NextErrorNoMorePackets {
			return nil, io.EOF
		}
		return nil, err
	}
	return &dpimodel.PacketRecord{Payload: data, ArrivalTime: ci.Timestamp}, nil
}
