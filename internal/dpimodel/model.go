// Package dpimodel holds the data types shared by every pipeline stage:
// the raw packet record handed in by a source, the tagged outcome of
// L3/L4 parsing, and the classification result handed to the user
// callback. None of these types know about goroutines, batching, or
// sharding — that belongs to the task and pipeline packages.
package dpimodel

import (
	"net"
	"time"
)

// IPVersion identifies the network-layer version a parsed packet belongs to.
type IPVersion uint8

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

// L4Proto is the transport-layer protocol number (IANA assigned).
type L4Proto uint8

const (
	ProtoTCP L4Proto = 6
	ProtoUDP L4Proto = 17
)

// FiveTuple identifies a transport-layer conversation.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol L4Proto
}

// PacketRecord is the opaque unit a PacketSource hands to the pipeline:
// a payload, its length, an arrival timestamp, and a caller-supplied
// correlation handle carried through unchanged.
type PacketRecord struct {
	Payload         []byte
	ArrivalTime     time.Time
	CorrelationData any
}

// Status is the outcome of a parse or classification step. Non-negative
// values are terminal-but-successful outcomes; negative values are errors
// (unsupported transport, max_flows, and parse errors). Status rides in the batch as data, never as a Go error — see
// SPEC_FULL.md §7.
type Status int8

const (
	// StatusOK: the slot classified normally.
	StatusOK Status = 0
	// StatusIPFragment: a non-terminal IP fragment; no flow lookup performed.
	StatusIPFragment Status = 1
	// StatusIPLastFragment: reassembly completed; payload ownership passes
	// to the pipeline and must be released after the L7 step.
	StatusIPLastFragment Status = 2
	// StatusTCPConnectionTerminated: the L7 classifier observed connection
	// teardown; the owning flow row is deleted.
	StatusTCPConnectionTerminated Status = 3
	// StatusDrop marks a slot padded in at shutdown; it consumes no
	// dissector or flow-table work.
	StatusDrop Status = 4

	// StatusTransportNotSupported: l4 protocol is neither TCP nor UDP.
	StatusTransportNotSupported Status = -1
	// StatusMaxFlows: flow-table row allocation failed for this slot's shard.
	StatusMaxFlows Status = -2
	// StatusParseError is the floor of the negative parse-error range;
	// L34Extractor implementations may return any value <= this one to
	// carry a specific numeric kind (mirrors the source's "numeric kind"
	// error contract).
	StatusParseError Status = -3
)

// IsError reports whether a status is negative: a parse error, an
// unsupported transport, or max_flows.
func (s Status) IsError() bool { return s < StatusOK }

// ParseResult is the outcome of L3/L4 extraction for one packet: either an
// OK result carrying routing and 5-tuple information, or a non-OK status
// together with whatever fields the extractor filled in before stopping
// (for example the IP version and addresses of a fragment).
type ParseResult struct {
	Status      Status
	IPVersion   IPVersion
	FiveTuple   FiveTuple
	FlowHash    uint32
	L7Offset    int
	Packet      *PacketRecord
	Reassembled []byte // set only when Status == StatusIPLastFragment
}

// ClassificationResult is what the L7 classifier produces for one slot,
// and what ultimately reaches the user's ResultCallback.
type ClassificationResult struct {
	Status          Status
	AppProtocol     string
	Fields          map[string]any
	FiveTuple       FiveTuple
	CorrelationData any
}
