package dissector

import (
	"NetSpectraDPI/internal/dpimodel"
)

// wellKnownPorts is a tiny, deliberately shallow port-to-protocol table.
// A real L7 classifier (out of this repository's scope per SPEC_FULL.md
// §1) would inspect payload bytes, not just ports; this exists only so
// the pipeline has something concrete to drive in its own tests and demo.
var wellKnownPorts = map[uint16]string{
	80:   "http",
	443:  "tls",
	53:   "dns",
	22:   "ssh",
	5060: "sip",
}

// heuristicFlowState is the per-flow state HeuristicClassifier tracks: how
// many packets have been seen. Teardown (a TCP FIN/RST equivalent, modeled
// here as a synthetic teardown after N packets, since this reference
// classifier never actually parses TCP flags) is derived from that count.
type heuristicFlowState struct {
	packets int
}

// HeuristicClassifier is a reference L7Classifier good enough for tests
// and the demo command: it names a protocol from the flow's well-known
// port (falling back to "unknown"), and reports connection termination
// once it has classified terminationAfter packets for a TCP flow so
// SPEC_FULL.md's flow-teardown path (scenario S4) has something to
// exercise without a real TCP state machine.
type HeuristicClassifier struct {
	TerminationAfter int
}

func (c HeuristicClassifier) NewFlowState(dpimodel.FiveTuple) FlowState {
	return &heuristicFlowState{}
}

func (c HeuristicClassifier) Classify(state FlowState, parsed dpimodel.ParseResult) dpimodel.ClassificationResult {
	fs, _ := state.(*heuristicFlowState)
	if fs != nil {
		fs.packets++
	}

	proto := wellKnownPorts[parsed.FiveTuple.DstPort]
	if proto == "" {
		proto = wellKnownPorts[parsed.FiveTuple.SrcPort]
	}
	if proto == "" {
		proto = "unknown"
	}

	result := dpimodel.ClassificationResult{
		Status:      dpimodel.StatusOK,
		AppProtocol: proto,
		FiveTuple:   parsed.FiveTuple,
	}

	limit := c.TerminationAfter
	if limit <= 0 {
		limit = 0 // disabled
	}
	if fs != nil && parsed.FiveTuple.Protocol == dpimodel.ProtoTCP && limit > 0 && fs.packets >= limit {
		result.Status = dpimodel.StatusTCPConnectionTerminated
	}

	return result
}
