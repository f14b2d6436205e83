// Package dissector defines the two opaque collaborators SPEC_FULL.md
// treats as out of scope for this repository: the stateless L3/L4
// extractor and the per-flow L7 classifier. Their internals (TCP
// reassembly, per-protocol parsers) belong to a different repository;
// this package only fixes the contract the pipeline drives them through,
// plus one reference L3/L4 extractor good enough to run the demo against
// (the pipeline tests use their own fake extractors).
package dissector

import (
	"NetSpectraDPI/internal/dpimodel"
	"time"
)

// L34Extractor turns raw packet bytes into a parsed outcome. Implementations
// must be safe to call from many goroutines concurrently — the pipeline
// runs exactly one L34Worker, but nothing prevents a caller from sharing
// one extractor across a collapsed pipeline and a standalone one.
type L34Extractor interface {
	Extract(payload []byte, arrival time.Time) dpimodel.ParseResult
}

// FlowState is the per-flow dissector state a flow-table row carries. It
// is opaque to the pipeline: created on first packet, threaded through
// every subsequent L7Classifier.Classify call for that flow, and handed
// to the FlowCleanupCallback on teardown.
type FlowState interface{}

// L7Classifier is the stateless-per-call, stateful-per-flow classifier
// that turns one parsed packet plus its flow's dissector state into a
// verdict.
type L7Classifier interface {
	// NewFlowState is invoked exactly once, by the owning L7Worker, when a
	// flow's first packet arrives.
	NewFlowState(ft dpimodel.FiveTuple) FlowState

	// Classify inspects one packet against its flow's state and returns
	// the classification outcome. A StatusTCPConnectionTerminated result
	// tells the caller to delete the flow row after this call.
	Classify(state FlowState, parsed dpimodel.ParseResult) dpimodel.ClassificationResult
}

// FlowCleanupCallback is invoked by an L7Worker with a flow's dissector
// state when its row is deleted, whether by explicit teardown or (outside
// this repository's scope) an aging collaborator.
type FlowCleanupCallback func(ft dpimodel.FiveTuple, state FlowState)

// FlowHasher computes the deterministic flow hash SPEC_FULL.md §4.3 routes
// on. Two hashers are required because the source keeps separate v4/v6
// hash domains (their table sizes differ).
type FlowHasher interface {
	HashV4(ft dpimodel.FiveTuple) uint32
	HashV6(ft dpimodel.FiveTuple) uint32
}
