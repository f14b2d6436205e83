package dissector

import (
	"hash/fnv"
	"strconv"

	"NetSpectraDPI/internal/dpimodel"
)

// FNVFlowHasher is the reference FlowHasher. It follows the same
// generate-a-string-key-then-hash-it approach the teacher's
// exactaggregator.KeyedAggregator uses for its shard routing (fnv.New32a
// over the joined 5-tuple fields), rather than inventing a bespoke
// binary hash — the flow-hash algorithm itself is out of this
// repository's scope per SPEC_FULL.md §1; only its routing property
// (deterministic, and monotone non-decreasing under integer division)
// is required.
type FNVFlowHasher struct{}

func (FNVFlowHasher) HashV4(ft dpimodel.FiveTuple) uint32 { return hashFiveTuple(ft) }
func (FNVFlowHasher) HashV6(ft dpimodel.FiveTuple) uint32 { return hashFiveTuple(ft) }

func hashFiveTuple(ft dpimodel.FiveTuple) uint32 {
	h := fnv.New32a()
	h.Write(ft.SrcIP)
	h.Write(ft.DstIP)
	h.Write([]byte(strconv.Itoa(int(ft.SrcPort))))
	h.Write([]byte(strconv.Itoa(int(ft.DstPort))))
	h.Write([]byte{byte(ft.Protocol)})
	return h.Sum32()
}
