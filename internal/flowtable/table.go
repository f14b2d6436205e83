// Package flowtable implements the two sharded flow tables (IPv4, IPv6)
// SPEC_FULL.md §3 describes: each table is partitioned into contiguous
// per-worker row ranges, and — by construction, never by locking — only
// the L7Worker that owns a shard ever reads or writes it (invariants F1
// and F3).
//
// The sharding shape is adapted from the teacher's
// internal/engine/exactaggregator.KeyedAggregator: a slice of shards, each
// holding its own map. The teacher routes by hash-modulo-shardCount and
// guards each shard with its own mutex because any goroutine may touch
// any shard; this package instead routes by integer division
// (flow_hash / rowsPerWorker, matching SPEC_FULL.md's invariant F2) and
// carries no mutex at all, because the pipeline routes every slot that
// needs a flow lookup to the one L7Worker goroutine whose id the slot's
// destination worker names, and only that goroutine updates that
// worker's Shard.
package flowtable

import (
	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
)

// Row is one flow's table entry: its identity and its dissector state.
type Row struct {
	FiveTuple dpimodel.FiveTuple
	State     dissector.FlowState
}

// Shard is the contiguous slice of a Table owned by exactly one L7Worker.
type Shard struct {
	rows     map[string]*Row
	maxFlows int
}

func newShard(maxFlows int) *Shard {
	return &Shard{rows: make(map[string]*Row), maxFlows: maxFlows}
}

// Len reports the number of live flows in this shard.
func (s *Shard) Len() int { return len(s.rows) }

// Find returns the row for ft if present.
func (s *Shard) Find(ft dpimodel.FiveTuple) (*Row, bool) {
	r, ok := s.rows[flowKey(ft)]
	return r, ok
}

// FindOrCreate returns the existing row for ft, or creates one via
// newState if the shard has spare capacity. ok is false only when the
// shard is full and ft is not already present — SPEC_FULL.md §4.5 step 3,
// the max_flows condition.
func (s *Shard) FindOrCreate(ft dpimodel.FiveTuple, newState func() dissector.FlowState) (row *Row, ok bool) {
	key := flowKey(ft)
	if r, found := s.rows[key]; found {
		return r, true
	}
	if s.maxFlows > 0 && len(s.rows) >= s.maxFlows {
		return nil, false
	}
	r := &Row{FiveTuple: ft, State: newState()}
	s.rows[key] = r
	return r, true
}

// Delete removes ft's row, returning it if it was present. The caller
// (an L7Worker) is responsible for invoking the flow-cleanup callback
// with the returned row's state — deletion and cleanup notification are
// kept separate so this package stays independent of any particular
// callback signature.
func (s *Shard) Delete(ft dpimodel.FiveTuple) (*Row, bool) {
	key := flowKey(ft)
	r, ok := s.rows[key]
	if ok {
		delete(s.rows, key)
	}
	return r, ok
}

func flowKey(ft dpimodel.FiveTuple) string {
	b := make([]byte, 0, len(ft.SrcIP)+len(ft.DstIP)+5)
	b = append(b, ft.SrcIP...)
	b = append(b, ft.DstIP...)
	b = append(b, byte(ft.SrcPort>>8), byte(ft.SrcPort))
	b = append(b, byte(ft.DstPort>>8), byte(ft.DstPort))
	b = append(b, byte(ft.Protocol))
	return string(b)
}

// Table is one IP-version's sharded flow table: numWorkers shards, each
// holding up to rowsPerWorker flows.
type Table struct {
	shards        []*Shard
	rowsPerWorker uint32
}

// New builds a Table with numWorkers shards. totalRows must be divisible
// by numWorkers, per SPEC_FULL.md §6's configuration contract
// (v4_rows/v6_rows "must be divisible by W").
func New(numWorkers int, totalRows uint32) *Table {
	if numWorkers <= 0 {
		panic("flowtable: numWorkers must be positive")
	}
	if totalRows == 0 {
		panic("flowtable: totalRows must be positive")
	}
	if totalRows%uint32(numWorkers) != 0 {
		panic("flowtable: totalRows must be divisible by numWorkers")
	}
	rowsPerWorker := totalRows / uint32(numWorkers)
	t := &Table{shards: make([]*Shard, numWorkers), rowsPerWorker: rowsPerWorker}
	for i := range t.shards {
		t.shards[i] = newShard(int(rowsPerWorker))
	}
	return t
}

// RowsPerWorker is the divisor SPEC_FULL.md §4.3 uses to route a flow
// hash to its owning worker: destination_worker = flow_hash / RowsPerWorker().
func (t *Table) RowsPerWorker() uint32 { return t.rowsPerWorker }

// NumWorkers is the number of shards in this table.
func (t *Table) NumWorkers() int { return len(t.shards) }

// Shard returns the shard owned by workerID. Callers must only touch the
// shard belonging to their own worker id (invariant F1/F3).
func (t *Table) Shard(workerID int) *Shard { return t.shards[workerID] }

// WorkerFor computes the owning worker id for a flow hash. This is the
// only mapping from flow-hash to worker id (invariant F2): integer
// division, monotone non-decreasing in flowHash, giving each worker a
// contiguous hash range.
func (t *Table) WorkerFor(flowHash uint32) uint32 {
	return flowHash / t.rowsPerWorker
}
