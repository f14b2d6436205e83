package pipeline

import (
	"net"
	"testing"
	"time"

	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/task"
)

type fakeExtractor struct {
	result dpimodel.ParseResult
}

func (f fakeExtractor) Extract(payload []byte, arrival time.Time) dpimodel.ParseResult { return f.result }

type fakeHasher struct{ v4, v6 uint32 }

func (h fakeHasher) HashV4(dpimodel.FiveTuple) uint32 { return h.v4 }
func (h fakeHasher) HashV6(dpimodel.FiveTuple) uint32 { return h.v6 }

func tcpTuple() dpimodel.FiveTuple {
	return dpimodel.FiveTuple{SrcIP: net.ParseIP("1.2.3.4"), DstIP: net.ParseIP("5.6.7.8"), SrcPort: 1111, DstPort: 443, Protocol: dpimodel.ProtoTCP}
}

func TestL34WorkerRoutesOKPacket(t *testing.T) {
	w := NewL34Worker(-1, fakeExtractor{result: dpimodel.ParseResult{Status: dpimodel.StatusOK, IPVersion: dpimodel.IPv4, FiveTuple: tcpTuple()}}, fakeHasher{v4: 205}, 100, 100)

	b := task.New(1)
	b.SetL34In(0, &task.L34InSlot{Packet: &dpimodel.PacketRecord{Payload: []byte{1}}})

	out := w.Step(b)
	slot := out.L34Out(0)
	if slot.Parse.Status != dpimodel.StatusOK {
		t.Fatalf("Status = %v, want StatusOK", slot.Parse.Status)
	}
	if slot.DestinationWorker != 2 {
		t.Fatalf("DestinationWorker = %d, want 2 (205/100)", slot.DestinationWorker)
	}
}

func TestL34WorkerFragmentSkipsRouting(t *testing.T) {
	w := NewL34Worker(-1, fakeExtractor{result: dpimodel.ParseResult{Status: dpimodel.StatusIPFragment, IPVersion: dpimodel.IPv4, FiveTuple: tcpTuple()}}, fakeHasher{v4: 999}, 100, 100)

	b := task.New(1)
	b.SetL34In(0, &task.L34InSlot{Packet: &dpimodel.PacketRecord{Payload: []byte{1}}})

	out := w.Step(b)
	slot := out.L34Out(0)
	if slot.Parse.Status != dpimodel.StatusIPFragment {
		t.Fatalf("Status = %v, want StatusIPFragment", slot.Parse.Status)
	}
	if slot.DestinationWorker != 0 {
		t.Fatalf("fragments should not be routed, got DestinationWorker=%d", slot.DestinationWorker)
	}
}

func TestL34WorkerUnsupportedTransport(t *testing.T) {
	icmp := tcpTuple()
	icmp.Protocol = 1 // ICMP
	w := NewL34Worker(-1, fakeExtractor{result: dpimodel.ParseResult{Status: dpimodel.StatusOK, IPVersion: dpimodel.IPv4, FiveTuple: icmp}}, fakeHasher{}, 100, 100)

	b := task.New(1)
	b.SetL34In(0, &task.L34InSlot{Packet: &dpimodel.PacketRecord{Payload: []byte{1}}})

	out := w.Step(b)
	if got := out.L34Out(0).Parse.Status; got != dpimodel.StatusTransportNotSupported {
		t.Fatalf("Status = %v, want StatusTransportNotSupported", got)
	}
}

func TestL34WorkerCarriesCorrelationDataForward(t *testing.T) {
	w := NewL34Worker(-1, fakeExtractor{result: dpimodel.ParseResult{Status: dpimodel.StatusOK, IPVersion: dpimodel.IPv4, FiveTuple: tcpTuple()}}, fakeHasher{v4: 205}, 100, 100)

	b := task.New(1)
	b.SetL34In(0, &task.L34InSlot{Packet: &dpimodel.PacketRecord{Payload: []byte{1}}, CorrelationData: "caller-handle-42"})

	out := w.Step(b)
	if got := out.L34Out(0).CorrelationData; got != "caller-handle-42" {
		t.Fatalf("CorrelationData = %v, want caller-handle-42", got)
	}
}

func TestL34WorkerDroppedSlotPassesThrough(t *testing.T) {
	w := NewL34Worker(-1, fakeExtractor{}, fakeHasher{}, 100, 100)
	b := task.New(1)
	b.SetL34In(0, &task.L34InSlot{}) // no Packet: shutdown padding

	out := w.Step(b)
	if got := out.L34Out(0).Parse.Status; got != dpimodel.StatusDrop {
		t.Fatalf("Status = %v, want StatusDrop", got)
	}
}
