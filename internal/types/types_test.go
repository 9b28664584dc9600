package types

import (
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
)

func TestBlockNumberParentSaturatesAtGenesis(t *testing.T) {
	if _, ok := Genesis.Parent(); ok {
		t.Fatal("genesis should have no parent")
	}
	p, ok := BlockNumber(5).Parent()
	if !ok || p != 4 {
		t.Fatalf("got (%d, %v), want (4, true)", p, ok)
	}
}

func TestErrorStackStringOrdersFramesInnermostLast(t *testing.T) {
	stack := ErrorStack{
		CallFrame{StorageAddress: felt.MustFromHex("0x1"), ClassHash: felt.MustFromHex("0x2")},
		StringFrame{Reason: "execution reverted"},
	}
	got := stack.String()
	want := "call(0x2) -> execution reverted"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPeerFaultInterfaceCoversPeerAttributableErrors(t *testing.T) {
	var errs []PeerFault = []PeerFault{
		&TransportFailedError{Peer: "p1"},
		&PrematureFinError{Peer: "p1"},
		&OverCountError{Peer: "p1"},
		&BadCommitmentError{Peer: "p1"},
		&IncorrectStateDiffCountError{Peer: "p1"},
		&ClassDefinitionError{Peer: "p1"},
	}
	for _, e := range errs {
		if e.FaultyPeer() != "p1" {
			t.Fatalf("FaultyPeer mismatch for %T", e)
		}
	}
}
