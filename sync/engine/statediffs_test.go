package engine

import (
	"context"
	"testing"
	"time"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// TestStateDiffEngineRoutesSystemVsContractUpdates mirrors the scenario
// where a ContractDiff for the reserved system address lands under
// SystemContractUpdates and one for an ordinary address lands under
// ContractUpdates, preserving its nonce.
func TestStateDiffEngineRoutesSystemVsContractUpdates(t *testing.T) {
	commitment := felt.MustFromHex("0xd1")
	peerA := types.PeerID("peer-a")
	nonce := felt.MustFromHex("0x7")

	responses := make(chan rrclient.Message[rrclient.StateDiffResponse], 4)
	responses <- rrclient.Message[rrclient.StateDiffResponse]{Item: rrclient.StateDiffResponse{
		Kind: rrclient.StateDiffContractDiff,
		ContractDiff: rrclient.ContractDiff{
			Address: types.ContractAddressOne,
			Values: []rrclient.KeyValue{
				{Key: felt.MustFromHex("0x1"), Value: felt.MustFromHex("0x10")},
				{Key: felt.MustFromHex("0x2"), Value: felt.MustFromHex("0x20")},
			},
		},
	}}
	responses <- rrclient.Message[rrclient.StateDiffResponse]{Item: rrclient.StateDiffResponse{
		Kind: rrclient.StateDiffContractDiff,
		ContractDiff: rrclient.ContractDiff{
			Address: felt.MustFromHex("0xabc"),
			Nonce:   &nonce,
		},
	}}
	responses <- rrclient.Message[rrclient.StateDiffResponse]{Fin: true}
	close(responses)

	send := func(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.StateDiffResponse], error) {
		return responses, nil
	}
	i := 0
	counts := func(ctx context.Context) (uint64, types.StateDiffCommitment, error) {
		if i > 0 {
			return 0, felt.Zero, errCountsExhausted
		}
		i++
		return 3, commitment, nil
	}

	e := NewStateDiffEngine(staticPeers(peerA), send, counts, nil)
	out := e.Run(context.Background(), 9, 9)

	select {
	case r := <-out:
		diff := r.Item.StateDiff
		sys, ok := diff.SystemContractUpdates[types.ContractAddressOne]
		if !ok || len(sys.Storage) != 2 {
			t.Fatalf("expected 2 storage writes under system contract updates, got %+v", sys)
		}
		ord, ok := diff.ContractUpdates[felt.MustFromHex("0xabc")]
		if !ok || ord.Nonce == nil || !ord.Nonce.Equal(nonce) {
			t.Fatalf("expected ordinary contract update with nonce 0x7, got %+v", ord)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}
