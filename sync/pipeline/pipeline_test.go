package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
	"github.com/starksyncd/starksyncd/storage/memory"
	"github.com/starksyncd/starksyncd/sync/engine"
	"github.com/starksyncd/starksyncd/sync/persist"
	"github.com/starksyncd/starksyncd/sync/verify"
)

const testPeer types.PeerID = "peer-1"

// fakeClient serves a single canned header for one block and empty
// streams for every other protocol, closing each with Fin.
type fakeClient struct {
	header types.SignedBlockHeader
}

func finish[T any](ch chan rrclient.Message[T]) {
	ch <- rrclient.Message[T]{Fin: true}
	close(ch)
}

func (c *fakeClient) SendHeaders(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.HeaderResponse], error) {
	ch := make(chan rrclient.Message[rrclient.HeaderResponse], 2)
	ch <- rrclient.Message[rrclient.HeaderResponse]{Item: rrclient.HeaderResponse{Header: c.header}}
	finish(ch)
	return ch, nil
}

func (c *fakeClient) SendTransactions(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.TransactionResponse], error) {
	ch := make(chan rrclient.Message[rrclient.TransactionResponse], 1)
	finish(ch)
	return ch, nil
}

func (c *fakeClient) SendStateDiffs(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.StateDiffResponse], error) {
	ch := make(chan rrclient.Message[rrclient.StateDiffResponse], 1)
	finish(ch)
	return ch, nil
}

func (c *fakeClient) SendClasses(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.ClassResponse], error) {
	ch := make(chan rrclient.Message[rrclient.ClassResponse], 1)
	finish(ch)
	return ch, nil
}

func (c *fakeClient) SendEvents(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[rrclient.EventResponse], error) {
	ch := make(chan rrclient.Message[rrclient.EventResponse], 1)
	finish(ch)
	return ch, nil
}

func onePeer(ctx context.Context) ([]types.PeerID, error) {
	return []types.PeerID{testPeer}, nil
}

// onePeerForAnyCapability ignores the requested capability and always
// resolves to the same single test peer.
func onePeerForAnyCapability(capability string) engine.PeersFunc {
	return onePeer
}

// TestRunGapFillsSingleMissingHeaderAndAllStreams covers the full path:
// a one-block gap is discovered, its header is fetched, checked for
// continuity and hash correctness, persisted, and every zero-count
// auxiliary stream (transactions, events, state diffs, classes)
// completes immediately and is persisted too.
func TestRunGapFillsSingleMissingHeaderAndAllStreams(t *testing.T) {
	store := memory.New()

	header := types.SignedBlockHeader{
		Header: types.BlockHeader{
			Number:                0,
			ParentHash:            types.BlockHash{},
			SequencerAddress:      felt.MustFromHex("0xaa"),
			TransactionCommitment: felt.Zero,
			EventCommitment:       felt.MustFromHex("0x3"),
			StateCommitment:       felt.MustFromHex("0x4"),
			ReceiptCommitment:     felt.MustFromHex("0x5"),
		},
	}
	header.Header.Hash = verify.ComputeBlockHash(header.Header, header.StateDiffCommitment, header.StateDiffLength)

	p := New(store, &fakeClient{header: header}, onePeerForAnyCapability, verify.NewStage(felt.Zero), persist.NewStage(store))

	ctx := context.Background()
	if err := p.RunGap(ctx, 0, header.Header.Hash); err != nil {
		t.Fatalf("RunGap returned error: %v", err)
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	exists, err := tx.BlockExists(0)
	if err != nil || !exists {
		t.Fatalf("expected block 0 to exist after sync, exists=%v err=%v", exists, err)
	}
	stored, ok, err := tx.BlockHeader(0)
	if err != nil || !ok {
		t.Fatalf("expected stored header, ok=%v err=%v", ok, err)
	}
	if !stored.Hash.Equal(header.Header.Hash) {
		t.Fatalf("stored header hash mismatch: got %s want %s", stored.Hash.String(), header.Header.Hash.String())
	}

	update, ok, err := tx.StateUpdate(0)
	if err != nil || !ok {
		t.Fatalf("expected a persisted (empty) state update, ok=%v err=%v", ok, err)
	}
	if len(update.ContractUpdates) != 0 {
		t.Fatalf("expected no contract updates, got %d", len(update.ContractUpdates))
	}
}

// TestRunGapFaultsPeerOnBadTransactionCommitment asserts that a header
// whose declared transaction commitment does not match the (empty)
// transaction stream actually delivered is rejected with a
// BadCommitmentError and reported through OnPeerFault, rather than
// silently persisted.
func TestRunGapFaultsPeerOnBadTransactionCommitment(t *testing.T) {
	store := memory.New()

	header := types.SignedBlockHeader{
		Header: types.BlockHeader{
			Number:                0,
			ParentHash:            types.BlockHash{},
			SequencerAddress:      felt.MustFromHex("0xaa"),
			TransactionCommitment: felt.MustFromHex("0x2"),
			EventCommitment:       felt.MustFromHex("0x3"),
			StateCommitment:       felt.MustFromHex("0x4"),
			ReceiptCommitment:     felt.MustFromHex("0x5"),
		},
	}
	header.Header.Hash = verify.ComputeBlockHash(header.Header, header.StateDiffCommitment, header.StateDiffLength)

	p := New(store, &fakeClient{header: header}, onePeerForAnyCapability, verify.NewStage(felt.Zero), persist.NewStage(store))
	var faulted error
	p.OnPeerFault = func(err error) { faulted = err }

	ctx := context.Background()
	err := p.RunGap(ctx, 0, header.Header.Hash)
	if err == nil {
		t.Fatalf("expected RunGap to fail on a bad transaction commitment")
	}
	var badCommitment *types.BadCommitmentError
	if !errors.As(err, &badCommitment) {
		t.Fatalf("expected a *types.BadCommitmentError, got %T: %v", err, err)
	}
	if faulted == nil {
		t.Fatalf("expected OnPeerFault to be invoked")
	}
}

// TestRunGapNoopWhenNoGap asserts RunGap does nothing when the head
// block is already present and contiguous down to genesis.
func TestRunGapNoopWhenNoGap(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	tx, _ := store.Begin(ctx)
	genesis := types.BlockHeader{Number: 0, Hash: felt.MustFromHex("0x100")}
	if err := tx.InsertBlockHeader(genesis); err != nil {
		t.Fatalf("seed header: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p := New(store, &fakeClient{}, onePeerForAnyCapability, verify.NewStage(felt.Zero), persist.NewStage(store))
	if err := p.RunGap(ctx, 0, genesis.Hash); err != nil {
		t.Fatalf("expected no-op RunGap to succeed, got %v", err)
	}
}
