package persist

import (
	"context"
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage/memory"
)

func TestHeadersCommitsWholeBatchAtomically(t *testing.T) {
	store := memory.New()
	s := NewStage(store)

	batch := []types.SignedBlockHeader{
		{Header: types.BlockHeader{Number: 0, Hash: felt.MustFromHex("0x1")}, StateDiffCommitment: felt.MustFromHex("0xa"), StateDiffLength: 3},
		{Header: types.BlockHeader{Number: 1, Hash: felt.MustFromHex("0x2"), ParentHash: felt.MustFromHex("0x1")}, StateDiffCommitment: felt.MustFromHex("0xb"), StateDiffLength: 5},
	}

	if err := s.Headers(context.Background(), batch); err != nil {
		t.Fatal(err)
	}

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	got, ok, err := tx.BlockHeader(1)
	if err != nil || !ok {
		t.Fatalf("expected block 1 to be persisted, ok=%v err=%v", ok, err)
	}
	if !got.Hash.Equal(batch[1].Header.Hash) {
		t.Fatal("persisted hash mismatch")
	}

	commitment, length, ok, err := tx.StateDiffCommitmentAndLength(1)
	if err != nil || !ok {
		t.Fatalf("expected state diff meta for block 1, ok=%v err=%v", ok, err)
	}
	if !commitment.Equal(batch[1].StateDiffCommitment) || length != 5 {
		t.Fatalf("state diff meta mismatch: commitment=%v length=%d", commitment, length)
	}
}

func TestTransactionsPersistsAndIndexesByHash(t *testing.T) {
	store := memory.New()
	s := NewStage(store)

	data := types.UnverifiedTransactionData{
		ExpectedCommitment: felt.MustFromHex("0xc1"),
		Transactions: []types.TransactionAndReceipt{
			{Transaction: types.TransactionVariant{Kind: "invoke", Raw: []byte("t0")}},
		},
	}

	if err := s.Transactions(context.Background(), 3, data); err != nil {
		t.Fatal(err)
	}

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	hashes, err := tx.TransactionHashesForBlock(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 1 {
		t.Fatalf("expected 1 transaction hash, got %d", len(hashes))
	}
}
