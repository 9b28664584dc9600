package leveldb

import (
	"context"
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndLookupHeaderRoundTrips(t *testing.T) {
	s := openTest(t)

	h := types.BlockHeader{Number: 5, Hash: felt.MustFromHex("0x5"), ParentHash: felt.MustFromHex("0x4")}
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.InsertBlockHeader(h); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()

	got, ok, err := tx2.BlockHeader(5)
	if err != nil || !ok {
		t.Fatalf("expected header 5, ok=%v err=%v", ok, err)
	}
	if !got.Hash.Equal(h.Hash) {
		t.Fatal("hash mismatch")
	}

	number, ok, err := tx2.BlockNumber(h.Hash)
	if err != nil || !ok || number != 5 {
		t.Fatalf("reverse hash lookup failed: number=%d ok=%v err=%v", number, ok, err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := openTest(t)

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.InsertBlockHeader(types.BlockHeader{Number: 1}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	tx2, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()
	exists, err := tx2.BlockExists(1)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected rolled-back header to be absent")
	}
}

func TestStateUpdatePersistsNestedMaps(t *testing.T) {
	s := openTest(t)

	nonce := felt.MustFromHex("0x7")
	update := types.NewStateUpdateData()
	update.ContractUpdates[felt.MustFromHex("0xabc")] = &types.Updates{Nonce: &nonce}

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.InsertStateUpdate(3, update); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()

	got, ok, err := tx2.StateUpdate(3)
	if err != nil || !ok {
		t.Fatalf("expected state update for block 3, ok=%v err=%v", ok, err)
	}
	u, ok := got.ContractUpdates[felt.MustFromHex("0xabc")]
	if !ok || u.Nonce == nil || !u.Nonce.Equal(nonce) {
		t.Fatalf("expected contract update with nonce 0x7, got %+v", u)
	}
}
