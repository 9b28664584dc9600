package memory

import (
	"context"
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
)

func header(n types.BlockNumber) types.BlockHeader {
	return types.BlockHeader{Number: n, Hash: hashOf(n)}
}

func hashOf(n types.BlockNumber) types.BlockHash {
	var buf [32]byte
	buf[31] = byte(n + 1)
	return felt.MustFromBytesBE(buf)
}

func TestInsertAndLookupHeader(t *testing.T) {
	s := New()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h := header(5)
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
		t.Fatalf("expected header 5 to exist, ok=%v err=%v", ok, err)
	}
	if got.Number != 5 {
		t.Fatalf("expected number 5, got %d", got.Number)
	}

	number, ok, err := tx2.BlockNumber(h.Hash)
	if err != nil || !ok || number != 5 {
		t.Fatalf("expected reverse hash lookup to find block 5, got %d ok=%v err=%v", number, ok, err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.InsertBlockHeader(header(1)); err != nil {
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

func TestNextAncestorWithoutParentFindsGapBoundary(t *testing.T) {
	s := New()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Blocks 0,1,2 present, 3,4 missing, 5,6 present: block 5 has no
	// stored parent (block 4 missing), so it is the gap boundary.
	for _, n := range []types.BlockNumber{0, 1, 2, 5, 6} {
		if err := tx.InsertBlockHeader(header(n)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := s.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()

	ancestor, ok, err := tx2.NextAncestorWithoutParent(6)
	if err != nil || !ok {
		t.Fatalf("expected a gap boundary, ok=%v err=%v", ok, err)
	}
	if ancestor != 5 {
		t.Fatalf("expected gap boundary at block 5, got %d", ancestor)
	}
}
