package gap

import (
	"context"
	"fmt"
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage/memory"
)

func insertHeader(t *testing.T, store *memory.Store, number types.BlockNumber, hash, parent types.BlockHash) {
	t.Helper()
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.InsertBlockHeader(types.BlockHeader{Number: number, Hash: hash, ParentHash: parent}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestFindGapBetweenStoredRanges(t *testing.T) {
	store := memory.New()
	hashes := map[types.BlockNumber]types.BlockHash{}
	for n := types.BlockNumber(0); n <= 10; n++ {
		hashes[n] = felt.MustFromHex(hexFor(n))
	}
	parentOf := func(n types.BlockNumber) types.BlockHash {
		if n == types.Genesis {
			return felt.Zero
		}
		return hashes[n-1]
	}

	// Present: 0,1,2 and 6,7,8,9,10. Missing: 3,4,5.
	for _, n := range []types.BlockNumber{0, 1, 2, 6, 7, 8, 9, 10} {
		insertHeader(t, store, n, hashes[n], parentOf(n))
	}

	g, ok, err := Find(context.Background(), store, 10, hashes[10])
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a gap to be found")
	}
	if g.Head != 5 {
		t.Fatalf("expected gap head 5, got %d", g.Head)
	}
	if g.Tail != 3 {
		t.Fatalf("expected gap tail 3, got %d", g.Tail)
	}
	if !g.TailParentHash.Equal(hashes[2]) {
		t.Fatalf("expected tail parent hash to be block 2's hash")
	}
}

func TestFindNoGapWhenFullyContiguous(t *testing.T) {
	store := memory.New()
	prev := felt.Zero
	for n := types.BlockNumber(0); n <= 5; n++ {
		hash := felt.MustFromHex(hexFor(n + 1))
		insertHeader(t, store, n, hash, prev)
		prev = hash
	}

	_, ok, err := Find(context.Background(), store, 5, prev)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no gap in a fully contiguous chain")
	}
}

func TestFindGapWhenHeadItselfMissing(t *testing.T) {
	store := memory.New()
	prev := felt.Zero
	for n := types.BlockNumber(0); n <= 2; n++ {
		hash := felt.MustFromHex(hexFor(n + 1))
		insertHeader(t, store, n, hash, prev)
		prev = hash
	}

	missingHeadHash := felt.MustFromHex("0x99")
	g, ok, err := Find(context.Background(), store, 9, missingHeadHash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a gap when the search head itself is absent")
	}
	if g.Head != 9 || !g.HeadHash.Equal(missingHeadHash) {
		t.Fatalf("expected gap head to be the absent search head itself, got %+v", g)
	}
	if g.Tail != 3 {
		t.Fatalf("expected gap tail 3, got %d", g.Tail)
	}
}

func hexFor(n types.BlockNumber) string {
	return fmt.Sprintf("0x%x", uint64(n)+1000)
}
