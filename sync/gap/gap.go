// Package gap finds the nearest missing stretch of stored block headers,
// searching backwards from a given head.
package gap

import (
	"context"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage"
)

// Find returns the first gap in stored headers at or below head,
// searching backwards, or ok=false if no gap exists. headHash is the
// hash expected for head when head is itself absent (e.g. an L1 anchor
// that hasn't synced yet).
func Find(ctx context.Context, store storage.Store, head types.BlockNumber, headHash types.BlockHash) (types.HeaderGap, bool, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return types.HeaderGap{}, false, err
	}
	defer tx.Rollback()

	headExists, err := tx.BlockExists(head)
	if err != nil {
		return types.HeaderGap{}, false, err
	}

	gapHead, gapHeadHash := head, headHash
	if headExists {
		boundary, ok, err := tx.NextAncestorWithoutParent(head)
		if err != nil {
			return types.HeaderGap{}, false, err
		}
		if !ok {
			// Every ancestor down to genesis has its parent stored: no gap.
			return types.HeaderGap{}, false, nil
		}
		boundaryHeader, ok, err := tx.BlockHeader(boundary)
		if err != nil {
			return types.HeaderGap{}, false, err
		}
		if !ok {
			return types.HeaderGap{}, false, &gapHeaderMissingError{block: boundary}
		}
		parent, hasParent := boundary.Parent()
		if !hasParent {
			// NextAncestorWithoutParent never returns genesis: genesis has
			// no parent to be missing, so it can't be a gap boundary.
			return types.HeaderGap{}, false, &genesisGapBoundaryError{}
		}
		gapHead, gapHeadHash = parent, boundaryHeader.ParentHash
	}

	tail, tailHash, ok, err := tx.NextAncestor(gapHead)
	if err != nil {
		return types.HeaderGap{}, false, err
	}
	var tailNumber types.BlockNumber
	var tailParentHash types.BlockHash
	if ok {
		tailNumber = tail + 1
		tailParentHash = tailHash
	} else {
		// A gap is already certain by this point, so an absent tail
		// defaults to genesis.
		tailNumber = types.Genesis
		tailParentHash = types.BlockHash{}
	}

	return types.HeaderGap{
		Head:           gapHead,
		HeadHash:       gapHeadHash,
		Tail:           tailNumber,
		TailParentHash: tailParentHash,
	}, true, nil
}

type gapHeaderMissingError struct{ block types.BlockNumber }

func (e *gapHeaderMissingError) Error() string {
	return "gap: expected header at gap boundary block to exist"
}

type genesisGapBoundaryError struct{}

func (e *genesisGapBoundaryError) Error() string {
	return "gap: next_ancestor_without_parent returned genesis, which is impossible"
}
