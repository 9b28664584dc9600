// Package continuity enforces that a stream of headers forms an
// unbroken chain: block numbers increment (or decrement) by exactly one
// and each header's hash matches the next header's declared parent.
package continuity

import (
	"fmt"

	"github.com/starksyncd/starksyncd/internal/types"
)

// Forward checks a forward-iterating (ascending) header stream.
type Forward struct {
	next       types.BlockNumber
	parentHash types.BlockHash
}

// NewForward returns a Forward continuity checker expecting the next
// header to be numbered next with the given parent hash.
func NewForward(next types.BlockNumber, parentHash types.BlockHash) *Forward {
	return &Forward{next: next, parentHash: parentHash}
}

// Check verifies header continues the chain and advances the expected
// state for the following call.
func (f *Forward) Check(header types.SignedBlockHeader) error {
	h := header.Header
	if h.Number != f.next || !h.ParentHash.Equal(f.parentHash) {
		return types.DiscontinuityError{Reason: fmt.Sprintf(
			"forward: expected block %d with parent hash %s", f.next, f.parentHash)}
	}
	f.next++
	f.parentHash = h.Hash
	return nil
}

// Backward checks a backward-iterating (descending) header stream.
// number is nil once genesis has been consumed; any further header then
// fails continuity.
type Backward struct {
	number *types.BlockNumber
	hash   types.BlockHash
}

// NewBackward returns a Backward continuity checker expecting the next
// header to be numbered number with the given hash.
func NewBackward(number types.BlockNumber, hash types.BlockHash) *Backward {
	n := number
	return &Backward{number: &n, hash: hash}
}

// Check verifies header continues the chain and advances the expected
// state for the following call.
func (b *Backward) Check(header types.SignedBlockHeader) error {
	if b.number == nil {
		return types.DiscontinuityError{Reason: "backward: genesis already consumed"}
	}
	h := header.Header
	if h.Number != *b.number || !h.Hash.Equal(b.hash) {
		return types.DiscontinuityError{Reason: fmt.Sprintf(
			"backward: expected block %d with hash %s", *b.number, b.hash)}
	}
	if parent, ok := b.number.Parent(); ok {
		b.number = &parent
	} else {
		b.number = nil
	}
	b.hash = h.ParentHash
	return nil
}
