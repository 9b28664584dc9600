// Package txcommit recomputes a block's transaction commitment from its
// already-decoded transaction list, the counterpart to sync/statediff's
// state-diff commitment for the other commitment-bearing stream.
package txcommit

import (
	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/pedersen"
	"github.com/starksyncd/starksyncd/internal/types"
)

// Commitment folds a block's transactions into a single Pedersen
// hash-chain commitment, visited in delivery order. Unlike a state
// diff's content-addressed maps, a block's transaction order is part of
// its committed identity, so no canonical sort is applied here.
func Commitment(txs []types.TransactionAndReceipt) types.TransactionCommitment {
	acc := felt.Zero
	for _, tr := range txs {
		acc = pedersen.HashFelt(acc, types.HashTransaction(tr))
	}
	return acc
}
