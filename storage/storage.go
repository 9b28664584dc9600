// Package storage defines the collaborator-facing storage contract the
// sync pipeline depends on: block headers, signatures, state-diff
// commitments, transactions, receipts, and events, all mutated inside a
// single transaction per call site.
package storage

import (
	"context"

	"github.com/starksyncd/starksyncd/internal/types"
)

// Store opens transactions against the underlying backend. Concrete
// implementations live in storage/memory (tests) and storage/leveldb
// (production).
type Store interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction is the full storage contract, scoped to one atomic unit of
// work. Every sync-pipeline write happens inside exactly one
// Transaction, committed or rolled back as a whole.
type Transaction interface {
	// BlockExists reports whether a header is stored for number.
	BlockExists(number types.BlockNumber) (bool, error)

	// BlockHeader returns the stored header for number, or ok=false if absent.
	BlockHeader(number types.BlockNumber) (header types.BlockHeader, ok bool, err error)

	// BlockHash returns the stored hash for number, or ok=false if absent.
	BlockHash(number types.BlockNumber) (hash types.BlockHash, ok bool, err error)

	// BlockNumber returns the stored number for hash, or ok=false if absent.
	BlockNumber(hash types.BlockHash) (number types.BlockNumber, ok bool, err error)

	// NextAncestor returns the nearest stored ancestor at or below number,
	// along with its hash, or ok=false if none is stored.
	NextAncestor(number types.BlockNumber) (ancestor types.BlockNumber, hash types.BlockHash, ok bool, err error)

	// NextAncestorWithoutParent returns the nearest ancestor at or below
	// number whose own parent is not stored, or ok=false if every ancestor
	// down to genesis has its parent present.
	NextAncestorWithoutParent(number types.BlockNumber) (ancestor types.BlockNumber, ok bool, err error)

	// InsertBlockHeader stores header, keyed by its Number and Hash.
	InsertBlockHeader(header types.BlockHeader) error

	// InsertSignature stores the sequencer signature for number.
	InsertSignature(number types.BlockNumber, sig types.BlockCommitmentSignature) error

	// UpdateStateDiffCommitmentAndLength stores (or overwrites) the
	// state-diff commitment and declared length for number.
	UpdateStateDiffCommitmentAndLength(number types.BlockNumber, commitment types.StateDiffCommitment, length uint64) error

	// StateUpdate returns the stored state diff for number, or ok=false if absent.
	StateUpdate(number types.BlockNumber) (update *types.StateUpdateData, ok bool, err error)

	// InsertStateUpdate stores the state diff for number.
	InsertStateUpdate(number types.BlockNumber, update *types.StateUpdateData) error

	// StateDiffCommitmentAndLength returns the stored commitment/length pair
	// for number, or ok=false if absent.
	StateDiffCommitmentAndLength(number types.BlockNumber) (commitment types.StateDiffCommitment, length uint64, ok bool, err error)

	// TransactionHashesForBlock returns the ordered transaction hashes of
	// the block at number.
	TransactionHashesForBlock(number types.BlockNumber) ([]types.TransactionHash, error)

	// InsertTransactions stores the full transaction+receipt list for number.
	InsertTransactions(number types.BlockNumber, txs []types.TransactionAndReceipt) error

	// TransactionWithReceipt returns the transaction and receipt stored
	// under hash, or ok=false if absent.
	TransactionWithReceipt(hash types.TransactionHash) (tx types.TransactionVariant, receipt types.Receipt, ok bool, err error)

	// InsertClasses stores the class bodies declared in number.
	InsertClasses(number types.BlockNumber, classes []types.ClassDefinition) error

	// InsertEvents stores the per-transaction event groups for number.
	InsertEvents(number types.BlockNumber, events types.EventsForBlockByTransaction) error

	// BlockIsL1Accepted reports whether number has been confirmed via L1.
	BlockIsL1Accepted(number types.BlockNumber) (bool, error)

	// Commit makes every write in the transaction durable. On error, no
	// write is durable and the caller must treat the whole batch as failed.
	Commit() error

	// Rollback discards every write in the transaction. Safe to call after
	// a successful Commit (a no-op), mirroring database/sql's Tx semantics.
	Rollback() error
}
