// Package persist writes a verified batch of headers (and, once they
// arrive from their own streams, transactions/state-diffs/classes/events)
// to storage as a single atomic transaction.
package persist

import (
	"context"
	"fmt"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage"
)

// Stage commits a batch of verified headers to store.
type Stage struct {
	Store storage.Store
}

// NewStage returns a persist Stage writing to store.
func NewStage(store storage.Store) *Stage {
	return &Stage{Store: store}
}

// Headers inserts every header in batch, its signature, and its
// state-diff commitment/length, in one transaction. Class and storage
// commitments are left at their zero value: computing them requires the
// state trie, which this stage does not build.
func (s *Stage) Headers(ctx context.Context, batch []types.SignedBlockHeader) error {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return types.StorageError{Op: "persist.Headers: begin", Err: err}
	}

	for _, sh := range batch {
		if err := tx.InsertBlockHeader(sh.Header); err != nil {
			tx.Rollback()
			return types.StorageError{Op: fmt.Sprintf("persist.Headers: insert header %d", sh.Header.Number), Err: err}
		}
		if err := tx.InsertSignature(sh.Header.Number, sh.Signature); err != nil {
			tx.Rollback()
			return types.StorageError{Op: fmt.Sprintf("persist.Headers: insert signature %d", sh.Header.Number), Err: err}
		}
		if err := tx.UpdateStateDiffCommitmentAndLength(sh.Header.Number, sh.StateDiffCommitment, sh.StateDiffLength); err != nil {
			tx.Rollback()
			return types.StorageError{Op: fmt.Sprintf("persist.Headers: update state diff meta %d", sh.Header.Number), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.StorageError{Op: "persist.Headers: commit", Err: err}
	}
	return nil
}

// Transactions inserts a block's verified transaction+receipt list.
func (s *Stage) Transactions(ctx context.Context, number types.BlockNumber, data types.UnverifiedTransactionData) error {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return types.StorageError{Op: "persist.Transactions: begin", Err: err}
	}
	if err := tx.InsertTransactions(number, data.Transactions); err != nil {
		tx.Rollback()
		return types.StorageError{Op: "persist.Transactions: insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return types.StorageError{Op: "persist.Transactions: commit", Err: err}
	}
	return nil
}

// StateUpdate inserts a block's verified state diff.
func (s *Stage) StateUpdate(ctx context.Context, number types.BlockNumber, data types.UnverifiedStateUpdateData) error {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return types.StorageError{Op: "persist.StateUpdate: begin", Err: err}
	}
	if err := tx.InsertStateUpdate(number, data.StateDiff); err != nil {
		tx.Rollback()
		return types.StorageError{Op: "persist.StateUpdate: insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return types.StorageError{Op: "persist.StateUpdate: commit", Err: err}
	}
	return nil
}

// Classes inserts a block's verified class definitions.
func (s *Stage) Classes(ctx context.Context, number types.BlockNumber, classes []types.ClassDefinition) error {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return types.StorageError{Op: "persist.Classes: begin", Err: err}
	}
	if err := tx.InsertClasses(number, classes); err != nil {
		tx.Rollback()
		return types.StorageError{Op: "persist.Classes: insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return types.StorageError{Op: "persist.Classes: commit", Err: err}
	}
	return nil
}

// Events inserts a block's verified per-transaction event groups.
func (s *Stage) Events(ctx context.Context, number types.BlockNumber, events types.EventsForBlockByTransaction) error {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return types.StorageError{Op: "persist.Events: begin", Err: err}
	}
	if err := tx.InsertEvents(number, events); err != nil {
		tx.Rollback()
		return types.StorageError{Op: "persist.Events: insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return types.StorageError{Op: "persist.Events: commit", Err: err}
	}
	return nil
}
