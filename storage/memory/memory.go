// Package memory implements storage.Store entirely in process memory,
// for use in tests and local experimentation. It is a deliberately
// simple reference implementation; storage/leveldb is the durable one.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage"
)

type blockData struct {
	header             types.BlockHeader
	hasHeader          bool
	signature          types.BlockCommitmentSignature
	hasSignature       bool
	stateDiffCommitment types.StateDiffCommitment
	stateDiffLength    uint64
	hasStateDiffMeta   bool
	stateUpdate        *types.StateUpdateData
	transactions       []types.TransactionAndReceipt
	classes            []types.ClassDefinition
	events             types.EventsForBlockByTransaction
	hasEvents          bool
	l1Accepted         bool
}

// Store is an in-memory Store. The zero value is not usable; use New.
type Store struct {
	mu          sync.Mutex
	byNumber    map[types.BlockNumber]*blockData
	numberByHash map[types.BlockHash]types.BlockNumber
	txByHash    map[types.TransactionHash]types.TransactionAndReceipt
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		byNumber:     make(map[types.BlockNumber]*blockData),
		numberByHash: make(map[types.BlockHash]types.BlockNumber),
		txByHash:     make(map[types.TransactionHash]types.TransactionAndReceipt),
	}
}

// Begin locks the store for the lifetime of the returned transaction,
// mirroring a single-writer embedded database; the lock releases on
// Commit or Rollback. Only one transaction may be open at a time.
func (s *Store) Begin(ctx context.Context) (storage.Transaction, error) {
	s.mu.Lock()
	return &txn{store: s}, nil
}

type undoFunc func()

type txn struct {
	store *Store
	undo  []undoFunc
	done  bool
}

func (t *txn) get(number types.BlockNumber) *blockData {
	bd, ok := t.store.byNumber[number]
	if !ok {
		bd = &blockData{}
		t.store.byNumber[number] = bd
		t.undo = append(t.undo, func() { delete(t.store.byNumber, number) })
	}
	return bd
}

func (t *txn) BlockExists(number types.BlockNumber) (bool, error) {
	bd, ok := t.store.byNumber[number]
	return ok && bd.hasHeader, nil
}

func (t *txn) BlockHeader(number types.BlockNumber) (types.BlockHeader, bool, error) {
	bd, ok := t.store.byNumber[number]
	if !ok || !bd.hasHeader {
		return types.BlockHeader{}, false, nil
	}
	return bd.header, true, nil
}

func (t *txn) BlockHash(number types.BlockNumber) (types.BlockHash, bool, error) {
	h, ok, err := t.BlockHeader(number)
	if err != nil || !ok {
		return types.BlockHash{}, false, err
	}
	return h.Hash, true, nil
}

func (t *txn) BlockNumber(hash types.BlockHash) (types.BlockNumber, bool, error) {
	n, ok := t.store.numberByHash[hash]
	return n, ok, nil
}

// NextAncestor finds the nearest stored header at or below number.
func (t *txn) NextAncestor(number types.BlockNumber) (types.BlockNumber, types.BlockHash, bool, error) {
	for n := number; ; {
		if bd, ok := t.store.byNumber[n]; ok && bd.hasHeader {
			return n, bd.header.Hash, true, nil
		}
		if n == types.Genesis {
			return 0, types.BlockHash{}, false, nil
		}
		n--
	}
}

// NextAncestorWithoutParent finds the nearest header at or below number
// whose parent is absent. Genesis has no parent to be missing, so it can
// never be returned as a boundary: a lone stored genesis header is
// contiguous, not a gap.
func (t *txn) NextAncestorWithoutParent(number types.BlockNumber) (types.BlockNumber, bool, error) {
	for n := number; ; {
		bd, ok := t.store.byNumber[n]
		if ok && bd.hasHeader {
			if parent, hasParent := n.Parent(); hasParent {
				if pbd, ok := t.store.byNumber[parent]; !ok || !pbd.hasHeader {
					return n, true, nil
				}
			}
		}
		if n == types.Genesis {
			return 0, false, nil
		}
		n--
	}
}

func (t *txn) InsertBlockHeader(header types.BlockHeader) error {
	bd := t.get(header.Number)
	prevHeader, prevHas := bd.header, bd.hasHeader
	bd.header = header
	bd.hasHeader = true
	t.store.numberByHash[header.Hash] = header.Number
	t.undo = append(t.undo, func() {
		bd.header, bd.hasHeader = prevHeader, prevHas
		delete(t.store.numberByHash, header.Hash)
	})
	return nil
}

func (t *txn) InsertSignature(number types.BlockNumber, sig types.BlockCommitmentSignature) error {
	bd := t.get(number)
	prev, prevHas := bd.signature, bd.hasSignature
	bd.signature, bd.hasSignature = sig, true
	t.undo = append(t.undo, func() { bd.signature, bd.hasSignature = prev, prevHas })
	return nil
}

func (t *txn) UpdateStateDiffCommitmentAndLength(number types.BlockNumber, commitment types.StateDiffCommitment, length uint64) error {
	bd := t.get(number)
	prevC, prevL, prevHas := bd.stateDiffCommitment, bd.stateDiffLength, bd.hasStateDiffMeta
	bd.stateDiffCommitment, bd.stateDiffLength, bd.hasStateDiffMeta = commitment, length, true
	t.undo = append(t.undo, func() {
		bd.stateDiffCommitment, bd.stateDiffLength, bd.hasStateDiffMeta = prevC, prevL, prevHas
	})
	return nil
}

func (t *txn) StateUpdate(number types.BlockNumber) (*types.StateUpdateData, bool, error) {
	bd, ok := t.store.byNumber[number]
	if !ok || bd.stateUpdate == nil {
		return nil, false, nil
	}
	return bd.stateUpdate, true, nil
}

func (t *txn) InsertStateUpdate(number types.BlockNumber, update *types.StateUpdateData) error {
	bd := t.get(number)
	prev := bd.stateUpdate
	bd.stateUpdate = update
	t.undo = append(t.undo, func() { bd.stateUpdate = prev })
	return nil
}

func (t *txn) StateDiffCommitmentAndLength(number types.BlockNumber) (types.StateDiffCommitment, uint64, bool, error) {
	bd, ok := t.store.byNumber[number]
	if !ok || !bd.hasStateDiffMeta {
		return types.StateDiffCommitment{}, 0, false, nil
	}
	return bd.stateDiffCommitment, bd.stateDiffLength, true, nil
}

func (t *txn) TransactionHashesForBlock(number types.BlockNumber) ([]types.TransactionHash, error) {
	bd, ok := t.store.byNumber[number]
	if !ok {
		return nil, nil
	}
	hashes := make([]types.TransactionHash, 0, len(bd.transactions))
	for _, tr := range bd.transactions {
		hashes = append(hashes, types.HashTransaction(tr))
	}
	return hashes, nil
}

func (t *txn) InsertTransactions(number types.BlockNumber, txs []types.TransactionAndReceipt) error {
	bd := t.get(number)
	prev := bd.transactions
	bd.transactions = txs
	for _, tr := range txs {
		h := types.HashTransaction(tr)
		t.store.txByHash[h] = tr
	}
	t.undo = append(t.undo, func() {
		bd.transactions = prev
		for _, tr := range txs {
			delete(t.store.txByHash, types.HashTransaction(tr))
		}
	})
	return nil
}

func (t *txn) TransactionWithReceipt(hash types.TransactionHash) (types.TransactionVariant, types.Receipt, bool, error) {
	tr, ok := t.store.txByHash[hash]
	if !ok {
		return types.TransactionVariant{}, types.Receipt{}, false, nil
	}
	return tr.Transaction, tr.Receipt, true, nil
}

func (t *txn) InsertClasses(number types.BlockNumber, classes []types.ClassDefinition) error {
	bd := t.get(number)
	prev := bd.classes
	bd.classes = append(bd.classes, classes...)
	t.undo = append(t.undo, func() { bd.classes = prev })
	return nil
}

func (t *txn) InsertEvents(number types.BlockNumber, events types.EventsForBlockByTransaction) error {
	bd := t.get(number)
	prev, prevHas := bd.events, bd.hasEvents
	bd.events, bd.hasEvents = events, true
	t.undo = append(t.undo, func() { bd.events, bd.hasEvents = prev, prevHas })
	return nil
}

func (t *txn) BlockIsL1Accepted(number types.BlockNumber) (bool, error) {
	bd, ok := t.store.byNumber[number]
	return ok && bd.l1Accepted, nil
}

func (t *txn) Commit() error {
	if t.done {
		return errors.New("memory: transaction already closed")
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	return nil
}

