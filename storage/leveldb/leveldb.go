// Package leveldb implements storage.Store on top of goleveldb, the
// same embedded key-value engine go-ethereum layers its chain database
// on. Keys are a one-byte prefix plus a big-endian block number or raw
// hash; values are JSON, reusing internal/felt's hex-string codec.
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/storage"
)

const (
	prefixHeader        = 'h'
	prefixHashToNumber  = 'n'
	prefixSignature     = 's'
	prefixStateDiffMeta = 'd'
	prefixStateUpdate   = 'u'
	prefixTransactions  = 't'
	prefixTxByHash      = 'x'
	prefixClasses       = 'c'
	prefixEvents        = 'e'
	prefixL1Accepted    = 'l'
)

// Store is a goleveldb-backed storage.Store.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a leveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &txn{tx: tx}, nil
}

type txn struct {
	tx   *leveldb.Transaction
	done bool
}

func numberKey(prefix byte, number types.BlockNumber) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], uint64(number))
	return key
}

func hashKey(prefix byte, b [32]byte) []byte {
	key := make([]byte, 33)
	key[0] = prefix
	copy(key[1:], b[:])
	return key
}

func (t *txn) has(key []byte) (bool, error) {
	ok, err := t.tx.Has(key, nil)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (t *txn) BlockExists(number types.BlockNumber) (bool, error) {
	return t.has(numberKey(prefixHeader, number))
}

func (t *txn) BlockHeader(number types.BlockNumber) (types.BlockHeader, bool, error) {
	raw, err := t.tx.Get(numberKey(prefixHeader, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return types.BlockHeader{}, false, nil
	}
	if err != nil {
		return types.BlockHeader{}, false, err
	}
	var h types.BlockHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return types.BlockHeader{}, false, err
	}
	return h, true, nil
}

func (t *txn) BlockHash(number types.BlockNumber) (types.BlockHash, bool, error) {
	h, ok, err := t.BlockHeader(number)
	if err != nil || !ok {
		return types.BlockHash{}, false, err
	}
	return h.Hash, true, nil
}

func (t *txn) BlockNumber(hash types.BlockHash) (types.BlockNumber, bool, error) {
	raw, err := t.tx.Get(hashKey(prefixHashToNumber, hash.Bytes()), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return types.BlockNumber(binary.BigEndian.Uint64(raw)), true, nil
}

func (t *txn) NextAncestor(number types.BlockNumber) (types.BlockNumber, types.BlockHash, bool, error) {
	for n := number; ; {
		header, ok, err := t.BlockHeader(n)
		if err != nil {
			return 0, types.BlockHash{}, false, err
		}
		if ok {
			return n, header.Hash, true, nil
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
		exists, err := t.BlockExists(n)
		if err != nil {
			return 0, false, err
		}
		if exists {
			if parent, hasParent := n.Parent(); hasParent {
				parentExists, err := t.BlockExists(parent)
				if err != nil {
					return 0, false, err
				}
				if !parentExists {
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
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if err := t.tx.Put(numberKey(prefixHeader, header.Number), raw, nil); err != nil {
		return err
	}
	numBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(numBuf, uint64(header.Number))
	return t.tx.Put(hashKey(prefixHashToNumber, header.Hash.Bytes()), numBuf, nil)
}

func (t *txn) InsertSignature(number types.BlockNumber, sig types.BlockCommitmentSignature) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return t.tx.Put(numberKey(prefixSignature, number), raw, nil)
}

type stateDiffMeta struct {
	Commitment types.StateDiffCommitment `json:"commitment"`
	Length     uint64                    `json:"length"`
}

func (t *txn) UpdateStateDiffCommitmentAndLength(number types.BlockNumber, commitment types.StateDiffCommitment, length uint64) error {
	raw, err := json.Marshal(stateDiffMeta{Commitment: commitment, Length: length})
	if err != nil {
		return err
	}
	return t.tx.Put(numberKey(prefixStateDiffMeta, number), raw, nil)
}

func (t *txn) StateDiffCommitmentAndLength(number types.BlockNumber) (types.StateDiffCommitment, uint64, bool, error) {
	raw, err := t.tx.Get(numberKey(prefixStateDiffMeta, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return types.StateDiffCommitment{}, 0, false, nil
	}
	if err != nil {
		return types.StateDiffCommitment{}, 0, false, err
	}
	var m stateDiffMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.StateDiffCommitment{}, 0, false, err
	}
	return m.Commitment, m.Length, true, nil
}

func (t *txn) StateUpdate(number types.BlockNumber) (*types.StateUpdateData, bool, error) {
	raw, err := t.tx.Get(numberKey(prefixStateUpdate, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var u types.StateUpdateData
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

func (t *txn) InsertStateUpdate(number types.BlockNumber, update *types.StateUpdateData) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return t.tx.Put(numberKey(prefixStateUpdate, number), raw, nil)
}

func (t *txn) TransactionHashesForBlock(number types.BlockNumber) ([]types.TransactionHash, error) {
	txs, err := t.transactionsForBlock(number)
	if err != nil {
		return nil, err
	}
	hashes := make([]types.TransactionHash, 0, len(txs))
	for _, tr := range txs {
		hashes = append(hashes, types.HashTransaction(tr))
	}
	return hashes, nil
}

func (t *txn) transactionsForBlock(number types.BlockNumber) ([]types.TransactionAndReceipt, error) {
	raw, err := t.tx.Get(numberKey(prefixTransactions, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var txs []types.TransactionAndReceipt
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (t *txn) InsertTransactions(number types.BlockNumber, txs []types.TransactionAndReceipt) error {
	raw, err := json.Marshal(txs)
	if err != nil {
		return err
	}
	if err := t.tx.Put(numberKey(prefixTransactions, number), raw, nil); err != nil {
		return err
	}
	for _, tr := range txs {
		trRaw, err := json.Marshal(tr)
		if err != nil {
			return err
		}
		if err := t.tx.Put(hashKey(prefixTxByHash, types.HashTransaction(tr).Bytes()), trRaw, nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) TransactionWithReceipt(hash types.TransactionHash) (types.TransactionVariant, types.Receipt, bool, error) {
	raw, err := t.tx.Get(hashKey(prefixTxByHash, hash.Bytes()), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return types.TransactionVariant{}, types.Receipt{}, false, nil
	}
	if err != nil {
		return types.TransactionVariant{}, types.Receipt{}, false, err
	}
	var tr types.TransactionAndReceipt
	if err := json.Unmarshal(raw, &tr); err != nil {
		return types.TransactionVariant{}, types.Receipt{}, false, err
	}
	return tr.Transaction, tr.Receipt, true, nil
}

func (t *txn) InsertClasses(number types.BlockNumber, classes []types.ClassDefinition) error {
	existing, err := t.classesForBlock(number)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(append(existing, classes...))
	if err != nil {
		return err
	}
	return t.tx.Put(numberKey(prefixClasses, number), raw, nil)
}

func (t *txn) classesForBlock(number types.BlockNumber) ([]types.ClassDefinition, error) {
	raw, err := t.tx.Get(numberKey(prefixClasses, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var classes []types.ClassDefinition
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (t *txn) InsertEvents(number types.BlockNumber, events types.EventsForBlockByTransaction) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return t.tx.Put(numberKey(prefixEvents, number), raw, nil)
}

func (t *txn) BlockIsL1Accepted(number types.BlockNumber) (bool, error) {
	raw, err := t.tx.Get(numberKey(prefixL1Accepted, number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) > 0 && raw[0] == 1, nil
}

func (t *txn) Commit() error {
	if t.done {
		return errors.New("leveldb: transaction already closed")
	}
	t.done = true
	return t.tx.Commit()
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.tx.Discard()
	return nil
}

