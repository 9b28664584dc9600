// Package statediff recomputes a state update's wire length and
// commitment from its already-decoded contents, the same derivation the
// recompute-length tool and the sync engine's commitment check both rely
// on.
package statediff

import (
	"bytes"
	"sort"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/pedersen"
	"github.com/starksyncd/starksyncd/internal/types"
)

// Length counts the wire-visible entries in a state update: one per
// storage write, one per nonce update, one per class deploy/replace, and
// one per declared class (Cairo and Sierra). This mirrors the feeder
// gateway's own state diff length accounting.
func Length(u *types.StateUpdateData) uint64 {
	var n uint64
	for _, upd := range u.SystemContractUpdates {
		n += entryCount(upd)
	}
	for _, upd := range u.ContractUpdates {
		n += entryCount(upd)
	}
	n += uint64(len(u.DeclaredCairoClasses))
	n += uint64(len(u.DeclaredSierraClasses))
	return n
}

func entryCount(u *types.Updates) uint64 {
	n := uint64(len(u.Storage))
	if u.Nonce != nil {
		n++
	}
	if u.ClassDeploy != nil {
		n++
	}
	return n
}

// Commitment folds a state update into a single Pedersen hash-chain
// commitment. Contract addresses, storage keys, and class hashes are all
// visited in ascending byte order first, so the result never depends on
// Go's randomized map iteration.
func Commitment(u *types.StateUpdateData) types.StateDiffCommitment {
	acc := felt.Zero
	acc = chainContracts(acc, u.SystemContractUpdates)
	acc = chainContracts(acc, u.ContractUpdates)
	acc = chainClassHashes(acc, sortedKeys(u.DeclaredCairoClasses))
	for _, classHash := range sortedClassHashKeys(u.DeclaredSierraClasses) {
		acc = pedersen.HashFelt(acc, classHash)
		acc = pedersen.HashFelt(acc, u.DeclaredSierraClasses[classHash])
	}
	return acc
}

func chainContracts(acc felt.Felt, updates map[types.ContractAddress]*types.Updates) felt.Felt {
	for _, addr := range sortedFeltKeys(updates) {
		acc = pedersen.HashFelt(acc, addr)
		acc = chainUpdate(acc, updates[addr])
	}
	return acc
}

func chainUpdate(acc felt.Felt, u *types.Updates) felt.Felt {
	for _, key := range sortedFeltKeys(u.Storage) {
		acc = pedersen.HashFelt(acc, key)
		acc = pedersen.HashFelt(acc, u.Storage[key])
	}
	if u.Nonce != nil {
		acc = pedersen.HashFelt(acc, *u.Nonce)
	}
	if u.ClassDeploy != nil {
		acc = pedersen.HashFelt(acc, *u.ClassDeploy)
	}
	return acc
}

func chainClassHashes(acc felt.Felt, hashes []types.ClassHash) felt.Felt {
	for _, h := range hashes {
		acc = pedersen.HashFelt(acc, h)
	}
	return acc
}

// sortedFeltKeys returns m's felt-valued keys in ascending big-endian
// byte order, generic over any map value type.
func sortedFeltKeys[V any](m map[felt.Felt]V) []felt.Felt {
	keys := make([]felt.Felt, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortFelts(keys)
	return keys
}

func sortedKeys(m map[types.ClassHash]struct{}) []types.ClassHash {
	keys := make([]types.ClassHash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortFelts(keys)
	return keys
}

func sortedClassHashKeys(m map[types.ClassHash]types.CasmHash) []types.ClassHash {
	keys := make([]types.ClassHash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortFelts(keys)
	return keys
}

func sortFelts(keys []felt.Felt) {
	sort.Slice(keys, func(i, j int) bool {
		bi, bj := keys[i].Bytes(), keys[j].Bytes()
		return bytes.Compare(bi[:], bj[:]) < 0
	})
}
