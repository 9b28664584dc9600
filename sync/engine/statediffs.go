package engine

import (
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// StateDiffEngine is the StateDiffs protocol instantiation. Its counter
// is multi-dimensional: a ContractDiff decrements by the number of
// storage writes plus one for a present nonce plus one for a present
// class pointer; a DeclaredClass decrements by exactly one.
type StateDiffEngine = Engine[rrclient.StateDiffResponse, types.StateDiffCommitment, *types.StateUpdateData, types.UnverifiedStateUpdateData]

// NewStateDiffEngine builds a StateDiffEngine wired to peers, send, and
// the per-block state-diff count/commitment stream.
func NewStateDiffEngine(peers PeersFunc, send Requester[rrclient.StateDiffResponse], counts CountSource[types.StateDiffCommitment], onFault func(error)) *StateDiffEngine {
	return &StateDiffEngine{
		Capability: string(rrclient.ProtocolStateDiffs),
		Peers:      peers,
		Send:       send,
		Counts:     counts,
		NewAcc:     types.NewStateUpdateData,
		Add:        addStateDiffItem,
		Package: func(_ types.BlockNumber, acc *types.StateUpdateData, commitment types.StateDiffCommitment) types.UnverifiedStateUpdateData {
			return types.UnverifiedStateUpdateData{
				ExpectedCommitment: commitment,
				StateDiff:          acc,
			}
		},
		OnPeerFault: onFault,
	}
}

func addStateDiffItem(acc *types.StateUpdateData, item rrclient.StateDiffResponse) (*types.StateUpdateData, uint64) {
	switch item.Kind {
	case rrclient.StateDiffContractDiff:
		return acc, applyContractDiff(acc, item.ContractDiff)
	case rrclient.StateDiffDeclaredClass:
		applyDeclaredClass(acc, item.DeclaredClass)
		return acc, 1
	default:
		return acc, 0
	}
}

// contractUpdates routes address into system_contract_updates when it is
// the reserved system contract address, otherwise into contract_updates,
// creating the per-contract Updates record on first touch.
func contractUpdates(acc *types.StateUpdateData, address types.ContractAddress) *types.Updates {
	table := acc.ContractUpdates
	if address.Equal(types.ContractAddressOne) {
		table = acc.SystemContractUpdates
	}
	u, ok := table[address]
	if !ok {
		u = &types.Updates{Storage: make(map[types.StorageAddress]types.StorageValue)}
		table[address] = u
	}
	return u
}

func applyContractDiff(acc *types.StateUpdateData, diff rrclient.ContractDiff) uint64 {
	u := contractUpdates(acc, diff.Address)

	var dec uint64
	for _, kv := range diff.Values {
		u.Storage[kv.Key] = kv.Value
		dec++
	}
	if diff.Nonce != nil {
		nonce := *diff.Nonce
		u.Nonce = &nonce
		dec++
	}
	if diff.ClassHash != nil {
		class := *diff.ClassHash
		u.ClassDeploy = &class
		dec++
	}
	return dec
}

func applyDeclaredClass(acc *types.StateUpdateData, d rrclient.DeclaredClass) {
	if d.CompiledClassHash != nil {
		acc.DeclaredSierraClasses[d.ClassHash] = *d.CompiledClassHash
		return
	}
	acc.DeclaredCairoClasses[d.ClassHash] = struct{}{}
}
