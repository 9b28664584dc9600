package engine

import (
	"context"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// classCount is the Classes protocol's commitment slot. Class bodies
// have no commitment of their own to check against — only a declared
// count, sourced from the state diff's declared-class tally — so the
// commitment type parameter is an empty placeholder.
type classCount struct{}

// ClassEngine is the Classes protocol instantiation: one countable
// sub-item per class body, counted against the declared-class tally for
// the block.
type ClassEngine = Engine[rrclient.ClassResponse, classCount, []types.ClassDefinition, []types.ClassDefinition]

// NewClassEngine builds a ClassEngine wired to peers, send, and the
// per-block declared-class count stream.
func NewClassEngine(peers PeersFunc, send Requester[rrclient.ClassResponse], counts CountSource[classCount], onFault func(error)) *ClassEngine {
	return &ClassEngine{
		Capability: string(rrclient.ProtocolClasses),
		Peers:      peers,
		Send:       send,
		Counts:     counts,
		NewAcc:     func() []types.ClassDefinition { return nil },
		Add: func(acc []types.ClassDefinition, item rrclient.ClassResponse) ([]types.ClassDefinition, uint64) {
			kind := types.ClassDefinitionCairo
			if item.Kind == rrclient.ClassCairo1 {
				kind = types.ClassDefinitionSierra
			}
			return append(acc, types.ClassDefinition{Kind: kind, Definition: item.Bytes}), 1
		},
		Package: func(block types.BlockNumber, acc []types.ClassDefinition, _ classCount) []types.ClassDefinition {
			for i := range acc {
				acc[i].BlockNumber = block
			}
			return acc
		},
		OnPeerFault: onFault,
	}
}

// ClassCountSource adapts a plain count-only source (no commitment) into
// the generic CountSource[classCount] shape the engine expects.
func ClassCountSource(counts func(ctx context.Context) (uint64, error)) CountSource[classCount] {
	return func(ctx context.Context) (uint64, classCount, error) {
		n, err := counts(ctx)
		return n, classCount{}, err
	}
}
