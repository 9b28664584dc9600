// Package engine implements the generic stream engine shared by all five
// protocol streams: a lazy producer over a block range driven by an
// auxiliary count/commitment stream, monomorphized per protocol instead
// of hand-duplicating the outer/next-peer loop five times.
package engine

import (
	"context"
	"fmt"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xlog"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// PeersFunc resolves the current peer set to try for this engine's
// capability, already shuffled by the peer directory.
type PeersFunc func(ctx context.Context) ([]types.PeerID, error)

// Requester issues one ranged request to a single peer and returns its
// lazy response channel.
type Requester[Resp any] func(peer types.PeerID, req rrclient.Iteration) (rrclient.ResponseChan[Resp], error)

// CountSource yields the expected sub-item count and commitment for the
// next block in sequence, sourced from previously validated headers. It
// must be consumed strictly in block order; ending before the engine
// finishes is a hard error (CountStreamExhaustedError), not a peer fault.
type CountSource[Commitment any] func(ctx context.Context) (count uint64, commitment Commitment, err error)

// Adder folds one response item into the current block's accumulator,
// returning how many countable sub-items it contributed. The engine
// faults the peer if dec would drive the remaining counter negative.
type Adder[Resp, Acc any] func(acc Acc, item Resp) (next Acc, dec uint64)

// Packager turns a completed block's accumulator and commitment into the
// engine's public output item.
type Packager[Acc, Commitment, Out any] func(block types.BlockNumber, acc Acc, commitment Commitment) Out

// Result is one emitted item, or a terminal error that ends the stream.
type Result[Out any] struct {
	Peer  types.PeerID
	Block types.BlockNumber
	Item  Out
	Err   error
}

// Engine is the monomorphized stream engine. Construct one per protocol
// via that protocol's constructor (NewTransactionEngine,
// NewStateDiffEngine, NewClassEngine, NewEventEngine), which instantiates
// its type parameters with the protocol's concrete
// response/commitment/accumulator/output types.
type Engine[Resp, Commitment, Acc, Out any] struct {
	Capability string
	Peers      PeersFunc
	Send       Requester[Resp]
	Counts     CountSource[Commitment]
	NewAcc     func() Acc
	Add        Adder[Resp, Acc]
	Package    Packager[Acc, Commitment, Out]

	// OnPeerFault, if set, is invoked for every peer-attributable error
	// (TransportFailed, PrematureFin, OverCount) so that outside policy
	// can penalize or ban the peer. It must not block.
	OnPeerFault func(error)

	log *xlog.Logger
}

func (e *Engine[Resp, Commitment, Acc, Out]) fault(err error) {
	if e.log == nil {
		e.log = xlog.Root().Named("engine").With("capability", e.Capability)
	}
	e.log.Debug("peer fault", "err", err)
	if e.OnPeerFault != nil {
		e.OnPeerFault(err)
	}
}

// Run streams every block in [start, stop] (inclusive) and returns a
// channel of Result, closed when the range completes or a fatal error
// occurs. Cancelling ctx stops the engine promptly and releases any
// in-flight peer connection.
func (e *Engine[Resp, Commitment, Acc, Out]) Run(ctx context.Context, start, stop types.BlockNumber) <-chan Result[Out] {
	out := make(chan Result[Out], rrclient.ChannelCapacity)
	go e.run(ctx, start, stop, out)
	return out
}

func (e *Engine[Resp, Commitment, Acc, Out]) run(ctx context.Context, start, stop types.BlockNumber, out chan<- Result[Out]) {
	defer close(out)
	if start > stop {
		return
	}

	blockRemaining, blockCommitment, err := e.Counts(ctx)
	if err != nil {
		e.send(ctx, out, Result[Out]{Err: &types.CountStreamExhaustedError{BlockNumber: start}})
		return
	}

outer:
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		peers, err := e.Peers(ctx)
		if err != nil {
			e.send(ctx, out, Result[Out]{Err: err})
			return
		}
		if len(peers) == 0 {
			e.send(ctx, out, Result[Out]{Err: fmt.Errorf("engine[%s]: no peers available for block %d", e.Capability, start)})
			return
		}

		for _, peer := range peers {
			select {
			case <-ctx.Done():
				return
			default:
			}

			remaining := blockRemaining
			commitment := blockCommitment
			acc := e.NewAcc()

			limit := uint64(stop-start) + 1
			req := rrclient.Iteration{Start: uint64(start), Direction: rrclient.Forward, Limit: limit, Step: 1}
			responses, err := e.Send(peer, req)
			if err != nil {
				e.fault(&types.TransportFailedError{Peer: peer, Err: err})
				continue
			}

			// A zero-count block (no countable sub-items at all) completes
			// immediately, possibly several times in a row, before any
			// response is read.
			for remaining == 0 {
				item := e.Package(start, acc, commitment)
				if !e.send(ctx, out, Result[Out]{Peer: peer, Block: start, Item: item}) {
					return
				}
				if start == stop {
					break outer
				}
				start++
				blockRemaining, blockCommitment, err = e.Counts(ctx)
				if err != nil {
					e.send(ctx, out, Result[Out]{Err: &types.CountStreamExhaustedError{BlockNumber: start}})
					return
				}
				remaining = blockRemaining
				commitment = blockCommitment
				acc = e.NewAcc()
			}

			aborted := false
		responseLoop:
			for msg := range responses {
				if msg.Err != nil {
					e.fault(&types.TransportFailedError{Peer: peer, Err: msg.Err})
					aborted = true
					break responseLoop
				}
				if msg.Fin {
					e.fault(&types.PrematureFinError{Peer: peer, BlockNumber: start})
					aborted = true
					break responseLoop
				}

				next, dec := e.Add(acc, msg.Item)
				if dec > remaining {
					e.fault(&types.OverCountError{Peer: peer, BlockNumber: start})
					if start == stop {
						break outer
					}
					aborted = true
					break responseLoop
				}
				acc = next
				remaining -= dec

				for remaining == 0 {
					item := e.Package(start, acc, commitment)
					if !e.send(ctx, out, Result[Out]{Peer: peer, Block: start, Item: item}) {
						return
					}
					if start == stop {
						break outer
					}
					start++
					blockRemaining, blockCommitment, err = e.Counts(ctx)
					if err != nil {
						e.send(ctx, out, Result[Out]{Err: &types.CountStreamExhaustedError{BlockNumber: start}})
						return
					}
					remaining = blockRemaining
					commitment = blockCommitment
					acc = e.NewAcc()
				}
			}

			if !aborted {
				// The peer's connection ended without ever sending a block
				// completion or Fin: treat as a transport failure and retry
				// with the next peer, keeping the preserved block counter.
				e.fault(&types.TransportFailedError{Peer: peer, Err: errStreamEndedWithoutFin})
			}
		}
		// All peers exhausted this round; refresh the peer set and retry.
	}
}

var errStreamEndedWithoutFin = fmt.Errorf("response stream ended without Fin")

// send delivers r on out, returning false if ctx was cancelled first.
func (e *Engine[Resp, Commitment, Acc, Out]) send(ctx context.Context, out chan<- Result[Out], r Result[Out]) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
