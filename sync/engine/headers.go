package engine

import (
	"context"
	"fmt"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xlog"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// HeaderDirection selects whether the header engine walks the range
// forward (ascending numbers) or backward (descending, via parent()).
type HeaderDirection uint8

const (
	HeaderForward HeaderDirection = iota
	HeaderBackward
)

// HeaderEngine streams SignedBlockHeader items one-per-response over a
// block range. Unlike the count-driven engines it has no auxiliary
// stream: its termination condition is simply reaching stop, and its
// emitted order is directly tied to Direction.
type HeaderEngine struct {
	Peers PeersFunc
	Send  Requester[rrclient.HeaderResponse]

	OnPeerFault func(error)

	log *xlog.Logger
}

func (e *HeaderEngine) fault(err error) {
	if e.log == nil {
		e.log = xlog.Root().Named("engine").With("capability", "headers")
	}
	e.log.Debug("peer fault", "err", err)
	if e.OnPeerFault != nil {
		e.OnPeerFault(err)
	}
}

// Run streams headers over [start, stop] in the given direction.
// reverse=false walks forward from start to stop; reverse=true walks
// backward, treating stop as the (numerically higher) head, where the
// walk begins, and start as the (numerically lower) tail, where it
// ends, stopping early if genesis's parent is reached before start.
func (e *HeaderEngine) Run(ctx context.Context, start, stop types.BlockNumber, reverse bool) <-chan Result[types.SignedBlockHeader] {
	out := make(chan Result[types.SignedBlockHeader], rrclient.ChannelCapacity)
	go e.run(ctx, start, stop, reverse, out)
	return out
}

func (e *HeaderEngine) run(ctx context.Context, start, stop types.BlockNumber, reverse bool, out chan<- Result[types.SignedBlockHeader]) {
	defer close(out)

	direction := rrclient.Forward
	cur, limEnd := start, stop
	if reverse {
		direction = rrclient.Backward
		cur, limEnd = stop, start
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
			e.deliver(ctx, out, Result[types.SignedBlockHeader]{Err: err})
			return
		}
		if len(peers) == 0 {
			e.deliver(ctx, out, Result[types.SignedBlockHeader]{Err: fmt.Errorf("engine[headers]: no peers available for block %d", cur)})
			return
		}

		for _, peer := range peers {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var limit uint64
			if reverse {
				limit = uint64(cur-limEnd) + 1
			} else {
				limit = uint64(limEnd-cur) + 1
			}
			req := rrclient.Iteration{Start: uint64(cur), Direction: direction, Limit: limit, Step: 1}
			responses, err := e.Send(peer, req)
			if err != nil {
				e.fault(&types.TransportFailedError{Peer: peer, Err: err})
				continue
			}

			aborted := false
			for msg := range responses {
				if msg.Err != nil {
					e.fault(&types.TransportFailedError{Peer: peer, Err: msg.Err})
					aborted = true
					break
				}
				if msg.Fin {
					e.fault(&types.PrematureFinError{Peer: peer, BlockNumber: cur})
					aborted = true
					break
				}

				h := msg.Item.Header
				if !e.deliver(ctx, out, Result[types.SignedBlockHeader]{Peer: peer, Block: cur, Item: h}) {
					return
				}

				if reverse {
					if cur == limEnd {
						break outer
					}
					parent, ok := cur.Parent()
					if !ok {
						// genesis.parent() saturates: the backward stream is
						// complete regardless of the requested tail.
						break outer
					}
					cur = parent
				} else {
					if cur == limEnd {
						break outer
					}
					cur++
				}
			}

			if !aborted {
				e.fault(&types.TransportFailedError{Peer: peer, Err: errStreamEndedWithoutFin})
			}
		}
	}
}

func (e *HeaderEngine) deliver(ctx context.Context, out chan<- Result[types.SignedBlockHeader], r Result[types.SignedBlockHeader]) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
