package engine

import (
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// eventAcc accumulates a block's events grouped by transaction hash, in
// the order the peer delivered them. A new event with the same hash as
// the running group appends to it; any other hash opens a new group.
type eventAcc struct {
	groups []types.TxEvents
}

// EventEngine is the Events protocol instantiation: exactly one
// countable sub-item per event, regardless of grouping.
type EventEngine = Engine[rrclient.EventResponse, types.EventCommitment, eventAcc, types.EventsForBlockByTransaction]

// NewEventEngine builds an EventEngine wired to peers, send, and the
// per-block event count/commitment stream.
func NewEventEngine(peers PeersFunc, send Requester[rrclient.EventResponse], counts CountSource[types.EventCommitment], onFault func(error)) *EventEngine {
	return &EventEngine{
		Capability: string(rrclient.ProtocolEvents),
		Peers:      peers,
		Send:       send,
		Counts:     counts,
		NewAcc:     func() eventAcc { return eventAcc{} },
		Add:        addEvent,
		Package: func(block types.BlockNumber, acc eventAcc, _ types.EventCommitment) types.EventsForBlockByTransaction {
			return types.EventsForBlockByTransaction{BlockNumber: block, ByTx: acc.groups}
		},
		OnPeerFault: onFault,
	}
}

func addEvent(acc eventAcc, item rrclient.EventResponse) (eventAcc, uint64) {
	record := types.EventRecord{
		FromAddress: item.FromAddress,
		Keys:        item.Keys,
		Data:        item.Data,
	}
	if n := len(acc.groups); n > 0 && acc.groups[n-1].TransactionHash.Equal(item.TransactionHash) {
		acc.groups[n-1].Events = append(acc.groups[n-1].Events, record)
		return acc, 1
	}
	acc.groups = append(acc.groups, types.TxEvents{
		TransactionHash: item.TransactionHash,
		Events:          []types.EventRecord{record},
	})
	return acc, 1
}
