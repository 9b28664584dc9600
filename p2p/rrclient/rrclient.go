// Package rrclient implements the request/response client used by the
// five stream engines to talk to a single peer at a time: one typed
// Send per protocol, returning a bounded channel of tagged responses
// terminated by a Fin sentinel. The client itself is stateless between
// calls; callers own all retry and peer-rotation policy.
package rrclient

import (
	"github.com/starksyncd/starksyncd/internal/types"
)

// Protocol names a streaming capability, used both as the peer-directory
// lookup key and as the wire-level request discriminator.
type Protocol string

const (
	ProtocolHeaders      Protocol = "headers"
	ProtocolTransactions Protocol = "transactions"
	ProtocolStateDiffs   Protocol = "state_diffs"
	ProtocolClasses      Protocol = "classes"
	ProtocolEvents       Protocol = "events"
)

// Direction is the iteration direction of a range request.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// Iteration is the single request envelope shared by all five protocols.
type Iteration struct {
	Start     uint64
	Direction Direction
	Limit     uint64
	Step      uint64
}

// ResponseChan delivers response messages item-by-item over a buffered
// channel (suggested capacity 1024, matching the backpressure guidance
// for send/receive channels), closed once Fin is observed or the
// connection fails.
type ResponseChan[T any] <-chan Message[T]

// ChannelCapacity is the suggested bound for response channels.
const ChannelCapacity = 1024

// Message wraps a single decoded response item, or signals Fin / a
// terminal error. Exactly one of Item, Fin, or Err is populated.
type Message[T any] struct {
	Item T
	Fin  bool
	Err  error
}

// HeaderResponse is the single response item of the Headers protocol.
type HeaderResponse struct {
	Header types.SignedBlockHeader
}

// TransactionResponse is the single response item of the Transactions
// protocol.
type TransactionResponse struct {
	Transaction types.TransactionVariant
	Receipt     types.Receipt
}

// StateDiffResponseKind distinguishes the two item shapes the StateDiffs
// protocol interleaves.
type StateDiffResponseKind uint8

const (
	StateDiffContractDiff StateDiffResponseKind = iota
	StateDiffDeclaredClass
)

// StateDiffResponse is a single response item of the StateDiffs protocol,
// tagged by Kind.
type StateDiffResponse struct {
	Kind           StateDiffResponseKind
	ContractDiff   ContractDiff
	DeclaredClass  DeclaredClass
}

// ContractDiff is one contract's worth of storage/nonce/class updates for
// the current block, as streamed by a peer.
type ContractDiff struct {
	Address     types.ContractAddress
	Nonce       *types.ContractNonce
	ClassHash   *types.ClassHash
	Values      []KeyValue
	Domain      uint32
}

// KeyValue is a single storage write.
type KeyValue struct {
	Key   types.StorageAddress
	Value types.StorageValue
}

// DeclaredClass is a single class declaration within a state diff.
type DeclaredClass struct {
	ClassHash        types.ClassHash
	CompiledClassHash *types.CasmHash
}

// ClassResponseKind distinguishes the Cairo 0 vs Cairo 1 (Sierra) variant
// of a streamed class definition.
type ClassResponseKind uint8

const (
	ClassCairo0 ClassResponseKind = iota
	ClassCairo1
)

// ClassResponse is a single response item of the Classes protocol.
type ClassResponse struct {
	Kind   ClassResponseKind
	Bytes  []byte
	Domain uint32
}

// EventResponse is a single response item of the Events protocol.
type EventResponse struct {
	TransactionHash types.TransactionHash
	FromAddress     types.ContractAddress
	Keys            []types.EntryPoint
	Data            []types.EntryPoint
}

// Client is implemented by every transport capable of serving the five
// streaming protocols to a single peer at a time. Domain fields on the
// wire responses are accepted but ignored by every caller in this
// module.
type Client interface {
	SendHeaders(peer types.PeerID, req Iteration) (ResponseChan[HeaderResponse], error)
	SendTransactions(peer types.PeerID, req Iteration) (ResponseChan[TransactionResponse], error)
	SendStateDiffs(peer types.PeerID, req Iteration) (ResponseChan[StateDiffResponse], error)
	SendClasses(peer types.PeerID, req Iteration) (ResponseChan[ClassResponse], error)
	SendEvents(peer types.PeerID, req Iteration) (ResponseChan[EventResponse], error)
}
