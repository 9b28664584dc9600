// Package types holds the shared data model for the sync engine: block
// headers, streamed per-protocol payloads, state-diff updates, the error
// stack projection, and the typed, peer-attributable error set.
package types

import (
	"fmt"

	"github.com/starksyncd/starksyncd/internal/felt"
)

// BlockNumber is a non-negative block height. Genesis is block 0.
type BlockNumber uint64

const Genesis BlockNumber = 0

// Parent returns the parent block number and true, or (0, false) at genesis.
func (n BlockNumber) Parent() (BlockNumber, bool) {
	if n == Genesis {
		return 0, false
	}
	return n - 1, true
}

type (
	BlockHash               = felt.Felt
	TransactionHash         = felt.Felt
	ClassHash               = felt.Felt
	CasmHash                = felt.Felt
	ContractAddress         = felt.Felt
	StorageAddress          = felt.Felt
	StorageValue            = felt.Felt
	ContractNonce           = felt.Felt
	EntryPoint              = felt.Felt
	TransactionCommitment   = felt.Felt
	EventCommitment         = felt.Felt
	StateDiffCommitment     = felt.Felt
	ReceiptCommitment       = felt.Felt
	StateCommitment         = felt.Felt
	BlockCommitmentSigElem  = felt.Felt
	SequencerAddress        = felt.Felt
)

// ContractAddressOne is the reserved system-contract address; state-diff
// updates addressed to it route into SystemContractUpdates rather than
// ContractUpdates.
var ContractAddressOne = felt.MustFromHex("0x1")

// L1DataAvailabilityMode distinguishes Calldata vs Blob DA posting.
type L1DataAvailabilityMode uint8

const (
	DACalldata L1DataAvailabilityMode = iota
	DABlob
)

// BlockCommitmentSignature is the (r, s) ECDSA-style pair signed by the
// sequencer over the block hash.
type BlockCommitmentSignature struct {
	R, S BlockCommitmentSigElem
}

// BlockHeader is the fixed set of fields carried by every block, whose
// hash and commitments are authenticated against the network's hashing
// rule for the given starknet_version.
type BlockHeader struct {
	Hash                  BlockHash
	ParentHash            BlockHash
	Number                BlockNumber
	Timestamp             uint64
	EthL1GasPrice         felt.Felt
	StrkL1GasPrice        felt.Felt
	EthL1DataGasPrice     felt.Felt
	StrkL1DataGasPrice    felt.Felt
	SequencerAddress      SequencerAddress
	StarknetVersion       string
	EventCommitment       EventCommitment
	StateCommitment       StateCommitment
	TransactionCommitment TransactionCommitment
	TransactionCount      uint64
	EventCount            uint64
	L1DAMode              L1DataAvailabilityMode
	ReceiptCommitment     ReceiptCommitment
}

// SignedBlockHeader is a BlockHeader plus its sequencer signature and the
// state-diff commitment/length pair that travels with it on the wire.
type SignedBlockHeader struct {
	Header             BlockHeader
	Signature          BlockCommitmentSignature
	StateDiffCommitment StateDiffCommitment
	StateDiffLength    uint64
}

// Receipt carries the non-transaction fields produced by execution.
type Receipt struct {
	ActualFee          felt.Felt
	ExecutionResources ExecutionResources
	L2ToL1Messages     []L2ToL1Message
	ExecutionStatus    ExecutionStatus
	TransactionIndex   uint64
	RevertReason       string
}

type ExecutionStatus uint8

const (
	ExecutionSucceeded ExecutionStatus = iota
	ExecutionReverted
)

type ExecutionResources struct {
	L1Gas     uint64
	L1DataGas uint64
	L2Gas     uint64
}

type L2ToL1Message struct {
	FromAddress ContractAddress
	ToAddress   felt.Felt
	Payload     []felt.Felt
}

// TransactionVariant is an opaque envelope for the wire's per-kind
// transaction payload (invoke/declare/deploy/deploy-account/l1-handler).
// The sync engine never inspects its shape, only counts it, so a single
// opaque byte envelope is sufficient here.
type TransactionVariant struct {
	Kind string
	Raw  []byte
}

// UnverifiedTransactionData is the per-block transaction payload streamed
// by a peer, pending commitment verification by the caller.
type UnverifiedTransactionData struct {
	ExpectedCommitment TransactionCommitment
	Transactions       []TransactionAndReceipt
}

type TransactionAndReceipt struct {
	Transaction TransactionVariant
	Receipt     Receipt
}

// HashTransaction derives a stand-in identity for a transaction from its
// opaque raw bytes. Decoding a real transaction hash is the concern of
// the collaborator that produces TransactionVariant; every collaborator
// that only needs a stable key for indexing or commitment recomputation
// shares this single derivation. The key is the first 31 bytes of Raw
// behind a zero byte, so transactions whose Raw agrees in its first 31
// bytes share a key.
func HashTransaction(tr TransactionAndReceipt) TransactionHash {
	var buf [32]byte
	copy(buf[1:], tr.Transaction.Raw)
	return felt.MustFromBytesBE(buf)
}

// Updates is the per-contract delta carried by a state diff: storage
// writes, an optional nonce update, and an optional class pointer
// (always tagged Deploy on the wire; replace-vs-deploy is resolved by the
// caller against prior state).
type Updates struct {
	Storage    map[StorageAddress]StorageValue
	Nonce      *ContractNonce
	ClassDeploy *ClassHash
}

// StateUpdateData is the full per-block state diff, already routed
// between system-contract and ordinary-contract updates.
type StateUpdateData struct {
	SystemContractUpdates map[ContractAddress]*Updates
	ContractUpdates       map[ContractAddress]*Updates
	DeclaredCairoClasses  map[ClassHash]struct{}
	DeclaredSierraClasses map[ClassHash]CasmHash
}

// NewStateUpdateData returns a StateUpdateData with all maps initialized,
// ready for routing writes into.
func NewStateUpdateData() *StateUpdateData {
	return &StateUpdateData{
		SystemContractUpdates: make(map[ContractAddress]*Updates),
		ContractUpdates:       make(map[ContractAddress]*Updates),
		DeclaredCairoClasses:  make(map[ClassHash]struct{}),
		DeclaredSierraClasses: make(map[ClassHash]CasmHash),
	}
}

// UnverifiedStateUpdateData is the per-block state-diff payload streamed
// by a peer, pending commitment verification by the caller.
type UnverifiedStateUpdateData struct {
	ExpectedCommitment StateDiffCommitment
	StateDiff          *StateUpdateData
}

// ClassDefinitionKind tags the Cairo 0 vs Cairo 1 (Sierra) variant of a
// streamed class body.
type ClassDefinitionKind uint8

const (
	ClassDefinitionCairo ClassDefinitionKind = iota
	ClassDefinitionSierra
)

// ClassDefinition is a streamed class body, tagged by VM generation.
type ClassDefinition struct {
	Kind        ClassDefinitionKind
	BlockNumber BlockNumber
	Definition  []byte
}

// Bytes returns the raw class body regardless of Kind.
func (c ClassDefinition) Bytes() []byte { return c.Definition }

// EventRecord is a single contract event as streamed by a peer.
type EventRecord struct {
	FromAddress ContractAddress
	Keys        []felt.Felt
	Data        []felt.Felt
}

// TxEvents groups the events emitted by a single transaction, in the
// order the peer delivered them.
type TxEvents struct {
	TransactionHash TransactionHash
	Events          []EventRecord
}

// EventsForBlockByTransaction is a whole block's events, grouped by the
// transaction hash the peer associated them with.
type EventsForBlockByTransaction struct {
	BlockNumber BlockNumber
	ByTx        []TxEvents
}

// HeaderGap is an inclusive range of locally-missing block numbers, with
// enough boundary material to verify the fetched headers link up once
// filled.
type HeaderGap struct {
	Head           BlockNumber
	HeadHash       BlockHash
	Tail           BlockNumber
	TailParentHash BlockHash
}

func (g HeaderGap) String() string {
	return fmt.Sprintf("gap[%d..%d]", g.Tail, g.Head)
}

// Frame is implemented by CallFrame and StringFrame, the only two public
// kinds an ErrorStack may project.
type Frame interface {
	isFrame()
}

// CallFrame names the contract call site a failure occurred in.
type CallFrame struct {
	StorageAddress StorageAddress
	ClassHash      ClassHash
	Selector       *EntryPoint
}

func (CallFrame) isFrame() {}

// StringFrame is a free-form, user-readable failure description.
type StringFrame struct {
	Reason string
}

func (StringFrame) isFrame() {}

// ErrorStack is an ordered sequence of frames describing why a
// transaction's execution failed, outermost call first and the innermost
// frame (the failure reason) last.
type ErrorStack []Frame

func (s ErrorStack) String() string {
	out := ""
	for i, f := range s {
		if i > 0 {
			out += " -> "
		}
		switch v := f.(type) {
		case CallFrame:
			out += fmt.Sprintf("call(%s)", v.ClassHash)
		case StringFrame:
			out += v.Reason
		}
	}
	return out
}
