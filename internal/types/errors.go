package types

import "fmt"

// PeerID is an opaque peer identifier, modeled as a string to stay
// transport-agnostic; p2p/peerdir and p2p/rrclient populate it from
// whatever identity scheme the underlying transport uses (libp2p peer IDs
// in production, synthetic strings in tests).
type PeerID string

// TransportFailedError reports that a peer's connection failed or timed
// out; the caller should try the next peer without penalizing this one
// beyond the ordinary rotation.
type TransportFailedError struct {
	Peer PeerID
	Err  error
}

func (e *TransportFailedError) Error() string {
	return fmt.Sprintf("transport failed talking to peer %s: %v", e.Peer, e.Err)
}

func (e *TransportFailedError) Unwrap() error { return e.Err }

// PrematureFinError reports that a peer sent Fin before its declared
// per-block counter reached zero.
type PrematureFinError struct {
	Peer        PeerID
	BlockNumber BlockNumber
}

func (e *PrematureFinError) Error() string {
	return fmt.Sprintf("peer %s sent Fin before block %d completed", e.Peer, e.BlockNumber)
}

// OverCountError reports that a peer sent more countable sub-items for
// the current block than its header-declared count allows.
type OverCountError struct {
	Peer        PeerID
	BlockNumber BlockNumber
}

func (e *OverCountError) Error() string {
	return fmt.Sprintf("peer %s sent more items than declared for block %d", e.Peer, e.BlockNumber)
}

// BadCommitmentError reports that the commitment recomputed over a
// peer's delivered items did not match the header-declared commitment.
type BadCommitmentError struct {
	Peer        PeerID
	BlockNumber BlockNumber
}

func (e *BadCommitmentError) Error() string {
	return fmt.Sprintf("peer %s sent a payload with bad commitment for block %d", e.Peer, e.BlockNumber)
}

// BadBlockHashError reports that the recomputed block hash did not match
// the header's declared hash. Fatal to the offending item.
type BadBlockHashError struct {
	BlockNumber BlockNumber
	Got, Want   BlockHash
}

func (e BadBlockHashError) Error() string {
	return fmt.Sprintf("block %d hash mismatch: got %s want %s", e.BlockNumber, e.Got, e.Want)
}

// DiscontinuityError reports a broken number/hash linkage between
// consecutive headers, surfaced to the pipeline for possible resync.
type DiscontinuityError struct {
	Reason string
}

func (e DiscontinuityError) Error() string {
	return "header continuity broken: " + e.Reason
}

// CountStreamExhaustedError reports that the auxiliary count/commitment
// stream ended before the engine it feeds finished, a programming or
// storage-layer bug rather than a peer fault.
type CountStreamExhaustedError struct {
	BlockNumber BlockNumber
}

func (e *CountStreamExhaustedError) Error() string {
	return fmt.Sprintf("count stream exhausted before block %d", e.BlockNumber)
}

// IncorrectStateDiffCountError reports that a peer's declared state-diff
// length did not match what was observed while streaming.
type IncorrectStateDiffCountError struct {
	Peer PeerID
}

func (e *IncorrectStateDiffCountError) Error() string {
	return fmt.Sprintf("incorrect state diff count from peer %s", e.Peer)
}

// ClassDefinitionErrorKind distinguishes why a class body failed to parse.
type ClassDefinitionErrorKind uint8

const (
	ClassDefinitionCountMismatch ClassDefinitionErrorKind = iota
	ClassDefinitionCairoError
	ClassDefinitionSierraError
)

// ClassDefinitionError reports a malformed or miscounted class body
// stream from a peer.
type ClassDefinitionError struct {
	Peer PeerID
	Kind ClassDefinitionErrorKind
}

func (e *ClassDefinitionError) Error() string {
	switch e.Kind {
	case ClassDefinitionCountMismatch:
		return fmt.Sprintf("incorrect class definition count from peer %s", e.Peer)
	case ClassDefinitionCairoError:
		return fmt.Sprintf("cairo class definition error from peer %s", e.Peer)
	case ClassDefinitionSierraError:
		return fmt.Sprintf("sierra class definition error from peer %s", e.Peer)
	default:
		return fmt.Sprintf("class definition error from peer %s", e.Peer)
	}
}

// StorageError reports that a storage transaction failed to commit; this
// is always a fatal pipeline error.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// PeerFault is implemented by every error type above that carries the
// offending PeerID, so upstream policy can penalize or ban the peer
// regardless of the concrete error kind.
type PeerFault interface {
	error
	FaultyPeer() PeerID
}

func (e *TransportFailedError) FaultyPeer() PeerID        { return e.Peer }
func (e *PrematureFinError) FaultyPeer() PeerID            { return e.Peer }
func (e *OverCountError) FaultyPeer() PeerID               { return e.Peer }
func (e *BadCommitmentError) FaultyPeer() PeerID           { return e.Peer }
func (e *IncorrectStateDiffCountError) FaultyPeer() PeerID { return e.Peer }
func (e *ClassDefinitionError) FaultyPeer() PeerID         { return e.Peer }
