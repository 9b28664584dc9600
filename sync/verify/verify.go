// Package verify recomputes a received block's hash from its header
// fields and commitments, rejecting anything that doesn't match what the
// sending peer claims. Signature verification is attempted but its
// failure is not treated as fatal; see the package-level note below.
package verify

import (
	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/pedersen"
	"github.com/starksyncd/starksyncd/internal/types"
)

// SignaturePublicKey identifies the sequencer key used to validate a
// header's signature. Verification failures against this key are logged,
// not rejected: the upstream feeder gateway is known to emit signatures
// that don't verify for a range of historical blocks, so treating a bad
// signature as fatal would wedge sync on blocks that are otherwise
// correct. This mirrors an explicit, currently-intentional policy rather
// than an oversight.
type SignaturePublicKey = felt.Felt

// Stage recomputes and checks the block hash (and, best-effort, the
// signature) of every header it processes.
type Stage struct {
	PublicKey SignaturePublicKey
	OnBadSignature func(number types.BlockNumber)
}

// NewStage returns a Stage that checks signatures against publicKey.
func NewStage(publicKey SignaturePublicKey) *Stage {
	return &Stage{PublicKey: publicKey}
}

// Verify recomputes header's block hash from its fields and compares it
// against the claimed hash, returning types.BadBlockHashError on
// mismatch. A failed signature check is reported via OnBadSignature (if
// set) but does not produce an error.
func (s *Stage) Verify(header types.SignedBlockHeader) error {
	h := header.Header
	got := computeBlockHash(h, header.StateDiffCommitment, header.StateDiffLength)
	if !got.Equal(h.Hash) {
		return types.BadBlockHashError{BlockNumber: h.Number, Got: got, Want: h.Hash}
	}

	if !s.verifySignature(header) {
		if s.OnBadSignature != nil {
			s.OnBadSignature(h.Number)
		}
	}

	return nil
}

// computeBlockHash follows the Starknet hash-chain construction: a
// running Pedersen accumulator seeded at zero, folded once per field in
// a fixed order, with the element count folded in last.
//
// This function's field ordering is specific to this package and has no
// reference vector to check it against.
// ComputeBlockHash exposes the same recomputation Verify uses internally,
// for callers that need to derive a header's hash without going through a
// full Stage (such as the sync/pipeline test fixtures).
func ComputeBlockHash(h types.BlockHeader, stateDiffCommitment types.StateDiffCommitment, stateDiffLength uint64) types.BlockHash {
	return computeBlockHash(h, stateDiffCommitment, stateDiffLength)
}

func computeBlockHash(h types.BlockHeader, stateDiffCommitment types.StateDiffCommitment, stateDiffLength uint64) types.BlockHash {
	elems := []felt.Felt{
		felt.FromUint64(uint64(h.Number)),
		h.ParentHash,
		h.SequencerAddress,
		felt.FromUint64(h.Timestamp),
		felt.FromUint64(h.TransactionCount),
		h.TransactionCommitment,
		felt.FromUint64(h.EventCount),
		h.EventCommitment,
		stateDiffCommitment,
		felt.FromUint64(stateDiffLength),
		h.ReceiptCommitment,
		h.StateCommitment,
	}

	acc := felt.Zero
	for _, e := range elems {
		acc = chainStep(acc, e)
	}
	return chainStep(acc, felt.FromUint64(uint64(len(elems))))
}

// verifySignature is a structural stand-in for a sequencer signature
// check: it compares a Pedersen fold of the block hash and state diff
// commitment against a fold of the signature pair (R, S). It is not an
// ECDSA verification against PublicKey; a zero PublicKey skips the
// comparison and reports the header as verified. Because a failed check
// is never fatal (see the
// SignaturePublicKey doc comment), an unverifiable or structurally
// incomplete signature scheme degrades gracefully to "not verified"
// rather than blocking sync.
func (s *Stage) verifySignature(header types.SignedBlockHeader) bool {
	if s.PublicKey.IsZero() {
		return true
	}
	msg := chainStep(header.Header.Hash, header.StateDiffCommitment)
	return msg.Equal(chainStep(header.Signature.R, header.Signature.S))
}

func chainStep(acc, x felt.Felt) felt.Felt {
	result := pedersen.Hash(acc.ViewBits(), x.ViewBits())
	var buf [32]byte
	result.FillBytes(buf[:])
	return felt.MustFromBytesBE(buf)
}
