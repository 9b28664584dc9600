package pedersen

import (
	"math/big"

	"github.com/starksyncd/starksyncd/internal/felt"
)

// HashFelt computes the Starknet Pedersen hash of two field elements and
// returns the result as a Felt.
func HashFelt(a, b felt.Felt) felt.Felt {
	result := Hash(a.ViewBits(), b.ViewBits())
	return feltFromBig(result)
}

func feltFromBig(n *big.Int) felt.Felt {
	var buf [32]byte
	n.FillBytes(buf[:])
	buf[0] &= 0b0000_0111
	f, err := felt.FromBytesBE(buf)
	if err != nil {
		// Unreachable: the mask above always clears the overflow bits.
		panic(err)
	}
	return f
}
