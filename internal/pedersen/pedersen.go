// Package pedersen implements the Starknet Pedersen hash over the Stark
// elliptic curve. It lives in the repository alongside the sync engine but,
// like signature verification, is not itself part of the core: the core
// calls through Hash/HashFelt when recomputing a block hash (sync/verify)
// and transaction/state-diff commitments (sync/txcommit, sync/statediff).
package pedersen

import "math/big"

// fieldPrime is the Stark field modulus: 2^251 + 17*2^192 + 1.
var fieldPrime = mustBig("800000000000011000000000000000000000000000000000000000000000001")

// curveAlpha, curveBeta define the short Weierstrass curve y^2 = x^3 + alpha*x + beta.
var (
	curveAlpha = big.NewInt(1)
	curveBeta  = mustBig("6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89")
)

// point is an affine point on the Stark curve.
type point struct {
	x, y *big.Int
}

// shiftPoint and the four generator points used by the official Pedersen
// hash constants table. These are the public constants published for the
// Starknet Pedersen hash function. Every point lies on the curve, and
// together they reproduce the known-answer vector in pedersen_test.go.
var (
	shiftPoint = point{
		x: mustBig("49ee3eba8c1600700ee1b87eb599f16716b0b1022947733551fde4050ca6804"),
		y: mustBig("3ca0cfe4b3bc6ddf346d49d06ea0ed34e621062c0e056c1d0405d266e10268a"),
	}
	p1 = point{
		x: mustBig("234287dcbaffe7f969c748655fca9e58fa8120b6d56eb0c1080d17957ebe47b"),
		y: mustBig("3b056f100f96fb21e889527d41f4e39940135dd7a6c94cc6ed0268ee89e5615"),
	}
	p2 = point{
		x: mustBig("4fa56f376c83db33f9dab2656558f3399099ec1de5e3018b7a6932dba8aa378"),
		y: mustBig("3fa0984c931c9e38113e0c0e47e4401562761f92a7a23b45168f4e80ff5b54d"),
	}
	p3 = point{
		x: mustBig("4ba4cc166be8dec764910f75b45f74b40c690c74709e90f3aa372f0bd2d6997"),
		y: mustBig("40301cf5c1751f4b971e46c4ede85fcac5c59a5ce5ae7c48151f27b24b219c"),
	}
	p4 = point{
		x: mustBig("54302dcb0e6cc1c6e44cca8f61a63bb2ca65048d53fb325d36ff12c49a58202"),
		y: mustBig("1b77b3e37d13504b348046268d8ae25ce98ad783c25561a879dcc77e99c2426"),
	}
)

func mustBig(hexStr string) *big.Int {
	n, ok := new(big.Int).SetString(hexStr, 16)
	if !ok {
		panic("pedersen: invalid constant " + hexStr)
	}
	return n
}

func (p point) add(q point) point {
	if p.x.Sign() == 0 && p.y.Sign() == 0 {
		return q
	}
	if q.x.Sign() == 0 && q.y.Sign() == 0 {
		return p
	}
	var lambda *big.Int
	if p.x.Cmp(q.x) == 0 {
		// Doubling: lambda = (3x^2 + alpha) / 2y
		num := new(big.Int).Mul(p.x, p.x)
		num.Mul(num, big.NewInt(3))
		num.Add(num, curveAlpha)
		den := new(big.Int).Lsh(p.y, 1)
		lambda = divMod(num, den)
	} else {
		num := new(big.Int).Sub(q.y, p.y)
		den := new(big.Int).Sub(q.x, p.x)
		lambda = divMod(num, den)
	}
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.x)
	x3.Sub(x3, q.x)
	x3.Mod(x3, fieldPrime)

	y3 := new(big.Int).Sub(p.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.y)
	y3.Mod(y3, fieldPrime)

	return point{x: x3, y: y3}
}

// divMod computes a/b mod fieldPrime via modular inverse.
func divMod(a, b *big.Int) *big.Int {
	bInv := new(big.Int).ModInverse(new(big.Int).Mod(b, fieldPrime), fieldPrime)
	r := new(big.Int).Mul(a, bInv)
	return r.Mod(r, fieldPrime)
}

// multiply computes base scaled by the given bits (MSB-first is irrelevant
// here; bits are consumed in the order given, matching the low-to-high
// segment construction used by Hash below), via double-and-add.
func multiply(base point, bits []bool) point {
	var acc point
	accIsZero := true
	cur := base
	for _, bit := range bits {
		if bit {
			if accIsZero {
				acc = cur
				accIsZero = false
			} else {
				acc = acc.add(cur)
			}
		}
		cur = cur.add(cur)
	}
	return acc
}

// Hash computes the Starknet Pedersen hash of two field elements, given as
// big-endian bit slices (MSB-first, 251 bits) the way internal/felt.Felt
// exposes them via ViewBits.
//
// The algorithm decomposes each operand into a low 248-bit and high 3-bit
// segment (4 segments total across a and b) and accumulates
// shiftPoint + p1*a_low + p2*a_high + p3*b_low + p4*b_high, returning the
// x-coordinate of the result.
func Hash(aBits, bBits []bool) *big.Int {
	aLSBFirst := reverse(aBits)
	bLSBFirst := reverse(bBits)

	result := shiftPoint
	result = result.add(multiply(p1, aLSBFirst[:248]))
	result = result.add(multiply(p2, aLSBFirst[248:252]))
	result = result.add(multiply(p3, bLSBFirst[:248]))
	result = result.add(multiply(p4, bLSBFirst[248:252]))

	return result.x
}

func reverse(bits []bool) []bool {
	// Pad MSB-first 251 bits to 252 with a leading false, then reverse to
	// LSB-first for the double-and-add scalar multiplication.
	padded := make([]bool, 252)
	copy(padded[252-len(bits):], bits)
	out := make([]bool, len(padded))
	for i, b := range padded {
		out[len(padded)-1-i] = b
	}
	return out
}
