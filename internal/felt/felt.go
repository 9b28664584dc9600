// Package felt implements the 251-bit Starknet field element that backs
// every opaque hash, commitment, and address type used by the sync engine.
package felt

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned when a value exceeds the 251-bit field element
// range, i.e. any of the top 5 bits of the big-endian encoding are set.
var ErrOverflow = errors.New("felt: value exceeds 251-bit maximum")

// Felt is a 251-bit Starknet field element, stored as a 256-bit unsigned
// integer with the top 5 bits always zero.
type Felt struct {
	inner uint256.Int
}

// Zero is the additive identity.
var Zero = Felt{}

// FromBytesBE builds a Felt from a 32-byte big-endian encoding. It rejects
// any input whose top 5 bits are nonzero, matching the original StarkHash
// invariant.
func FromBytesBE(b [32]byte) (Felt, error) {
	if b[0]&0b1111_1000 != 0 {
		return Felt{}, ErrOverflow
	}
	var f Felt
	f.inner.SetBytes(b[:])
	return f, nil
}

// MustFromBytesBE is FromBytesBE that panics on overflow; for constants.
func MustFromBytesBE(b [32]byte) Felt {
	f, err := FromBytesBE(b)
	if err != nil {
		panic(err)
	}
	return f
}

// Bytes returns the big-endian 32-byte encoding of f.
func (f Felt) Bytes() [32]byte {
	return f.inner.Bytes32()
}

// FromHex parses a "0x"-prefixed (or bare) hex string, up to 64 nibbles.
func FromHex(s string) (Felt, error) {
	s = trimHexPrefix(s)
	if len(s) > 64 {
		return Felt{}, fmt.Errorf("felt: hex string too long: %d nibbles", len(s))
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	var buf [32]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex: %w", err)
	}
	copy(buf[32-len(decoded):], decoded)
	return FromBytesBE(buf)
}

// FromUint64 builds a Felt from a uint64 value.
func FromUint64(v uint64) Felt {
	var f Felt
	f.inner.SetUint64(v)
	return f
}

// MustFromHex is FromHex that panics on error; for constants.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// String renders f as a "0x"-prefixed hex string with no leading zeros
// (except for the zero value, which renders as "0x0").
func (f Felt) String() string {
	return "0x" + f.inner.Hex()[2:]
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool {
	return f.inner.IsZero()
}

// Equal reports whether f and g represent the same field element.
func (f Felt) Equal(g Felt) bool {
	return f.inner.Eq(&g.inner)
}

// Uint256 exposes the underlying fixed-width integer for arithmetic in
// other packages (e.g. internal/pedersen) that need field operations.
func (f Felt) Uint256() uint256.Int {
	return f.inner
}

// FromUint256 wraps a uint256.Int as a Felt, truncating to 251 bits by
// masking the top 5 bits. Used internally by modular-arithmetic code that
// guarantees its inputs are already field elements.
func FromUint256(u uint256.Int) Felt {
	b := u.Bytes32()
	b[0] &= 0b0000_0111
	var f Felt
	f.inner.SetBytes(b[:])
	return f
}

// ViewBits returns the 251 least-significant bits of f in MSB order.
func (f Felt) ViewBits() []bool {
	b := f.Bytes()
	bits := make([]bool, 251)
	full := b[:]
	// Skip the top 5 bits of the first byte (256-251=5).
	idx := 0
	for i, byt := range full {
		start := 0
		if i == 0 {
			start = 5
		}
		for bit := start; bit < 8; bit++ {
			bits[idx] = (byt>>(7-bit))&1 == 1
			idx++
		}
	}
	return bits
}

// MarshalJSON renders f as a quoted "0x"-prefixed hex string.
func (f Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.String() + `"`), nil
}

// UnmarshalJSON parses a quoted "0x"-prefixed hex string into f.
func (f *Felt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalText renders f the same way MarshalJSON does, so a Felt can be
// used as a map key in encoding/json (which requires TextMarshaler for
// non-string, non-integer key types).
func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText is the MarshalText counterpart.
func (f *Felt) UnmarshalText(data []byte) error {
	parsed, err := FromHex(string(data))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FromBits builds a Felt from up to 251 bits in MSB order, left-padding
// with zero bits as needed. Mirrors StarkHash::from_bits.
func FromBits(bits []bool) (Felt, error) {
	if len(bits) > 251 {
		return Felt{}, ErrOverflow
	}
	var b [32]byte
	// Place bits so that they form the 251 low-order bits of the 256-bit
	// big-endian buffer.
	offset := 256 - len(bits)
	for i, bit := range bits {
		if !bit {
			continue
		}
		pos := offset + i
		b[pos/8] |= 1 << (7 - uint(pos%8))
	}
	return FromBytesBE(b)
}
