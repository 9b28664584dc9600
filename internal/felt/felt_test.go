package felt

import (
	"encoding/json"
	"math/rand"
	"testing"
)

func TestFromBytesBERejectsOverflow(t *testing.T) {
	var b [32]byte
	b[0] = 0b0000_1000 // 252nd bit set
	if _, err := FromBytesBE(b); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	var b [32]byte
	for i := range b {
		b[i] = byte(i)
	}
	b[0] &= 0b0000_0111
	f, err := FromBytesBE(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Bytes(); got != b {
		t.Fatalf("round trip mismatch: got %x want %x", got, b)
	}
}

// TestViewBitsRoundTrip checks that from_bits(view_bits(x)) == x for
// arbitrary in-range field elements.
func TestViewBitsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		var b [32]byte
		r.Read(b[:])
		b[0] &= 0b0000_0111
		x, err := FromBytesBE(b)
		if err != nil {
			t.Fatal(err)
		}
		bits := x.ViewBits()
		if len(bits) != 251 {
			t.Fatalf("expected 251 bits, got %d", len(bits))
		}
		y, err := FromBits(bits)
		if err != nil {
			t.Fatal(err)
		}
		if !x.Equal(y) {
			t.Fatalf("round trip mismatch: %s != %s", x, y)
		}
	}
}

func TestFromHex(t *testing.T) {
	f, err := FromHex("0x1")
	if err != nil {
		t.Fatal(err)
	}
	if f.IsZero() {
		t.Fatal("expected nonzero")
	}
	if f.String() != "0x1" {
		t.Fatalf("got %s", f)
	}
}

func TestZeroIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should be zero")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	f := MustFromHex("0xabc123")
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var got Felt
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatalf("round trip mismatch: %s != %s", got, f)
	}
}

// TestUsableAsJSONMapKey exercises MarshalText/UnmarshalText, which
// encoding/json requires of any non-string, non-integer map key type.
func TestUsableAsJSONMapKey(t *testing.T) {
	m := map[Felt]int{MustFromHex("0x1"): 1, MustFromHex("0x2"): 2}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var got map[Felt]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[MustFromHex("0x1")] != 1 || got[MustFromHex("0x2")] != 2 {
		t.Fatalf("round trip mismatch: %v", got)
	}
}
