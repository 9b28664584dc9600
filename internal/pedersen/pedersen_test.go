package pedersen

import (
	"testing"

	"github.com/starksyncd/starksyncd/internal/felt"
)

func TestHashIsDeterministic(t *testing.T) {
	a, _ := felt.FromHex("0x1")
	b, _ := felt.FromHex("0x2")
	h1 := HashFelt(a, b)
	h2 := HashFelt(a, b)
	if !h1.Equal(h2) {
		t.Fatalf("pedersen hash is not deterministic: %s != %s", h1, h2)
	}
}

func TestHashDependsOnOperandOrder(t *testing.T) {
	a, _ := felt.FromHex("0x1")
	b, _ := felt.FromHex("0x2")
	if HashFelt(a, b).Equal(HashFelt(b, a)) {
		t.Fatal("pedersen hash should not be commutative in general")
	}
}

// TestKnownAnswer checks a published pedersen_hash known-answer vector.
func TestKnownAnswer(t *testing.T) {
	a, err := felt.FromHex("0x03d937c035c878245caf64531a5756109c53068da139362728feb561405371cb")
	if err != nil {
		t.Fatal(err)
	}
	b, err := felt.FromHex("0x0208a0a10250e382e1e4bbe2880906c2791bf6275695e02fbbc6aeff9cd8b31a")
	if err != nil {
		t.Fatal(err)
	}
	want, err := felt.FromHex("0x030e480bed5fe53fa909cc0f8c4d99b8f9f2c016be4c41e13a4848797979c662")
	if err != nil {
		t.Fatal(err)
	}

	got := HashFelt(a, b)
	if !got.Equal(want) {
		t.Fatalf("pedersen_hash mismatch: got %s want %s", got, want)
	}
}
