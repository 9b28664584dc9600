package peerdir

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starksyncd/starksyncd/internal/types"
)

type fakeTransport struct {
	self    types.PeerID
	peers   mapset.Set[types.PeerID]
	fetches int32
}

func (f *fakeTransport) SelfID() types.PeerID { return f.self }

func (f *fakeTransport) CapabilityProviders(ctx context.Context, capability string) (mapset.Set[types.PeerID], error) {
	atomic.AddInt32(&f.fetches, 1)
	return f.peers.Clone(), nil
}

func TestPeersForRemovesSelf(t *testing.T) {
	tr := &fakeTransport{
		self:  "self",
		peers: mapset.NewSet[types.PeerID]("self", "a", "b", "c"),
	}
	d := New(tr, time.Minute)

	peers, err := d.PeersFor(context.Background(), "headers")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range peers {
		if p == "self" {
			t.Fatal("self id leaked into peer set")
		}
	}
	if len(peers) != 3 {
		t.Fatalf("expected 3 peers, got %d", len(peers))
	}
}

func TestPeersForCachesWithinTTL(t *testing.T) {
	tr := &fakeTransport{
		self:  "self",
		peers: mapset.NewSet[types.PeerID]("a", "b"),
	}
	d := New(tr, time.Hour)

	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&tr.fetches); got != 1 {
		t.Fatalf("expected exactly one transport fetch within TTL, got %d", got)
	}
}

func TestPeersForRefreshesAfterTTL(t *testing.T) {
	tr := &fakeTransport{
		self:  "self",
		peers: mapset.NewSet[types.PeerID]("a", "b"),
	}
	d := New(tr, time.Millisecond)

	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&tr.fetches); got != 2 {
		t.Fatalf("expected two transport fetches across TTL expiry, got %d", got)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	tr := &fakeTransport{
		self:  "self",
		peers: mapset.NewSet[types.PeerID]("a", "b"),
	}
	d := New(tr, time.Hour)

	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	d.Invalidate("headers")
	if _, err := d.PeersFor(context.Background(), "headers"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&tr.fetches); got != 2 {
		t.Fatalf("expected a fetch after invalidate, got %d", got)
	}
}

func TestPeersForCachedCallKeepsPeerSetSize(t *testing.T) {
	tr := &fakeTransport{
		self:  "self",
		peers: mapset.NewSet[types.PeerID]("a", "b", "c", "d", "e"),
	}
	d := New(tr, time.Hour)

	first, err := d.PeersFor(context.Background(), "headers")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.PeersFor(context.Background(), "headers")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached peer set changed size: %d vs %d", len(first), len(second))
	}
}
