// Package peerdir maintains the capability -> peer-set directory shared
// by every protocol stream engine: a small TTL cache in front of the
// transport's capability-provider lookup, so that each of the five
// engines doesn't hammer the transport on every peer rotation.
package peerdir

import (
	"context"
	"math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xlog"
)

// Transport resolves the peers currently advertising a capability. It is
// the only thing the directory needs from the network layer.
type Transport interface {
	// SelfID is our own peer id, which a correctly behaving transport
	// always includes among the providers of any capability it serves
	// locally.
	SelfID() types.PeerID
	CapabilityProviders(ctx context.Context, capability string) (mapset.Set[types.PeerID], error)
}

type entry struct {
	peers      mapset.Set[types.PeerID]
	lastUpdate time.Time
}

// Directory is a reader-preferring, TTL-cached capability directory. The
// zero value is not usable; construct with New.
type Directory struct {
	mu        sync.RWMutex
	transport Transport
	ttl       time.Duration
	cache     map[string]entry
	log       *xlog.Logger
	rngMu     sync.Mutex
	rng       *rand.Rand
}

// DefaultTTL is the cache lifetime applied by New when none is given.
const DefaultTTL = 60 * time.Second

// New builds a Directory backed by transport, caching each capability's
// peer set for ttl. A ttl of zero selects DefaultTTL.
func New(transport Transport, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		transport: transport,
		ttl:       ttl,
		cache:     make(map[string]entry),
		log:       xlog.Root().Named("peerdir"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PeersFor returns the peers currently advertising capability, in a
// freshly shuffled order. On a cache hit (within ttl) it returns the
// cached set; on a miss it refreshes from the transport, removes our own
// id, and repopulates the cache before returning.
//
// The read lock is taken first; only a miss drops it and takes the write
// lock, so the common case never blocks other readers against each
// other.
func (d *Directory) PeersFor(ctx context.Context, capability string) ([]types.PeerID, error) {
	d.mu.RLock()
	e, ok := d.cache[capability]
	fresh := ok && time.Since(e.lastUpdate) <= d.ttl
	var peers mapset.Set[types.PeerID]
	if fresh {
		peers = e.peers.Clone()
	}
	d.mu.RUnlock()

	if !fresh {
		fetched, err := d.transport.CapabilityProviders(ctx, capability)
		if err != nil {
			return nil, err
		}
		self := d.transport.SelfID()
		hadSelf := fetched.Contains(self)
		if !hadSelf {
			d.log.Warn("capability provider set missing own peer id", "capability", capability, "self", self)
		}
		fetched.Remove(self)

		d.mu.Lock()
		d.cache[capability] = entry{peers: fetched.Clone(), lastUpdate: time.Now()}
		d.mu.Unlock()

		peers = fetched
	}

	out := peers.ToSlice()
	d.shuffle(out)
	return out, nil
}

func (d *Directory) shuffle(peers []types.PeerID) {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	d.rng.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
}

// Invalidate drops the cached entry for capability, forcing the next
// PeersFor call to refresh from the transport. Used by callers that
// observe every cached peer is faulty and want an immediate refresh
// rather than waiting out the TTL.
func (d *Directory) Invalidate(capability string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, capability)
}
