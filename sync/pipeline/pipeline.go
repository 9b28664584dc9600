// Package pipeline wires the gap finder, the five stream engines,
// header continuity and verification, and the persist stage into one
// orchestrated sync run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/JekaMas/workerpool"
	"golang.org/x/sync/errgroup"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xevent"
	"github.com/starksyncd/starksyncd/internal/xlog"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
	"github.com/starksyncd/starksyncd/storage"
	"github.com/starksyncd/starksyncd/sync/continuity"
	"github.com/starksyncd/starksyncd/sync/engine"
	gapfinder "github.com/starksyncd/starksyncd/sync/gap"
	"github.com/starksyncd/starksyncd/sync/persist"
	"github.com/starksyncd/starksyncd/sync/statediff"
	"github.com/starksyncd/starksyncd/sync/txcommit"
	"github.com/starksyncd/starksyncd/sync/verify"
)

// DefaultStoragePoolSize bounds how many persist calls may block on
// storage I/O at once, keeping a slow disk from starving the cooperative
// stream-consumption goroutines that feed it.
const DefaultStoragePoolSize = 4

// Pipeline orchestrates one gap-filling sync pass across all five
// protocol streams. Construct via New.
type Pipeline struct {
	Store storage.Store
	Client rrclient.Client
	// PeersFor resolves the peer set for a given protocol capability
	// (one of the rrclient.Protocol* constants), so each stream queries
	// its own capability rather than sharing one undifferentiated list.
	PeersFor func(capability string) engine.PeersFunc
	Verify   *verify.Stage
	Persist  *persist.Stage
	Heads    *xevent.Feed[types.BlockNumber]

	OnPeerFault func(error)
	log         *xlog.Logger

	// storagePool is the dedicated blocking pool persist work is
	// dispatched onto, so a slow storage backend only ever ties up a
	// bounded number of goroutines rather than one per in-flight block.
	storagePool *workerpool.WorkerPool
}

// New builds a Pipeline from its collaborators, with a storage-dispatch
// pool sized to DefaultStoragePoolSize.
func New(store storage.Store, client rrclient.Client, peersFor func(capability string) engine.PeersFunc, v *verify.Stage, p *persist.Stage) *Pipeline {
	return &Pipeline{
		Store:       store,
		Client:      client,
		PeersFor:    peersFor,
		Verify:      v,
		Persist:     p,
		log:         xlog.Root().Named("pipeline"),
		storagePool: workerpool.New(DefaultStoragePoolSize),
	}
}

// Close stops the storage-dispatch pool, waiting for any in-flight
// persist call to finish.
func (p *Pipeline) Close() {
	p.storagePool.StopWait()
}

// persistOnPool runs fn on the dedicated storage pool and blocks until it
// completes, returning its error.
func (p *Pipeline) persistOnPool(fn func() error) error {
	var err error
	p.storagePool.SubmitWait(func() { err = fn() })
	return err
}

// fault reports a peer-attributable error detected here in the pipeline
// rather than inside sync/engine (a commitment mismatch can only be
// checked once a block's payload is fully assembled downstream of the
// engine), mirroring the engine's own OnPeerFault reporting.
func (p *Pipeline) fault(err error) {
	p.log.Debug("peer fault", "err", err)
	if p.OnPeerFault != nil {
		p.OnPeerFault(err)
	}
}

// RunGap finds and fills the next header gap at or below head, then
// syncs transactions, state diffs, events, and classes for the filled
// range. It returns without error (and without doing anything) if no
// gap is found.
func (p *Pipeline) RunGap(ctx context.Context, head types.BlockNumber, headHash types.BlockHash) error {
	g, ok, err := gapfinder.Find(ctx, p.Store, head, headHash)
	if err != nil {
		return fmt.Errorf("pipeline: finding gap: %w", err)
	}
	if !ok {
		return nil
	}

	if err := p.syncHeaders(ctx, g); err != nil {
		return fmt.Errorf("pipeline: syncing headers for gap %s: %w", g, err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return p.syncTransactions(gctx, g.Tail, g.Head) })
	group.Go(func() error { return p.syncEvents(gctx, g.Tail, g.Head) })
	group.Go(func() error { return p.syncStateDiffs(gctx, g.Tail, g.Head) })
	if err := group.Wait(); err != nil {
		return err
	}

	// Classes depend on a block's declared-class count, which only
	// becomes known once that block's state diff is persisted, so they
	// run after the state-diff stream rather than alongside it.
	return p.syncClasses(ctx, g.Tail, g.Head)
}

// syncHeaders walks backward from g.Head to g.Tail, checking continuity
// and hash/signature verification as each header arrives, then persists
// the whole batch at once (matching the all-or-nothing Persist contract).
func (p *Pipeline) syncHeaders(ctx context.Context, g types.HeaderGap) error {
	e := &engine.HeaderEngine{
		Peers:       p.PeersFor(string(rrclient.ProtocolHeaders)),
		Send:        p.Client.SendHeaders,
		OnPeerFault: p.OnPeerFault,
	}
	cont := continuity.NewBackward(g.Head, g.HeadHash)

	results := e.Run(ctx, g.Tail, g.Head, true)
	batch := make([]types.SignedBlockHeader, 0, int(g.Head-g.Tail)+1)
	for r := range results {
		if r.Err != nil {
			return r.Err
		}
		if err := cont.Check(r.Item); err != nil {
			return err
		}
		if err := p.Verify.Verify(r.Item); err != nil {
			return err
		}
		batch = append(batch, r.Item)
	}

	if err := p.persistOnPool(func() error { return p.Persist.Headers(ctx, batch) }); err != nil {
		return err
	}
	if p.Heads != nil {
		for _, sh := range batch {
			p.Heads.Send(sh.Header.Number)
		}
	}
	return nil
}

// headerCounts returns a CountSource reading already-persisted headers
// in ascending order starting at start, extracting a stream's declared
// sub-item count and commitment from each.
func headerCounts[C any](store storage.Store, start types.BlockNumber, extract func(types.BlockHeader) (uint64, C)) engine.CountSource[C] {
	next := start
	return func(ctx context.Context) (uint64, C, error) {
		tx, err := store.Begin(ctx)
		if err != nil {
			var zero C
			return 0, zero, err
		}
		defer tx.Rollback()

		header, ok, err := tx.BlockHeader(next)
		if err != nil {
			var zero C
			return 0, zero, err
		}
		if !ok {
			var zero C
			return 0, zero, fmt.Errorf("pipeline: header %d not yet persisted", next)
		}
		next++
		count, commitment := extract(header)
		return count, commitment, nil
	}
}

func (p *Pipeline) syncTransactions(ctx context.Context, start, stop types.BlockNumber) error {
	counts := headerCounts(p.Store, start, func(h types.BlockHeader) (uint64, types.TransactionCommitment) {
		return h.TransactionCount, h.TransactionCommitment
	})
	e := engine.NewTransactionEngine(p.PeersFor(string(rrclient.ProtocolTransactions)), p.Client.SendTransactions, counts, p.OnPeerFault)
	for r := range e.Run(ctx, start, stop) {
		if r.Err != nil {
			return r.Err
		}
		if got := txcommit.Commitment(r.Item.Transactions); !got.Equal(r.Item.ExpectedCommitment) {
			err := &types.BadCommitmentError{Peer: r.Peer, BlockNumber: r.Block}
			p.fault(err)
			return err
		}
		if err := p.persistOnPool(func() error { return p.Persist.Transactions(ctx, r.Block, r.Item) }); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) syncEvents(ctx context.Context, start, stop types.BlockNumber) error {
	counts := headerCounts(p.Store, start, func(h types.BlockHeader) (uint64, types.EventCommitment) {
		return h.EventCount, h.EventCommitment
	})
	e := engine.NewEventEngine(p.PeersFor(string(rrclient.ProtocolEvents)), p.Client.SendEvents, counts, p.OnPeerFault)
	for r := range e.Run(ctx, start, stop) {
		if r.Err != nil {
			return r.Err
		}
		if err := p.persistOnPool(func() error { return p.Persist.Events(ctx, r.Block, r.Item) }); err != nil {
			return err
		}
	}
	return nil
}

// syncStateDiffs sources its CountSource from StateDiffCommitmentAndLength
// rather than the header itself: unlike transaction/event counts, the
// state-diff length and commitment are not plain BlockHeader fields;
// Persist.Headers stores them separately from the signed header.
func (p *Pipeline) syncStateDiffs(ctx context.Context, start, stop types.BlockNumber) error {
	next := start
	counts := func(ctx context.Context) (uint64, types.StateDiffCommitment, error) {
		tx, err := p.Store.Begin(ctx)
		if err != nil {
			return 0, felt.Zero, err
		}
		defer tx.Rollback()
		commitment, length, ok, err := tx.StateDiffCommitmentAndLength(next)
		if err != nil {
			return 0, felt.Zero, err
		}
		if !ok {
			return 0, felt.Zero, fmt.Errorf("pipeline: state diff meta for %d not yet persisted", next)
		}
		next++
		return length, commitment, nil
	}

	e := engine.NewStateDiffEngine(p.PeersFor(string(rrclient.ProtocolStateDiffs)), p.Client.SendStateDiffs, counts, p.OnPeerFault)
	for r := range e.Run(ctx, start, stop) {
		if r.Err != nil {
			return r.Err
		}
		if got := statediff.Commitment(r.Item.StateDiff); !got.Equal(r.Item.ExpectedCommitment) {
			err := &types.BadCommitmentError{Peer: r.Peer, BlockNumber: r.Block}
			p.fault(err)
			return err
		}
		if err := p.persistOnPool(func() error { return p.Persist.StateUpdate(ctx, r.Block, r.Item) }); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) syncClasses(ctx context.Context, start, stop types.BlockNumber) error {
	next := start
	counts := engine.ClassCountSource(func(ctx context.Context) (uint64, error) {
		tx, err := p.Store.Begin(ctx)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()
		update, ok, err := tx.StateUpdate(next)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("pipeline: state update for %d not yet persisted", next)
		}
		next++
		return uint64(len(update.DeclaredCairoClasses) + len(update.DeclaredSierraClasses)), nil
	})

	e := engine.NewClassEngine(p.PeersFor(string(rrclient.ProtocolClasses)), p.Client.SendClasses, counts, p.OnPeerFault)
	for r := range e.Run(ctx, start, stop) {
		if r.Err != nil {
			return r.Err
		}
		if err := p.persistOnPool(func() error { return p.Persist.Classes(ctx, r.Block, r.Item) }); err != nil {
			return err
		}
	}
	return nil
}
