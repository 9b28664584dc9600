// Command starksyncd runs the five-stream block sync daemon: it repeatedly
// finds the next missing header range, fills it and its transaction,
// state-diff, class, and event streams, and serves a NewHead websocket
// feed and a Prometheus exporter while it does.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/urfave/cli/v2"

	"github.com/starksyncd/starksyncd/internal/config"
	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/metrics"
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xevent"
	"github.com/starksyncd/starksyncd/internal/xlog"
	"github.com/starksyncd/starksyncd/p2p/peerdir"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
	"github.com/starksyncd/starksyncd/rpc/subscription"
	"github.com/starksyncd/starksyncd/storage"
	"github.com/starksyncd/starksyncd/storage/leveldb"
	"github.com/starksyncd/starksyncd/sync/engine"
	"github.com/starksyncd/starksyncd/sync/persist"
	"github.com/starksyncd/starksyncd/sync/pipeline"
	"github.com/starksyncd/starksyncd/sync/verify"
)

var log = xlog.Root().Named("starksyncd")

func main() {
	app := &cli.App{
		Name:  "starksyncd",
		Usage: "sync Starknet block data from a peer network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a TOML config file"},
			&cli.Uint64Flag{Name: "head", Usage: "block number to sync up to this run"},
			&cli.StringFlag{Name: "head-hash", Usage: "hex hash expected for --head"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	lvl, err := xlog.ParseLevel(cfg.Node.LogLevel)
	if err != nil {
		return err
	}
	xlog.SetLevel(lvl)

	store, err := leveldb.Open(cfg.Node.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage at %s: %w", cfg.Node.DataDir, err)
	}
	defer store.Close()

	reg := metrics.New([]string{
		string(rrclient.ProtocolHeaders), string(rrclient.ProtocolTransactions),
		string(rrclient.ProtocolStateDiffs), string(rrclient.ProtocolClasses),
		string(rrclient.ProtocolEvents),
	})
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, reg)
	}

	heads := &xevent.Feed[subscription.NewHead]{}
	subServer := subscription.NewServer(heads)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/ws", subServer)
		if err := http.ListenAndServe(cfg.Node.ListenAddr, mux); err != nil {
			log.Error("subscription server stopped", "err", err)
		}
	}()

	transport := newStaticTransport(cfg)
	dir := peerdir.New(transport, time.Duration(cfg.Sync.PeerDirectoryTTLSeconds)*time.Second)
	client := rrclient.NewWSClient(func(peer types.PeerID) (string, error) {
		addr, ok := cfg.Sync.Peers[string(peer)]
		if !ok {
			return "", fmt.Errorf("no dial address configured for peer %s", peer)
		}
		return addr, nil
	})

	var publicKey verify.SignaturePublicKey
	if cfg.Sync.PublicKeyHex != "" {
		publicKey = felt.MustFromHex(cfg.Sync.PublicKeyHex)
	}
	verifyStage := verify.NewStage(publicKey)
	verifyStage.OnBadSignature = func(number types.BlockNumber) {
		log.Warn("header signature did not verify", "block", number)
	}

	p := pipeline.New(store, client, capabilityPeers(dir, reg), verifyStage, persist.NewStage(store))
	defer p.Close()
	p.OnPeerFault = func(err error) {
		log.Debug("peer fault", "err", err)
	}

	bridgeHeadsToFeed(p, store, heads)

	ctx, cancel := signalContext()
	defer cancel()

	head := types.BlockNumber(c.Uint64("head"))
	var headHash types.BlockHash
	if hex := c.String("head-hash"); hex != "" {
		headHash = felt.MustFromHex(hex)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := p.RunGap(ctx, head, headHash); err != nil {
			log.Error("sync pass failed", "err", err)
			return err
		}
		if cfg.Sync.StopBlock != 0 && uint64(head) >= cfg.Sync.StopBlock {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func serveMetrics(addr string, reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

// bridgeHeadsToFeed wires the pipeline's own head feed (committed
// headers) into the NewHead websocket feed, translating the internal
// block-number event into the wire NewHead shape by reading the just-
// persisted header back out of storage.
func bridgeHeadsToFeed(p *pipeline.Pipeline, store storage.Store, heads *xevent.Feed[subscription.NewHead]) {
	internal := &xevent.Feed[types.BlockNumber]{}
	p.Heads = internal
	ch := make(chan types.BlockNumber, 64)
	internal.Subscribe(ch)
	go func() {
		for number := range ch {
			tx, err := store.Begin(context.Background())
			if err != nil {
				continue
			}
			header, ok, err := tx.BlockHeader(number)
			tx.Rollback()
			if err != nil || !ok {
				continue
			}
			heads.Send(subscription.NewHead{Number: header.Number, Hash: header.Hash})
		}
	}()
}

// capabilityPeers adapts a peerdir.Directory into the engine.PeersFunc
// shape each stream engine needs, counting active peers per capability
// for the metrics registry as it resolves them.
func capabilityPeers(dir *peerdir.Directory, reg *metrics.Registry) func(capability string) engine.PeersFunc {
	return func(capability string) engine.PeersFunc {
		return func(ctx context.Context) ([]types.PeerID, error) {
			peers, err := dir.PeersFor(ctx, capability)
			if err != nil {
				return nil, err
			}
			reg.ActivePeers.WithLabelValues(capability).Set(float64(len(peers)))
			return peers, nil
		}
	}
}

// staticTransport resolves capability providers from the statically
// configured peer/capability lists, for deployments that haven't wired a
// live discovery transport yet.
type staticTransport struct {
	self         types.PeerID
	capabilities map[string][]string
	allPeers     []types.PeerID
}

func newStaticTransport(cfg config.Config) *staticTransport {
	peers := make([]types.PeerID, 0, len(cfg.Sync.Peers))
	for id := range cfg.Sync.Peers {
		peers = append(peers, types.PeerID(id))
	}
	return &staticTransport{
		self:         types.PeerID(cfg.Node.PeerID),
		capabilities: cfg.Sync.Capabilities,
		allPeers:     peers,
	}
}

func (t *staticTransport) SelfID() types.PeerID { return t.self }

func (t *staticTransport) CapabilityProviders(ctx context.Context, capability string) (mapset.Set[types.PeerID], error) {
	out := mapset.NewSet[types.PeerID]()
	for _, peer := range t.allPeers {
		caps, ok := t.capabilities[string(peer)]
		if !ok {
			out.Add(peer)
			continue
		}
		for _, c := range caps {
			if c == capability {
				out.Add(peer)
				break
			}
		}
	}
	return out, nil
}
