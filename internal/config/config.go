// Package config loads the daemon's TOML configuration file and exposes
// its defaults, mirroring go-ethereum's loadConfig/gethConfig pattern.
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// Config is the full on-disk configuration for the sync daemon.
type Config struct {
	Node    Node
	Sync    Sync
	Metrics Metrics
}

// Node holds identity and networking settings for this peer.
type Node struct {
	// PeerID is this node's own identity, excluded from every capability
	// provider set the peer directory returns.
	PeerID string
	// DataDir is where header/transaction/state-diff/class/event data are
	// stored.
	DataDir string
	// ListenAddr is the HTTP listen address of the NewHead websocket
	// server (served at /ws).
	ListenAddr string
	// LogLevel is one of "error", "warn", "info", "debug", "trace".
	LogLevel string
}

// Sync controls the range and pacing of the five streaming protocols.
type Sync struct {
	// StartBlock is loaded from the config file, but no component reads
	// it: cmd/starksyncd takes the sync range from its --head flag.
	StartBlock uint64
	// StopBlock, if non-zero, halts syncing once reached (0 means "follow
	// the chain head indefinitely").
	StopBlock uint64
	// PeerDirectoryTTLSeconds is how long a capability's peer list is
	// cached before being refetched.
	PeerDirectoryTTLSeconds uint64
	// PublicKeyHex is the sequencer public key used for (best-effort)
	// header signature verification.
	PublicKeyHex string
	// Peers maps every known peer id to its dialable websocket address,
	// statically bootstrapping the transport (see p2p/rrclient.WSClient
	// and p2p/peerdir).
	Peers map[string]string
	// Capabilities lists which of the five protocol names each peer
	// advertises, keyed by peer id. A peer absent from this map is
	// assumed to serve all five.
	Capabilities map[string][]string
}

// Metrics controls the Prometheus exporter.
type Metrics struct {
	Enabled bool
	Addr    string
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Node: Node{
			DataDir:    "./starksyncd-data",
			ListenAddr: "0.0.0.0:30303",
			LogLevel:   "info",
		},
		Sync: Sync{
			PeerDirectoryTTLSeconds: 60,
		},
		Metrics: Metrics{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// tomlSettings mirrors go-ethereum's field-name-is-the-key convention so
// config files can be written with plain capitalized TOML keys, and
// rejects unknown keys with a field-qualified error instead of silently
// ignoring a typo.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load reads path into a copy of Defaults(), returning the merged config.
func Load(path string) (Config, error) {
	cfg := Defaults()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = fmt.Errorf("%s, %w", path, err)
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
