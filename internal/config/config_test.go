package config

import "testing"

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load("testdata/config.toml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.LogLevel != "debug" {
		t.Errorf("expected LogLevel debug, got %q", cfg.Node.LogLevel)
	}
	if cfg.Sync.StartBlock != 100 {
		t.Errorf("expected StartBlock 100, got %d", cfg.Sync.StartBlock)
	}
	if cfg.Sync.PeerDirectoryTTLSeconds != 30 {
		t.Errorf("expected PeerDirectoryTTLSeconds 30, got %d", cfg.Sync.PeerDirectoryTTLSeconds)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("testdata/does-not-exist.toml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
