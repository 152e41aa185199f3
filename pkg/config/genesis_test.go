package config

import (
	"testing"

	"github.com/vrrb-sim/synnergy-node/internal/testutil"
)

func TestLoadGenesis(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer sb.Cleanup()

	yaml := []byte(`
distribution:
  "0x0102030405060708090a0b0c0d0e0f1011121314": 100000
  "0x00000000000000000000000000000000000000ff": 50
quorum:
  farmer_ratio: 0.5
  harvester_ratio: 0.25
  miner_ratio: 0.25
  harvester_threshold: 3
  farmer_threshold: 2
`)
	if err := sb.WriteFile("genesis.yaml", yaml, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	g, err := LoadGenesis(sb.Path("genesis.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(g.Distribution) != 2 {
		t.Fatalf("distribution: %v", g.Distribution)
	}
	if g.Distribution["0x0102030405060708090a0b0c0d0e0f1011121314"] != 100000 {
		t.Fatalf("credits: %v", g.Distribution)
	}
	if g.Quorum.HarvesterThreshold != 3 || g.Quorum.FarmerRatio != 0.5 {
		t.Fatalf("quorum: %+v", g.Quorum)
	}
}

func TestLoadGenesisMissingFile(t *testing.T) {
	if _, err := LoadGenesis("/nonexistent/genesis.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadGenesisRejectsNegativeThreshold(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer sb.Cleanup()

	if err := sb.WriteFile("bad.yaml", []byte("quorum:\n  harvester_threshold: -1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadGenesis(sb.Path("bad.yaml")); err == nil {
		t.Fatal("expected validation error")
	}
}
