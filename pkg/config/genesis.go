package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vrrb-sim/synnergy-node/pkg/utils"
)

// GenesisConfig seeds a bootstrap node from a YAML file: the initial
// account distribution the genesis block carries, plus the bootstrap
// quorum shape.
type GenesisConfig struct {
	Distribution map[string]uint64 `yaml:"distribution"` // hex address -> initial credits
	Quorum       QuorumConfig      `yaml:"quorum"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*GenesisConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, "read genesis file")
	}
	var g GenesisConfig
	if err := yaml.Unmarshal(b, &g); err != nil {
		return nil, utils.Wrap(err, "parse genesis file")
	}
	if g.Quorum.HarvesterThreshold < 0 || g.Quorum.FarmerThreshold < 0 {
		return nil, fmt.Errorf("genesis: thresholds must be non-negative")
	}
	return &g, nil
}
