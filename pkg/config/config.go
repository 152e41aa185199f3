package config

// Package config provides a reusable loader for node configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/vrrb-sim/synnergy-node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// QuorumConfig mirrors core.QuorumConfig's YAML-facing shape.
type QuorumConfig struct {
	FarmerRatio        float64 `mapstructure:"farmer_ratio" json:"farmer_ratio" yaml:"farmer_ratio"`
	HarvesterRatio     float64 `mapstructure:"harvester_ratio" json:"harvester_ratio" yaml:"harvester_ratio"`
	MinerRatio         float64 `mapstructure:"miner_ratio" json:"miner_ratio" yaml:"miner_ratio"`
	HarvesterThreshold int     `mapstructure:"harvester_threshold" json:"harvester_threshold" yaml:"harvester_threshold"`
	FarmerThreshold    int     `mapstructure:"farmer_threshold" json:"farmer_threshold" yaml:"farmer_threshold"`
}

// Config is the unified configuration for a node.
type Config struct {
	ID                     string        `mapstructure:"id" json:"id"`
	Idx                    int           `mapstructure:"idx" json:"idx"`
	DataDir                string        `mapstructure:"data_dir" json:"data_dir"`
	DBPath                 string        `mapstructure:"db_path" json:"db_path"`
	UDPGossipAddress       string        `mapstructure:"udp_gossip_address" json:"udp_gossip_address"`
	RaptorQGossipAddress   string        `mapstructure:"raptorq_gossip_address" json:"raptorq_gossip_address"`
	HTTPAPIAddress         string        `mapstructure:"http_api_address" json:"http_api_address"`
	Bootstrap              bool          `mapstructure:"bootstrap" json:"bootstrap"`
	BootstrapNodeAddresses []string      `mapstructure:"bootstrap_node_addresses" json:"bootstrap_node_addresses"`
	NodeType               string        `mapstructure:"node_type" json:"node_type"`
	QuorumConfig           *QuorumConfig `mapstructure:"quorum_config" json:"quorum_config,omitempty"`
	BootstrapQuorumConfig  *QuorumConfig `mapstructure:"bootstrap_quorum_config" json:"bootstrap_quorum_config,omitempty"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the VRRB_ENVIRONMENT variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("VRRB_ENVIRONMENT", ""))
}
