package config

import (
	"fmt"
	"os"

	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/logx"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*ChainConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfgFile := ConfigFile{Chain: *DefaultChainConfig()}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfgFile.Chain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config in %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded chain config: difficulty=%d base_reward=%s", cfgFile.Chain.Difficulty, cfgFile.Chain.BaseReward))
	return &cfgFile.Chain, nil
}

// LoadSecp256k1PrivKey loads a secp256k1 private key from a file (expects hex encoding)
func LoadSecp256k1PrivKey(path string) (*keys.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return keys.PrivateKeyFromHex(string(data))
}

func LoadMempoolConfig(path string) (*MempoolConfig, error) {
	cfg := &MempoolConfig{}
	if err := mapSection(path, "mempool", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMinerConfig reads the [miner] section, filling unset values with defaults.
func LoadMinerConfig(path string) (*MinerConfig, error) {
	cfg := &MinerConfig{
		IntervalMs:          DefaultMineIntervalMs,
		CancelCheckInterval: DefaultCancelCheckInterval,
	}
	if err := mapSection(path, "miner", cfg); err != nil {
		return nil, err
	}
	if cfg.IntervalMs <= 0 {
		return nil, fmt.Errorf("miner.interval_ms must be positive, got %d", cfg.IntervalMs)
	}
	return cfg, nil
}

func LoadRPCConfig(path string) (*RPCConfig, error) {
	cfg := &RPCConfig{
		ListenAddr:           DefaultListenAddr,
		MetricsAddr:          DefaultMetricsAddr,
		MaxRequestsPerSecond: DefaultMaxRequestsPerSec,
	}
	if err := mapSection(path, "rpc", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mapSection(path, section string, v interface{}) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Section(section).MapTo(v); err != nil {
		return fmt.Errorf("map [%s] section: %w", section, err)
	}
	return nil
}
