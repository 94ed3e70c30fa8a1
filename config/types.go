package config

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/utils"
)

// ChainConfig holds the chain parameters from genesis.yml
type ChainConfig struct {
	Difficulty   int    `yaml:"difficulty"`
	BaseReward   string `yaml:"base_reward"`
	MinerAddress string `yaml:"miner_address"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Chain ChainConfig `yaml:"chain"`
}

// Validate checks the difficulty range and that the base reward parses.
func (c *ChainConfig) Validate() error {
	if c.Difficulty < 0 || c.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: got %d", errors.ErrInvalidDifficulty, c.Difficulty)
	}
	if _, err := c.BaseRewardInt(); err != nil {
		return err
	}
	return nil
}

// BaseRewardInt parses BaseReward; an empty value falls back to DefaultBaseReward.
func (c *ChainConfig) BaseRewardInt() (*uint256.Int, error) {
	if c.BaseReward == "" {
		return uint256.NewInt(DefaultBaseReward), nil
	}
	v, err := utils.ParseUint256(c.BaseReward)
	if err != nil {
		return nil, fmt.Errorf("base_reward: %w", err)
	}
	return v, nil
}

type MempoolConfig struct {
	MaxTxs int `ini:"max_txs"`
}

type MinerConfig struct {
	IntervalMs          int    `ini:"interval_ms"`
	CancelCheckInterval uint64 `ini:"cancel_check_interval"`
	MineEmpty           bool   `ini:"mine_empty"`
}

type RPCConfig struct {
	ListenAddr           string `ini:"listen_addr"`
	MetricsAddr          string `ini:"metrics_addr"`
	MaxRequestsPerSecond int    `ini:"max_requests_per_second"`
}
