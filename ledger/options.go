package ledger

import (
	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/config"
	"github.com/mezonai/powledger/events"
)

// Config carries the chain parameters of a Ledger.
type Config struct {
	Difficulty          int
	BaseReward          *uint256.Int
	MaxPendingTxs       int    // <= 0: unbounded
	CancelCheckInterval uint64 // nonces between cancellation checks, 0 disables
}

// DefaultConfig mirrors the defaults of the config package.
func DefaultConfig() Config {
	return Config{
		Difficulty:          config.DefaultDifficulty,
		BaseReward:          uint256.NewInt(config.DefaultBaseReward),
		CancelCheckInterval: config.DefaultCancelCheckInterval,
	}
}

// ConfigFrom merges file-based configuration into a ledger Config.
func ConfigFrom(chain *config.ChainConfig, mp *config.MempoolConfig, miner *config.MinerConfig) (Config, error) {
	cfg := DefaultConfig()
	if chain != nil {
		if err := chain.Validate(); err != nil {
			return cfg, err
		}
		reward, err := chain.BaseRewardInt()
		if err != nil {
			return cfg, err
		}
		cfg.Difficulty = chain.Difficulty
		cfg.BaseReward = reward
	}
	if mp != nil {
		cfg.MaxPendingTxs = mp.MaxTxs
	}
	if miner != nil {
		cfg.CancelCheckInterval = miner.CancelCheckInterval
	}
	return cfg, nil
}

type Option func(*Ledger)

// WithEventBus publishes pool and mining events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(l *Ledger) {
		l.eventBus = bus
	}
}
