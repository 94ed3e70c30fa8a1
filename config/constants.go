package config

const (
	DefaultDifficulty          = 2
	DefaultBaseReward          = 1
	DefaultCancelCheckInterval = 10_000
	DefaultMineIntervalMs      = 5_000
	DefaultListenAddr          = "127.0.0.1:8545"
	DefaultMetricsAddr         = "127.0.0.1:9100"
	DefaultMaxRequestsPerSec   = 20

	// MaxDifficulty is the number of hex digits in a SHA-256 digest.
	MaxDifficulty = 64
)

// DefaultChainConfig is used when no genesis.yml is supplied.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		Difficulty: DefaultDifficulty,
		BaseReward: "1",
	}
}
