package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/powledger/config"
	"github.com/mezonai/powledger/events"
	"github.com/mezonai/powledger/exception"
	"github.com/mezonai/powledger/jsonrpc"
	"github.com/mezonai/powledger/ledger"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/monitoring"
	"github.com/mezonai/powledger/ratelimit"
	"github.com/mezonai/powledger/transaction"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout      = 10 * time.Second
	trackerPruneInterval = 10 * time.Minute
	trackerRetention     = time.Hour
)

type NodeConfig struct {
	GenesisPath    string
	ConfigPath     string
	MinerAddress   string
	MinerKeyFile   string
	ListenAddr     string
	MetricsAddr    string
	LogFile        string
	DisableMetrics bool
}

var nodeConfig NodeConfig

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	Long: `Run a single ledger node: JSON-RPC for submissions and reads, a periodic
miner crediting the configured miner address, and a prometheus endpoint.

Examples:
  # Run with the shipped config and a miner key file
  run --miner-key-file ./keys/miner.hex

  # Run without mining, serving reads and submissions only
  run --genesis config/genesis.yml --config config/config.ini`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(nodeConfig)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&nodeConfig.GenesisPath, "genesis", "config/genesis.yml", "chain parameters file")
	runCmd.Flags().StringVar(&nodeConfig.ConfigPath, "config", "config/config.ini", "runtime configuration file")
	runCmd.Flags().StringVar(&nodeConfig.MinerAddress, "miner-address", "", "public key credited with mining rewards")
	runCmd.Flags().StringVar(&nodeConfig.MinerKeyFile, "miner-key-file", "", "hex private key file whose public key receives mining rewards")
	runCmd.Flags().StringVar(&nodeConfig.ListenAddr, "listen-addr", "", "JSON-RPC listen address (overrides config)")
	runCmd.Flags().StringVar(&nodeConfig.MetricsAddr, "metrics-addr", "", "prometheus listen address (overrides config)")
	runCmd.Flags().StringVar(&nodeConfig.LogFile, "log-file", "", "log file name under ./logs")
	runCmd.Flags().BoolVar(&nodeConfig.DisableMetrics, "disable-metrics", false, "do not serve /metrics")
}

func runNode(nc NodeConfig) error {
	if nc.LogFile != "" {
		logx.SetFilename(nc.LogFile)
	}
	defer logx.Close()

	chainCfg, err := config.LoadGenesisConfig(nc.GenesisPath)
	if err != nil {
		return fmt.Errorf("load genesis config: %w", err)
	}
	mempoolCfg, err := config.LoadMempoolConfig(nc.ConfigPath)
	if err != nil {
		return fmt.Errorf("load mempool config: %w", err)
	}
	minerCfg, err := config.LoadMinerConfig(nc.ConfigPath)
	if err != nil {
		return fmt.Errorf("load miner config: %w", err)
	}
	rpcCfg, err := config.LoadRPCConfig(nc.ConfigPath)
	if err != nil {
		return fmt.Errorf("load rpc config: %w", err)
	}
	if nc.ListenAddr != "" {
		rpcCfg.ListenAddr = nc.ListenAddr
	}
	if nc.MetricsAddr != "" {
		rpcCfg.MetricsAddr = nc.MetricsAddr
	}

	minerAddress, err := resolveMinerAddress(nc, chainCfg)
	if err != nil {
		return err
	}

	ledgerCfg, err := ledger.ConfigFrom(chainCfg, mempoolCfg, minerCfg)
	if err != nil {
		return fmt.Errorf("ledger config: %w", err)
	}
	bus := events.NewEventBus()
	ld, err := ledger.NewLedger(ledgerCfg, ledger.WithEventBus(bus))
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := transaction.NewTransactionTracker()
	exception.SafeGo("TrackerFeed", func() {
		events.FeedTracker(ctx, bus, tracker)
	})
	exception.SafeGo("TrackerPrune", func() {
		pruneTracker(ctx, tracker)
	})

	limiter := ratelimit.NewSubmissionLimiter(rpcCfg.MaxRequestsPerSecond)
	defer limiter.Stop()

	rpcOpts := []jsonrpc.Option{
		jsonrpc.WithTracker(tracker),
		jsonrpc.WithLimiter(limiter),
		jsonrpc.WithMinerAddress(minerAddress),
	}
	if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
		rpcOpts = append(rpcOpts, jsonrpc.WithCORS(corsCfg))
	}
	rpcServer := jsonrpc.NewServer(rpcCfg.ListenAddr, ld, rpcOpts...)
	if err := rpcServer.Start(); err != nil {
		return err
	}

	var metricsServer *http.Server
	if !nc.DisableMetrics {
		metricsServer = startMetricsServer(rpcCfg.MetricsAddr)
	}

	if minerAddress != "" {
		miner := ledger.NewMiner(ld, minerAddress, time.Duration(minerCfg.IntervalMs)*time.Millisecond, minerCfg.MineEmpty)
		exception.SafeGoWithPanic("Miner", func() {
			miner.Run(ctx)
		})
	} else {
		logx.Warn("NODE", "No miner address configured, blocks are only mined through miner.mine")
	}

	logx.Info("NODE", fmt.Sprintf("Node started | rpc=%s | difficulty=%d | height=%d", rpcServer.Addr(), ld.Difficulty(), ld.Height()))
	<-ctx.Done()
	logx.Info("NODE", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logx.Error("NODE", "JSON-RPC shutdown: ", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logx.Error("NODE", "Metrics shutdown: ", err)
		}
	}
	if err := ld.Validate(); err != nil {
		logx.Error("NODE", "Chain failed integrity check at shutdown: ", err)
	}
	return nil
}

// resolveMinerAddress picks the reward address: explicit flag first, then the
// key file, then genesis.yml.
func resolveMinerAddress(nc NodeConfig, chainCfg *config.ChainConfig) (string, error) {
	if nc.MinerAddress != "" {
		return nc.MinerAddress, nil
	}
	if nc.MinerKeyFile != "" {
		key, err := config.LoadSecp256k1PrivKey(nc.MinerKeyFile)
		if err != nil {
			return "", fmt.Errorf("load miner key: %w", err)
		}
		return key.PublicID(), nil
	}
	return chainCfg.MinerAddress, nil
}

func startMetricsServer(addr string) *http.Server {
	monitoring.InitMetrics()
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	srv := &http.Server{Addr: addr, Handler: mux}
	exception.SafeGo("MetricsServer", func() {
		logx.Info("MONITORING", "Serving metrics on ", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("MONITORING", "Metrics server stopped: ", err)
		}
	})
	return srv
}

func pruneTracker(ctx context.Context, tracker *transaction.TransactionTracker) {
	ticker := time.NewTicker(trackerPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := tracker.Prune(time.Now().Add(-trackerRetention)); n > 0 {
				logx.Debug("TRACKER", fmt.Sprintf("Pruned %d finished transactions", n))
			}
		}
	}
}
