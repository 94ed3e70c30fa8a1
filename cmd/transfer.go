package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mezonai/powledger/config"
	"github.com/mezonai/powledger/jsonrpc"
	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/transaction"
	"github.com/mezonai/powledger/utils"
	"github.com/spf13/cobra"
)

type TransferConfig struct {
	PrivateKey     string
	PrivateKeyFile string
	NodeURL        string
	To             string
	Amount         string
	Fee            string
	Kwh            uint64
	Source         string
	Wait           time.Duration
	Verbose        bool
}

var transferConfig TransferConfig

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer [flags]",
	Short: "Sign a transfer and submit it to a node",
	Long: `This command signs a transfer record with the sender's secp256k1 key and submits
it to the node's pending pool. The private key can be provided either directly
via --private-key or via a file using --private-key-file. Passing --kwh or
--source turns the record into an energy trade.

Examples:
  # Transfer 1000 with a fee of 2 using a private key file
  transfer -t 02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5 -a 1_000 --fee 2 -f /path/to/key.hex

  # Sell 12 kWh of solar energy and wait for the record to be mined
  transfer -t 02c6...09ee5 -a 30 --kwh 12 --source solar -p "your-private-key-here" --wait 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := transfer(cmd.Context(), transferConfig); err != nil {
			logx.Error("TRANSFER CLI", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.PersistentFlags().StringVarP(&transferConfig.PrivateKeyFile, "private-key-file", "f", "", "sender private key file")
	transferCmd.PersistentFlags().StringVarP(&transferConfig.PrivateKey, "private-key", "p", "", "sender private key in hex")
	transferCmd.PersistentFlags().StringVarP(&transferConfig.NodeURL, "node-url", "u", "http://127.0.0.1:8545", "node JSON-RPC URL")
	transferCmd.PersistentFlags().StringVarP(&transferConfig.To, "to", "t", "", "public key of recipient")
	transferCmd.PersistentFlags().StringVarP(&transferConfig.Amount, "amount", "a", "", "amount")
	transferCmd.PersistentFlags().StringVar(&transferConfig.Fee, "fee", "0", "fee paid to the miner")
	transferCmd.PersistentFlags().Uint64Var(&transferConfig.Kwh, "kwh", 0, "energy traded in kWh")
	transferCmd.PersistentFlags().StringVar(&transferConfig.Source, "source", "", "energy source")
	transferCmd.PersistentFlags().DurationVar(&transferConfig.Wait, "wait", 0, "wait up to this long for the record to be mined")
	transferCmd.PersistentFlags().BoolVarP(&transferConfig.Verbose, "verbose", "v", false, "verbose output")
}

// buildTransfer creates and signs the record described by tc.
func buildTransfer(tc TransferConfig, key *keys.PrivateKey) (*transaction.Transaction, error) {
	amount, err := utils.ParseUint256(tc.Amount)
	if err != nil {
		return nil, fmt.Errorf("could not parse amount string: %w", err)
	}
	fee, err := utils.ParseUint256(tc.Fee)
	if err != nil {
		return nil, fmt.Errorf("could not parse fee string: %w", err)
	}

	var tx *transaction.Transaction
	if tc.Kwh > 0 || tc.Source != "" {
		tx = transaction.NewEnergyTrade(key.PublicID(), tc.To, amount, fee, transaction.EnergyTrade{Kwh: tc.Kwh, Source: tc.Source})
	} else {
		tx = transaction.NewTransfer(key.PublicID(), tc.To, amount, fee)
	}
	if err := tx.Sign(key); err != nil {
		return nil, err
	}
	return tx, nil
}

func transfer(ctx context.Context, tc TransferConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tc.To == "" {
		return fmt.Errorf("recipient is required")
	}

	if tc.Verbose {
		logx.Debug("TRANSFER CLI", "Loading sender private key...")
	}
	key, err := loadSenderPrivateKey(tc)
	if err != nil {
		return fmt.Errorf("failed to load sender private key: %w", err)
	}

	tx, err := buildTransfer(tc, key)
	if err != nil {
		return err
	}

	client := jsonrpc.NewClient(tc.NodeURL)
	defer client.Close()

	if tc.Verbose {
		logx.Debug("TRANSFER CLI", fmt.Sprintf("Sending transaction to %s: %s", tc.NodeURL, tx.CanonicalBytes()))
	}
	txHash, err := client.AddTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	fmt.Println(txHash)

	if tc.Wait <= 0 {
		return nil
	}
	return waitForTransaction(ctx, client, txHash, tc.Wait)
}

// waitForTransaction polls the node until txHash leaves the pending state.
func waitForTransaction(ctx context.Context, client *jsonrpc.Client, txHash string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s still pending: %w", txHash, ctx.Err())
		case <-ticker.C:
			status, err := client.TxStatus(ctx, txHash)
			if err != nil {
				return fmt.Errorf("failed to get transaction status: %w", err)
			}
			switch transaction.TxStatus(status.Status) {
			case transaction.TxStatusMined:
				logx.Info("TRANSFER CLI", fmt.Sprintf("Transaction %s mined in block %d (%s)", txHash, status.BlockIndex, status.BlockHash))
				return nil
			case transaction.TxStatusRejected:
				return fmt.Errorf("transaction %s rejected: %s", txHash, status.Reason)
			}
		}
	}
}

// loadSenderPrivateKey loads the key from config, which is set by command flags
// the private key is originally in hex format
func loadSenderPrivateKey(tc TransferConfig) (*keys.PrivateKey, error) {
	if tc.PrivateKey != "" {
		return keys.PrivateKeyFromHex(tc.PrivateKey)
	}
	if tc.PrivateKeyFile == "" {
		return nil, fmt.Errorf("either --private-key or --private-key-file is required")
	}
	return config.LoadSecp256k1PrivKey(tc.PrivateKeyFile)
}
