package interfaces

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/block"
	"github.com/mezonai/powledger/transaction"
)

// Ledger interface defines the methods required by the RPC and miner loop
type Ledger interface {
	// AddTransaction verifies tx and appends it to the pending pool
	AddTransaction(tx *transaction.Transaction) error
	// MinePending seals the pending pool into a new block rewarding miner
	MinePending(ctx context.Context, miner string) (*block.Block, error)
	// Validate returns the first integrity failure of the chain, or nil
	Validate() error

	Blocks() []*block.Block
	Block(index uint64) (*block.Block, bool)
	Height() uint64
	Difficulty() int
	BaseReward() *uint256.Int
	PendingTransactions() []*transaction.Transaction
	PendingCount() int
}
