package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/block"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/events"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/mempool"
	"github.com/mezonai/powledger/monitoring"
	"github.com/mezonai/powledger/transaction"
	"github.com/mezonai/powledger/utils"
)

// Ledger is the append-only chain of mined blocks together with the pool of
// records waiting for the next block.
//
// mu guards chain and pending. Mining holds miningMu for the whole round but
// only takes mu to snapshot the pool and to commit the block, so submissions
// and readers are not blocked by the nonce search. Readers always see the
// state from before or after a commit.
type Ledger struct {
	mu       sync.RWMutex
	miningMu sync.Mutex

	chain   []*block.Block
	pending *mempool.Mempool

	difficulty  int
	baseReward  *uint256.Int
	checkEvery  uint64
	lastBlockAt time.Time

	eventBus *events.EventBus
}

func NewLedger(cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.Difficulty < 0 || cfg.Difficulty > block.MaxDifficulty {
		return nil, fmt.Errorf("%w: got %d", errors.ErrInvalidDifficulty, cfg.Difficulty)
	}
	reward := uint256.NewInt(0)
	if cfg.BaseReward != nil {
		reward.Set(cfg.BaseReward)
	}

	l := &Ledger{
		pending:    mempool.NewMempool(cfg.MaxPendingTxs),
		difficulty: cfg.Difficulty,
		baseReward: reward,
		checkEvery: cfg.CancelCheckInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.createGenesis()
	return l, nil
}

// createGenesis seeds the chain with the transaction-less sentinel block.
func (l *Ledger) createGenesis() {
	genesis := block.NewGenesisBlock()
	l.chain = []*block.Block{genesis}
	l.lastBlockAt = genesis.Timestamp

	monitoring.SetBlockHeight(0)
	monitoring.SetMempoolSize(0)
	logx.Info("LEDGER", fmt.Sprintf("Genesis block created | hash=%s | difficulty=%d | base_reward=%s",
		genesis.Hash, l.difficulty, utils.Uint256ToString(l.baseReward)))
}

func (l *Ledger) Difficulty() int {
	return l.difficulty
}

func (l *Ledger) BaseReward() *uint256.Int {
	return new(uint256.Int).Set(l.baseReward)
}

// AddTransaction admits a record into the pending pool. Invalid records are
// rejected with a *errors.ValidationError and leave the pool untouched.
// Records are kept in submission order with no deduplication and no balance
// check. The ledger stores its own copy of tx.
func (l *Ledger) AddTransaction(tx *transaction.Transaction) error {
	if tx == nil {
		return errors.ErrNilTransaction
	}
	monitoring.IncreaseIngressTxCount()

	owned := tx.Clone()
	txHash := owned.Hash()
	if reason := owned.Verify(); reason != "" {
		monitoring.RecordRejectedTx(rejectedReason(reason))
		logx.Warn("LEDGER", fmt.Sprintf("Rejected tx %s: %s", utils.ShortenLog(txHash), reason))
		l.publish(events.NewTransactionRejected(txHash, reason))
		return &errors.ValidationError{TxHash: txHash, Reason: reason}
	}

	l.mu.Lock()
	err := l.pending.Add(owned)
	size := l.pending.Len()
	l.mu.Unlock()

	if err != nil {
		monitoring.RecordRejectedTx(monitoring.TxMempoolFull)
		logx.Warn("LEDGER", fmt.Sprintf("Rejected tx %s: %v", utils.ShortenLog(txHash), err))
		l.publish(events.NewTransactionRejected(txHash, err.Error()))
		return err
	}

	monitoring.SetMempoolSize(size)
	logx.Debug("LEDGER", fmt.Sprintf("Added tx %s to pending pool | pending=%d", utils.ShortenLog(txHash), size))
	l.publish(events.NewTransactionAddedToMempool(txHash, owned.Clone()))
	return nil
}

// MinePending drains the pending pool into a new block, credits minerAddress
// with the base reward plus the fees of the included records, mines the block
// and appends it. Records that no longer verify are dropped for good.
//
// When ctx is cancelled during the nonce search the chain and the pool are left
// as they were and the context error is returned. Records submitted while the
// search runs stay pending for the next round.
func (l *Ledger) MinePending(ctx context.Context, minerAddress string) (*block.Block, error) {
	if minerAddress == "" {
		return nil, errors.ErrEmptyMinerAddress
	}

	l.miningMu.Lock()
	defer l.miningMu.Unlock()

	l.mu.RLock()
	batch := l.pending.GetBatch(0)
	index := uint64(len(l.chain))
	prevHash := l.chain[len(l.chain)-1].Hash
	l.mu.RUnlock()

	included := make([]*transaction.Transaction, 0, len(batch)+1)
	fees := make([]*uint256.Int, 0, len(batch))
	for _, tx := range batch {
		if reason := tx.Verify(); reason != "" {
			txHash := tx.Hash()
			monitoring.RecordRejectedTx(monitoring.TxDroppedAtMining)
			logx.Warn("LEDGER", fmt.Sprintf("Dropping pending tx %s: %s", utils.ShortenLog(txHash), reason))
			l.publish(events.NewTransactionDropped(txHash, reason))
			continue
		}
		included = append(included, tx)
		fees = append(fees, tx.Fee)
	}

	totalFees, feeOverflow := utils.SumUint256(fees...)
	reward, rewardOverflow := utils.SumUint256(l.baseReward, totalFees)
	if feeOverflow || rewardOverflow {
		return nil, fmt.Errorf("block %d: reward overflows 256 bits", index)
	}
	included = append(included, transaction.NewReward(minerAddress, reward))

	blk := block.AssembleBlock(index, prevHash, included)
	logx.Info("MINER", fmt.Sprintf("Mining block %d | txs=%d | difficulty=%d", index, len(included), l.difficulty))

	start := time.Now()
	attempts, err := blk.Mine(ctx, l.difficulty, l.checkEvery)
	elapsed := time.Since(start)
	if err != nil {
		monitoring.IncreaseMiningCancelled()
		logx.Warn("MINER", fmt.Sprintf("Mining block %d aborted after %d attempts (%v): %v", index, attempts, elapsed, err))
		return nil, fmt.Errorf("mine block %d: %w", index, err)
	}
	monitoring.RecordMining(elapsed, attempts)

	l.mu.Lock()
	l.chain = append(l.chain, blk)
	l.pending.RemoveBatch(len(batch))
	pendingLeft := l.pending.Len()
	prevBlockAt := l.lastBlockAt
	l.lastBlockAt = blk.Timestamp
	l.mu.Unlock()

	monitoring.SetBlockHeight(blk.Index)
	monitoring.SetMempoolSize(pendingLeft)
	monitoring.RecordTxInBlock(len(included))
	monitoring.RecordBlockTime(blk.Timestamp.Sub(prevBlockAt))
	monitoring.AddFeesCollected(totalFees.Float64())

	logx.Info("MINER", fmt.Sprintf("Block %d mined | hash=%s | nonce=%d | attempts=%d | rate=%.0f H/s | reward=%s | pending=%d",
		blk.Index, blk.Hash, blk.Nonce, attempts, utils.HashRate(attempts, elapsed), utils.Uint256ToString(reward), pendingLeft))

	for _, txHash := range blk.TxHashes() {
		l.publish(events.NewTransactionIncludedInBlock(txHash, blk.Index, blk.Hash))
	}
	l.publish(events.NewBlockMined(blk.Index, blk.Hash, len(blk.Transactions), blk.Nonce))

	return blk.Clone(), nil
}

// Height is the index of the newest block.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.chain) - 1)
}

// Blocks returns a copy of the whole chain.
func (l *Ledger) Blocks() []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneBlocks(l.chain)
}

// Block returns a copy of the block at index.
func (l *Ledger) Block(index uint64) (*block.Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return nil, false
	}
	return l.chain[index].Clone(), true
}

func (l *Ledger) LastBlock() *block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Clone()
}

// PendingTransactions returns copies of the pending records in submission order.
func (l *Ledger) PendingTransactions() []*transaction.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneTxs(l.pending.GetBatch(0))
}

func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pending.Len()
}

// Snapshot is a consistent copy of the chain and the pending pool.
type Snapshot struct {
	Blocks  []*block.Block             `json:"blocks"`
	Pending []*transaction.Transaction `json:"pending"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Blocks:  cloneBlocks(l.chain),
		Pending: cloneTxs(l.pending.GetBatch(0)),
	}
}

func (l *Ledger) publish(event events.LedgerEvent) {
	if l.eventBus != nil {
		l.eventBus.Publish(event)
	}
}

func rejectedReason(reason string) monitoring.TxRejectedReason {
	switch reason {
	case transaction.ReasonMissingSignature, transaction.ReasonBadSignature, transaction.ReasonSignatureTooLarge:
		return monitoring.TxInvalidSignature
	default:
		return monitoring.TxMalformed
	}
}

func cloneBlocks(blocks []*block.Block) []*block.Block {
	out := make([]*block.Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

func cloneTxs(txs []*transaction.Transaction) []*transaction.Transaction {
	out := make([]*transaction.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
	}
	return out
}
