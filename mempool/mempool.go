package mempool

import (
	"sync"

	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/transaction"
)

// Mempool provides a thread-safe, insertion-ordered queue of pending records.
// It performs no validation and no deduplication; the ledger decides what may
// enter.
type Mempool struct {
	mu     sync.Mutex
	txs    []*transaction.Transaction
	maxTxs int
}

// NewMempool creates a new, empty mempool. maxTxs <= 0 means unbounded.
func NewMempool(maxTxs int) *Mempool {
	return &Mempool{
		txs:    make([]*transaction.Transaction, 0),
		maxTxs: maxTxs,
	}
}

// Add pushes a transaction into the mempool.
func (m *Mempool) Add(tx *transaction.Transaction) error {
	if tx == nil {
		return errors.ErrNilTransaction
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxTxs > 0 && len(m.txs) >= m.maxTxs {
		return errors.ErrMempoolFull
	}
	m.txs = append(m.txs, tx)
	return nil
}

// Len returns the number of transactions in the mempool.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// GetBatch returns up to max transactions without removing them. max <= 0
// returns everything.
func (m *Mempool) GetBatch(max int) []*transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) == 0 {
		return nil
	}
	if max <= 0 || len(m.txs) < max {
		max = len(m.txs)
	}
	batch := make([]*transaction.Transaction, max)
	copy(batch, m.txs[:max])
	return batch
}

// RemoveBatch removes the first n transactions from the mempool.
func (m *Mempool) RemoveBatch(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= len(m.txs) {
		m.txs = m.txs[:0]
	} else {
		rest := make([]*transaction.Transaction, len(m.txs)-n)
		copy(rest, m.txs[n:])
		m.txs = rest
	}
}

