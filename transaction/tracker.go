package transaction

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/utils"
)

type TxStatus string

const (
	TxStatusUnknown  TxStatus = "unknown"
	TxStatusPending  TxStatus = "pending"
	TxStatusMined    TxStatus = "mined"
	TxStatusRejected TxStatus = "rejected"
)

// TxStatusRecord is the last known lifecycle state of a record id.
type TxStatusRecord struct {
	Status     TxStatus  `json:"status"`
	BlockIndex uint64    `json:"block_index,omitempty"`
	BlockHash  string    `json:"block_hash,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TransactionTracker follows records from submission until they are mined or
// rejected. Terminal records are kept for a retention window so clients can
// still query them after the fact.
type TransactionTracker struct {
	// statuses maps record hash to *TxStatusRecord
	statuses sync.Map

	// senderTxs maps sender to the hashes it still has pending
	senderTxs sync.Map
	senderMu  sync.Mutex

	pendingCount int64
}

func NewTransactionTracker() *TransactionTracker {
	return &TransactionTracker{}
}

// TrackPending records that tx entered the pending pool.
func (t *TransactionTracker) TrackPending(txHash string, sender string) {
	prev, loaded := t.statuses.Swap(txHash, &TxStatusRecord{Status: TxStatusPending, UpdatedAt: time.Now()})
	if loaded && prev.(*TxStatusRecord).Status == TxStatusPending {
		// duplicate submission of the same record
		return
	}
	atomic.AddInt64(&t.pendingCount, 1)

	t.senderMu.Lock()
	var txHashes []string
	if existing, ok := t.senderTxs.Load(sender); ok {
		txHashes = existing.([]string)
	}
	t.senderTxs.Store(sender, append(txHashes, txHash))
	t.senderMu.Unlock()

	logx.Debug("TRACKER", fmt.Sprintf("Tracking pending transaction: %s (sender: %s)",
		utils.ShortenLog(txHash), utils.ShortenLog(sender)))
}

// MarkMined moves a record to the mined state.
func (t *TransactionTracker) MarkMined(txHash string, blockIndex uint64, blockHash string) {
	t.finish(txHash, &TxStatusRecord{
		Status:     TxStatusMined,
		BlockIndex: blockIndex,
		BlockHash:  blockHash,
		UpdatedAt:  time.Now(),
	})
}

// MarkRejected records a submission that never entered the pool. The record
// id covers the canonical bytes only, so a rejected copy of a pending or mined
// record shares its id; those states are left alone.
func (t *TransactionTracker) MarkRejected(txHash string, reason string) {
	rec := &TxStatusRecord{
		Status:    TxStatusRejected,
		Reason:    reason,
		UpdatedAt: time.Now(),
	}
	for {
		prev, loaded := t.statuses.LoadOrStore(txHash, rec)
		if !loaded || prev.(*TxStatusRecord).Status != TxStatusRejected {
			return
		}
		if t.statuses.CompareAndSwap(txHash, prev, rec) {
			return
		}
	}
}

// MarkDropped moves a pending record to the rejected state when the miner
// discards it.
func (t *TransactionTracker) MarkDropped(txHash string, reason string) {
	t.finish(txHash, &TxStatusRecord{
		Status:    TxStatusRejected,
		Reason:    reason,
		UpdatedAt: time.Now(),
	})
}

func (t *TransactionTracker) finish(txHash string, rec *TxStatusRecord) {
	prev, loaded := t.statuses.Swap(txHash, rec)
	if !loaded || prev.(*TxStatusRecord).Status != TxStatusPending {
		return
	}
	atomic.AddInt64(&t.pendingCount, -1)

	t.senderMu.Lock()
	defer t.senderMu.Unlock()
	t.senderTxs.Range(func(key, value any) bool {
		updated, isRemoved := remove(value.([]string), txHash)
		if !isRemoved {
			return true
		}
		if len(updated) == 0 {
			t.senderTxs.Delete(key)
		} else {
			t.senderTxs.Store(key, updated)
		}
		return false
	})
}

// Status returns the last known state of txHash.
func (t *TransactionTracker) Status(txHash string) TxStatusRecord {
	v, ok := t.statuses.Load(txHash)
	if !ok {
		return TxStatusRecord{Status: TxStatusUnknown}
	}
	return *v.(*TxStatusRecord)
}

// PendingBySender lists the hashes sender still has in the pending pool.
func (t *TransactionTracker) PendingBySender(sender string) []string {
	t.senderMu.Lock()
	defer t.senderMu.Unlock()
	v, ok := t.senderTxs.Load(sender)
	if !ok {
		return nil
	}
	hashes := v.([]string)
	out := make([]string, len(hashes))
	copy(out, hashes)
	return out
}

func (t *TransactionTracker) PendingCount() int64 {
	return atomic.LoadInt64(&t.pendingCount)
}

// Prune drops terminal records last updated before cutoff and returns how many
// were removed.
func (t *TransactionTracker) Prune(cutoff time.Time) int {
	removed := 0
	t.statuses.Range(func(key, value any) bool {
		rec := value.(*TxStatusRecord)
		if rec.Status != TxStatusPending && rec.UpdatedAt.Before(cutoff) {
			t.statuses.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func remove(slice []string, item string) ([]string, bool) {
	for i, v := range slice {
		if v == item {
			out := make([]string, 0, len(slice)-1)
			out = append(out, slice[:i]...)
			return append(out, slice[i+1:]...), true
		}
	}
	return slice, false
}
