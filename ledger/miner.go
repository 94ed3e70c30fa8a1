package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/utils"
)

// Miner seals the pending pool on a fixed interval.
type Miner struct {
	ledger    *Ledger
	address   string
	interval  time.Duration
	mineEmpty bool
}

// NewMiner builds a miner crediting address. With mineEmpty unset, ticks with
// an empty pool are skipped.
func NewMiner(l *Ledger, address string, interval time.Duration, mineEmpty bool) *Miner {
	return &Miner{
		ledger:    l,
		address:   address,
		interval:  interval,
		mineEmpty: mineEmpty,
	}
}

// Run mines until ctx is done. A round in progress is cancelled with ctx.
func (m *Miner) Run(ctx context.Context) {
	logx.Info("MINER", fmt.Sprintf("Miner started | address=%s | interval=%v | mine_empty=%v",
		utils.ShortenLog(m.address), m.interval, m.mineEmpty))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info("MINER", "Miner stopped")
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
				logx.Error("MINER", "Mining round failed: ", err)
			}
		}
	}
}

// Tick runs one mining round. It reports whether a block was appended.
func (m *Miner) Tick(ctx context.Context) (bool, error) {
	if !m.mineEmpty && m.ledger.PendingCount() == 0 {
		return false, nil
	}
	if _, err := m.ledger.MinePending(ctx, m.address); err != nil {
		return false, err
	}
	return true, nil
}
