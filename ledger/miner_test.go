package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiner_TickSkipsEmptyPool(t *testing.T) {
	l := newTestLedger(t, 0, 1)
	m := NewMiner(l, "miner", time.Second, false)

	mined, err := m.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, mined)
	assert.Equal(t, uint64(0), l.Height())

	alice := newKey(t)
	require.NoError(t, l.AddTransaction(signedTransfer(t, alice, "bob", 1, 0)))
	mined, err = m.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, mined)
	assert.Equal(t, uint64(1), l.Height())
}

func TestMiner_MineEmpty(t *testing.T) {
	l := newTestLedger(t, 0, 1)
	m := NewMiner(l, "miner", time.Second, true)

	mined, err := m.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, mined)
}

func TestMiner_RunStopsWithContext(t *testing.T) {
	l := newTestLedger(t, 0, 1)
	m := NewMiner(l, "miner", 5*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return l.Height() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("miner did not stop")
	}
	assert.True(t, l.IsChainValid())
}
