package mempool

import (
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(amount uint64) *transaction.Transaction {
	return transaction.NewTransfer("a", "b", uint256.NewInt(amount), uint256.NewInt(0))
}

func TestMempool_AddAndBatch(t *testing.T) {
	mp := NewMempool(0)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, mp.Add(tx(i)))
	}
	assert.Equal(t, 5, mp.Len())

	batch := mp.GetBatch(3)
	require.Len(t, batch, 3)
	for i, got := range batch {
		assert.Equal(t, uint64(i+1), got.Amount.Uint64())
	}
	assert.Len(t, mp.GetBatch(0), 5)
	assert.Len(t, mp.GetBatch(10), 5)
	assert.Equal(t, 5, mp.Len())
}

func TestMempool_RemoveBatch(t *testing.T) {
	mp := NewMempool(0)
	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, mp.Add(tx(i)))
	}
	snapshot := mp.GetBatch(0)

	mp.RemoveBatch(2)
	rest := mp.GetBatch(0)
	require.Len(t, rest, 2)
	assert.Equal(t, uint64(3), rest[0].Amount.Uint64())
	assert.Len(t, snapshot, 4, "earlier batches are unaffected")

	mp.RemoveBatch(0)
	assert.Equal(t, 2, mp.Len())
	mp.RemoveBatch(10)
	assert.Equal(t, 0, mp.Len())
	assert.Nil(t, mp.GetBatch(0))
}

func TestMempool_Capacity(t *testing.T) {
	mp := NewMempool(1)
	require.NoError(t, mp.Add(tx(1)))
	assert.ErrorIs(t, mp.Add(tx(2)), errors.ErrMempoolFull)
	mp.RemoveBatch(1)
	assert.NoError(t, mp.Add(tx(3)))
}

func TestMempool_Nil(t *testing.T) {
	mp := NewMempool(0)
	assert.ErrorIs(t, mp.Add(nil), errors.ErrNilTransaction)
}

func TestMempool_ConcurrentAdd(t *testing.T) {
	mp := NewMempool(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, mp.Add(tx(uint64(i))))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, mp.Len())
}
