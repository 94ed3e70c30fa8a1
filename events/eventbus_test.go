package events

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	eb := NewEventBus()
	id1, ch1 := eb.Subscribe()
	id2, ch2 := eb.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, eb.GetTotalSubscriptions())

	eb.Publish(NewBlockMined(1, "hash", 2, 7))

	for _, ch := range []<-chan LedgerEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			mined, ok := ev.(*BlockMined)
			require.True(t, ok)
			assert.Equal(t, EventBlockMined, mined.Type())
			assert.Equal(t, "hash", mined.Subject())
			assert.Equal(t, uint64(1), mined.Index())
			assert.Equal(t, 2, mined.TxCount())
			assert.Equal(t, uint64(7), mined.Nonce())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	eb := NewEventBus()
	id, ch := eb.Subscribe()
	assert.True(t, eb.HasSubscriber(id))

	assert.True(t, eb.Unsubscribe(id))
	assert.False(t, eb.HasSubscriber(id))
	assert.False(t, eb.Unsubscribe(id))

	_, open := <-ch
	assert.False(t, open)
}

func TestEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	eb := NewEventBus()
	_, ch := eb.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*2; i++ {
			eb.Publish(NewTransactionRejected("h", "r"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestFeedTracker(t *testing.T) {
	eb := NewEventBus()
	tracker := transaction.NewTransactionTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go FeedTracker(ctx, eb, tracker)
	require.Eventually(t, func() bool { return eb.GetTotalSubscriptions() == 1 }, time.Second, 5*time.Millisecond)

	tx := transaction.NewTransfer("alice", "bob", nil, nil)
	eb.Publish(NewTransactionAddedToMempool("h1", tx))
	eb.Publish(NewTransactionRejected("h2", "missing signature"))
	eb.Publish(NewTransactionIncludedInBlock("h1", 4, "blockhash"))

	require.Eventually(t, func() bool {
		return tracker.Status("h1").Status == transaction.TxStatusMined &&
			tracker.Status("h2").Status == transaction.TxStatusRejected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(4), tracker.Status("h1").BlockIndex)

	cancel()
	require.Eventually(t, func() bool { return eb.GetTotalSubscriptions() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFeedTracker_RejectedCopyDoesNotOverridePending(t *testing.T) {
	eb := NewEventBus()
	tracker := transaction.NewTransactionTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go FeedTracker(ctx, eb, tracker)
	require.Eventually(t, func() bool { return eb.GetTotalSubscriptions() == 1 }, time.Second, 5*time.Millisecond)

	alice, err := keys.GenerateKey()
	require.NoError(t, err)
	tx := transaction.NewTransfer(alice.PublicID(), "bob", uint256.NewInt(50), uint256.NewInt(2))
	require.NoError(t, tx.Sign(alice))

	forged := tx.Clone()
	forged.Signature = "00"
	require.Equal(t, tx.Hash(), forged.Hash())

	eb.Publish(NewTransactionAddedToMempool(tx.Hash(), tx))
	eb.Publish(NewTransactionRejected(forged.Hash(), forged.Verify()))
	eb.Publish(NewTransactionRejected("marker", "missing signature"))

	require.Eventually(t, func() bool {
		return tracker.Status("marker").Status == transaction.TxStatusRejected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, transaction.TxStatusPending, tracker.Status(tx.Hash()).Status)
	assert.Equal(t, int64(1), tracker.PendingCount())

	eb.Publish(NewTransactionIncludedInBlock(tx.Hash(), 1, "blockhash"))
	eb.Publish(NewTransactionRejected(forged.Hash(), forged.Verify()))
	eb.Publish(NewTransactionRejected("marker2", "missing signature"))

	require.Eventually(t, func() bool {
		return tracker.Status("marker2").Status == transaction.TxStatusRejected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, transaction.TxStatusMined, tracker.Status(tx.Hash()).Status)
	assert.Equal(t, int64(0), tracker.PendingCount())
}

func TestFeedTracker_DroppedRecordIsRejected(t *testing.T) {
	eb := NewEventBus()
	tracker := transaction.NewTransactionTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go FeedTracker(ctx, eb, tracker)
	require.Eventually(t, func() bool { return eb.GetTotalSubscriptions() == 1 }, time.Second, 5*time.Millisecond)

	eb.Publish(NewTransactionAddedToMempool("h1", transaction.NewTransfer("alice", "bob", nil, nil)))
	eb.Publish(NewTransactionDropped("h1", "signature verification failed"))

	require.Eventually(t, func() bool {
		return tracker.Status("h1").Status == transaction.TxStatusRejected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "signature verification failed", tracker.Status("h1").Reason)
	assert.Equal(t, int64(0), tracker.PendingCount())
}
