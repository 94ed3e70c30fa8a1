package transaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionTracker_Lifecycle(t *testing.T) {
	tr := NewTransactionTracker()

	assert.Equal(t, TxStatusUnknown, tr.Status("h1").Status)

	tr.TrackPending("h1", "alice")
	tr.TrackPending("h2", "alice")
	tr.TrackPending("h1", "alice")
	assert.Equal(t, int64(2), tr.PendingCount())
	assert.Equal(t, []string{"h1", "h2"}, tr.PendingBySender("alice"))

	tr.MarkMined("h1", 3, "blockhash")
	got := tr.Status("h1")
	assert.Equal(t, TxStatusMined, got.Status)
	assert.Equal(t, uint64(3), got.BlockIndex)
	assert.Equal(t, "blockhash", got.BlockHash)
	assert.Equal(t, []string{"h2"}, tr.PendingBySender("alice"))

	tr.MarkDropped("h2", "bad signature")
	assert.Equal(t, TxStatusRejected, tr.Status("h2").Status)
	assert.Equal(t, "bad signature", tr.Status("h2").Reason)
	assert.Nil(t, tr.PendingBySender("alice"))
	assert.Equal(t, int64(0), tr.PendingCount())
}

func TestTransactionTracker_RejectedWithoutPending(t *testing.T) {
	tr := NewTransactionTracker()
	tr.MarkRejected("h", "missing signature")
	assert.Equal(t, TxStatusRejected, tr.Status("h").Status)
	assert.Equal(t, int64(0), tr.PendingCount())
}

func TestTransactionTracker_RejectedCopyKeepsState(t *testing.T) {
	tr := NewTransactionTracker()
	tr.TrackPending("pending", "alice")
	tr.TrackPending("mined", "alice")
	tr.MarkMined("mined", 2, "b")

	tr.MarkRejected("pending", "signature verification failed")
	tr.MarkRejected("mined", "signature verification failed")

	assert.Equal(t, TxStatusPending, tr.Status("pending").Status)
	assert.Equal(t, TxStatusMined, tr.Status("mined").Status)
	assert.Equal(t, int64(1), tr.PendingCount())
	assert.Equal(t, []string{"pending"}, tr.PendingBySender("alice"))

	tr.MarkRejected("other", "missing signature")
	tr.MarkRejected("other", "signature too large")
	assert.Equal(t, "signature too large", tr.Status("other").Reason)
}

func TestTransactionTracker_Prune(t *testing.T) {
	tr := NewTransactionTracker()
	tr.TrackPending("pending", "alice")
	tr.TrackPending("done", "alice")
	tr.MarkMined("done", 1, "b")

	assert.Equal(t, 0, tr.Prune(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, tr.Prune(time.Now().Add(time.Second)))
	assert.Equal(t, TxStatusUnknown, tr.Status("done").Status)
	assert.Equal(t, TxStatusPending, tr.Status("pending").Status)
}
