package events

import (
	"context"

	"github.com/mezonai/powledger/transaction"
)

// FeedTracker subscribes to bus and keeps tracker in step with the ledger
// until ctx is done.
func FeedTracker(ctx context.Context, bus *EventBus, tracker *transaction.TransactionTracker) {
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			switch e := event.(type) {
			case *TransactionAddedToMempool:
				sender := ""
				if e.Transaction() != nil {
					sender = e.Transaction().Sender
				}
				tracker.TrackPending(e.Subject(), sender)
			case *TransactionRejected:
				tracker.MarkRejected(e.Subject(), e.Reason())
			case *TransactionDropped:
				tracker.MarkDropped(e.Subject(), e.Reason())
			case *TransactionIncludedInBlock:
				tracker.MarkMined(e.Subject(), e.BlockIndex(), e.BlockHash())
			}
		}
	}
}
