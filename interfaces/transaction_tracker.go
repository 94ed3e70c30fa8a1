package interfaces

import "github.com/mezonai/powledger/transaction"

// Read side of the transaction status tracker
type TransactionTrackerInterface interface {
	Status(txHash string) transaction.TxStatusRecord
	PendingBySender(sender string) []string
}
