package events

import (
	"time"

	"github.com/mezonai/powledger/transaction"
)

// EventType is an enum-like string type for ledger events
type EventType string

const (
	EventTransactionAddedToMempool  EventType = "TransactionAddedToMempool"
	EventTransactionRejected        EventType = "TransactionRejected"
	EventTransactionDropped         EventType = "TransactionDropped"
	EventTransactionIncludedInBlock EventType = "TransactionIncludedInBlock"
	EventBlockMined                 EventType = "BlockMined"
)

// LedgerEvent represents any event that occurs in the ledger. Subject is the
// record hash for transaction events and the block hash for block events.
type LedgerEvent interface {
	Type() EventType
	Timestamp() time.Time
	Subject() string
}

// TransactionAddedToMempool event when a transaction is accepted into the pending pool
type TransactionAddedToMempool struct {
	txHash    string
	tx        *transaction.Transaction
	timestamp time.Time
}

func NewTransactionAddedToMempool(txHash string, tx *transaction.Transaction) *TransactionAddedToMempool {
	return &TransactionAddedToMempool{
		txHash:    txHash,
		tx:        tx,
		timestamp: time.Now(),
	}
}

func (e *TransactionAddedToMempool) Type() EventType {
	return EventTransactionAddedToMempool
}

func (e *TransactionAddedToMempool) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionAddedToMempool) Subject() string {
	return e.txHash
}

func (e *TransactionAddedToMempool) Transaction() *transaction.Transaction {
	return e.tx
}

// TransactionRejected event when a submission fails verification
type TransactionRejected struct {
	txHash    string
	reason    string
	timestamp time.Time
}

func NewTransactionRejected(txHash string, reason string) *TransactionRejected {
	return &TransactionRejected{
		txHash:    txHash,
		reason:    reason,
		timestamp: time.Now(),
	}
}

func (e *TransactionRejected) Type() EventType {
	return EventTransactionRejected
}

func (e *TransactionRejected) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionRejected) Subject() string {
	return e.txHash
}

func (e *TransactionRejected) Reason() string {
	return e.reason
}

// TransactionDropped event when the miner discards a pending record that no
// longer verifies
type TransactionDropped struct {
	txHash    string
	reason    string
	timestamp time.Time
}

func NewTransactionDropped(txHash string, reason string) *TransactionDropped {
	return &TransactionDropped{
		txHash:    txHash,
		reason:    reason,
		timestamp: time.Now(),
	}
}

func (e *TransactionDropped) Type() EventType {
	return EventTransactionDropped
}

func (e *TransactionDropped) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionDropped) Subject() string {
	return e.txHash
}

func (e *TransactionDropped) Reason() string {
	return e.reason
}

// TransactionIncludedInBlock event when a transaction is included in a mined block
type TransactionIncludedInBlock struct {
	txHash     string
	blockIndex uint64
	blockHash  string
	timestamp  time.Time
}

func NewTransactionIncludedInBlock(txHash string, blockIndex uint64, blockHash string) *TransactionIncludedInBlock {
	return &TransactionIncludedInBlock{
		txHash:     txHash,
		blockIndex: blockIndex,
		blockHash:  blockHash,
		timestamp:  time.Now(),
	}
}

func (e *TransactionIncludedInBlock) Type() EventType {
	return EventTransactionIncludedInBlock
}

func (e *TransactionIncludedInBlock) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionIncludedInBlock) Subject() string {
	return e.txHash
}

func (e *TransactionIncludedInBlock) BlockIndex() uint64 {
	return e.blockIndex
}

func (e *TransactionIncludedInBlock) BlockHash() string {
	return e.blockHash
}

// BlockMined event when a block has been mined and appended to the chain
type BlockMined struct {
	index     uint64
	blockHash string
	txCount   int
	nonce     uint64
	timestamp time.Time
}

func NewBlockMined(index uint64, blockHash string, txCount int, nonce uint64) *BlockMined {
	return &BlockMined{
		index:     index,
		blockHash: blockHash,
		txCount:   txCount,
		nonce:     nonce,
		timestamp: time.Now(),
	}
}

func (e *BlockMined) Type() EventType {
	return EventBlockMined
}

func (e *BlockMined) Timestamp() time.Time {
	return e.timestamp
}

func (e *BlockMined) Subject() string {
	return e.blockHash
}

func (e *BlockMined) Index() uint64 {
	return e.index
}

func (e *BlockMined) TxCount() int {
	return e.txCount
}

func (e *BlockMined) Nonce() uint64 {
	return e.nonce
}
