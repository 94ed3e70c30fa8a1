package block

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strings"
	"time"

	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/transaction"
)

// GenesisPrevHash is the previous hash recorded in the first block.
const GenesisPrevHash = "0"

// MaxDifficulty is the length of a hex SHA-256 digest.
const MaxDifficulty = sha256.Size * 2

type Block struct {
	Index        uint64                     `json:"index"`
	Timestamp    time.Time                  `json:"timestamp"`
	Transactions []*transaction.Transaction `json:"transactions"`
	PreviousHash string                     `json:"previous_hash"`
	Nonce        uint64                     `json:"nonce"`
	Hash         string                     `json:"hash"` // hex digest of every field above
}

// AssembleBlock builds an unmined block with nonce 0 and its initial hash.
func AssembleBlock(
	index uint64,
	prevHash string,
	txs []*transaction.Transaction,
) *Block {
	b := &Block{
		Index:        index,
		Timestamp:    time.Now(),
		Transactions: txs,
		PreviousHash: prevHash,
	}
	b.Hash = b.ComputeHash()
	return b
}

// NewGenesisBlock returns the transaction-less first block.
func NewGenesisBlock() *Block {
	return AssembleBlock(0, GenesisPrevHash, []*transaction.Transaction{})
}

// ComputeHash hashes index, timestamp, transactions (canonical form), previous
// hash and nonce in that order. Integers are big-endian; variable-length
// fields are prefixed with their length.
func (b *Block) ComputeHash() string {
	h := sha256.New()
	buf := make([]byte, 8)
	// Index
	writeUint64(h, buf, b.Index)
	// Timestamp (UnixNano)
	writeUint64(h, buf, uint64(b.Timestamp.UnixNano()))
	// Transactions
	writeUint64(h, buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		writeBytes(h, buf, tx.CanonicalBytes())
	}
	// PreviousHash
	writeBytes(h, buf, []byte(b.PreviousHash))
	// Nonce
	writeUint64(h, buf, b.Nonce)
	return hex.EncodeToString(h.Sum(nil))
}

func writeUint64(h hash.Hash, buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
	h.Write(buf)
}

func writeBytes(h hash.Hash, buf []byte, data []byte) {
	writeUint64(h, buf, uint64(len(data)))
	h.Write(data)
}

// MeetsDifficulty reports whether the first difficulty hex digits are '0'.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// Mine increments the nonce from its current value until the hash meets the
// difficulty. ctx is polled every checkEvery attempts; 0 never polls. On
// cancellation the block keeps its last consistent nonce/hash pair and the
// context error is returned. attempts counts recomputed hashes.
func (b *Block) Mine(ctx context.Context, difficulty int, checkEvery uint64) (attempts uint64, err error) {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return 0, errors.ErrInvalidDifficulty
	}
	for !MeetsDifficulty(b.Hash, difficulty) {
		if checkEvery > 0 && attempts%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return attempts, err
			}
		}
		b.Nonce++
		b.Hash = b.ComputeHash()
		attempts++
	}
	return attempts, nil
}

// Clone returns a deep copy so callers outside the ledger cannot alter blocks
// that are already part of the chain.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Transactions = make([]*transaction.Transaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		c.Transactions[i] = tx.Clone()
	}
	return &c
}

// TxHashes lists the record ids in inclusion order.
func (b *Block) TxHashes() []string {
	hashes := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}
