package block

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBlock() *Block {
	txs := []*transaction.Transaction{
		transaction.NewTransfer("alice", "bob", uint256.NewInt(10), uint256.NewInt(1)),
		transaction.NewReward("miner", uint256.NewInt(2)),
	}
	b := AssembleBlock(1, "abc", txs)
	b.Timestamp = time.Unix(1_700_000_000, 0)
	b.Hash = b.ComputeHash()
	return b
}

func TestNewGenesisBlock(t *testing.T) {
	g := NewGenesisBlock()
	assert.Equal(t, uint64(0), g.Index)
	assert.Equal(t, GenesisPrevHash, g.PreviousHash)
	assert.Empty(t, g.Transactions)
	assert.Equal(t, uint64(0), g.Nonce)
	assert.Equal(t, g.ComputeHash(), g.Hash)
	assert.Len(t, g.Hash, 64)
	assert.Equal(t, strings.ToLower(g.Hash), g.Hash)
}

func TestComputeHash_Deterministic(t *testing.T) {
	a := sampleBlock()
	b := sampleBlock()
	assert.Equal(t, a.ComputeHash(), a.ComputeHash())
	assert.Equal(t, a.ComputeHash(), b.ComputeHash())
}

func TestComputeHash_CoversEveryField(t *testing.T) {
	base := sampleBlock().ComputeHash()

	tests := []struct {
		name   string
		mutate func(b *Block)
	}{
		{name: "index", mutate: func(b *Block) { b.Index++ }},
		{name: "timestamp", mutate: func(b *Block) { b.Timestamp = b.Timestamp.Add(time.Nanosecond) }},
		{name: "previous hash", mutate: func(b *Block) { b.PreviousHash = "abd" }},
		{name: "nonce", mutate: func(b *Block) { b.Nonce++ }},
		{name: "tx amount", mutate: func(b *Block) { b.Transactions[0].Amount = uint256.NewInt(11) }},
		{name: "tx order", mutate: func(b *Block) {
			b.Transactions[0], b.Transactions[1] = b.Transactions[1], b.Transactions[0]
		}},
		{name: "tx removed", mutate: func(b *Block) { b.Transactions = b.Transactions[:1] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sampleBlock()
			tt.mutate(b)
			assert.NotEqual(t, base, b.ComputeHash())
		})
	}
}

func TestComputeHash_IgnoresSignature(t *testing.T) {
	b := sampleBlock()
	before := b.ComputeHash()
	b.Transactions[0].Signature = "3045"
	assert.Equal(t, before, b.ComputeHash())
}

func TestMeetsDifficulty(t *testing.T) {
	tests := []struct {
		hash       string
		difficulty int
		want       bool
	}{
		{hash: "abc", difficulty: 0, want: true},
		{hash: "00abc", difficulty: 2, want: true},
		{hash: "0abc", difficulty: 2, want: false},
		{hash: "000", difficulty: 4, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MeetsDifficulty(tt.hash, tt.difficulty), "%s/%d", tt.hash, tt.difficulty)
	}
}

func TestMine(t *testing.T) {
	for _, difficulty := range []int{0, 1, 2, 3} {
		b := sampleBlock()
		_, err := b.Mine(context.Background(), difficulty, 100)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(b.Hash, strings.Repeat("0", difficulty)))
		assert.Equal(t, b.ComputeHash(), b.Hash)
	}
}

func TestMine_DifficultyZeroKeepsNonce(t *testing.T) {
	b := sampleBlock()
	attempts, err := b.Mine(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), attempts)
	assert.Equal(t, uint64(0), b.Nonce)
}

func TestMine_InvalidDifficulty(t *testing.T) {
	b := sampleBlock()
	for _, d := range []int{-1, MaxDifficulty + 1} {
		_, err := b.Mine(context.Background(), d, 0)
		assert.ErrorIs(t, err, errors.ErrInvalidDifficulty)
	}
}

func TestMine_Cancelled(t *testing.T) {
	b := sampleBlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Mine(ctx, MaxDifficulty, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, b.ComputeHash(), b.Hash)
}

func TestClone(t *testing.T) {
	b := sampleBlock()
	c := b.Clone()
	c.Transactions[0].Receiver = "eve"
	c.Transactions = append(c.Transactions, transaction.NewReward("x", nil))

	assert.Equal(t, "bob", b.Transactions[0].Receiver)
	assert.Len(t, b.Transactions, 2)
	assert.Equal(t, b.ComputeHash(), b.Hash)
}

func TestTxHashes(t *testing.T) {
	b := sampleBlock()
	hashes := b.TxHashes()
	require.Len(t, hashes, 2)
	assert.Equal(t, b.Transactions[0].Hash(), hashes[0])
}
