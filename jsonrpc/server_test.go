package jsonrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/events"
	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/ledger"
	"github.com/mezonai/powledger/ratelimit"
	"github.com/mezonai/powledger/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	ledger  *ledger.Ledger
	tracker *transaction.TransactionTracker
	server  *Server
	http    *httptest.Server
	client  *Client
}

func newTestNode(t *testing.T, opts ...Option) *testNode {
	t.Helper()
	bus := events.NewEventBus()
	l, err := ledger.NewLedger(ledger.Config{Difficulty: 1, BaseReward: uint256.NewInt(1)}, ledger.WithEventBus(bus))
	require.NoError(t, err)

	tracker := transaction.NewTransactionTracker()
	ctx, cancel := context.WithCancel(context.Background())
	go events.FeedTracker(ctx, bus, tracker)
	require.Eventually(t, func() bool { return bus.GetTotalSubscriptions() == 1 }, time.Second, 5*time.Millisecond)

	srv := NewServer("", l, append([]Option{WithTracker(tracker)}, opts...)...)
	hs := httptest.NewServer(srv.Handler())
	cli := NewClient(hs.URL)

	t.Cleanup(func() {
		cli.Close()
		hs.Close()
		srv.Shutdown(context.Background())
		cancel()
	})
	return &testNode{ledger: l, tracker: tracker, server: srv, http: hs, client: cli}
}

func signed(t *testing.T, from *keys.PrivateKey, to string, amount, fee uint64) *transaction.Transaction {
	t.Helper()
	tx := transaction.NewTransfer(from.PublicID(), to, uint256.NewInt(amount), uint256.NewInt(fee))
	require.NoError(t, tx.Sign(from))
	return tx
}

func genKey(t *testing.T) *keys.PrivateKey {
	t.Helper()
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	return k
}

func TestRPC_SubmitMineValidate(t *testing.T) {
	node := newTestNode(t)
	ctx := context.Background()
	alice, bob, miner := genKey(t), genKey(t), genKey(t)

	tx := signed(t, alice, bob.PublicID(), 25, 3)
	hash, err := node.client.AddTx(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)

	pending, err := node.client.PendingTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), pending.TotalCount)
	assert.Equal(t, hash, pending.PendingTxs[0].TxHash)
	assert.Equal(t, "25", pending.PendingTxs[0].Amount)

	mined, err := node.client.Mine(ctx, miner.PublicID())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), mined.Index)
	assert.Equal(t, 2, mined.TxCount)
	assert.Equal(t, "4", mined.Reward)
	assert.True(t, strings.HasPrefix(mined.Hash, "0"))

	require.Eventually(t, func() bool {
		st, err := node.client.TxStatus(ctx, hash)
		return err == nil && st.Status == string(transaction.TxStatusMined) && st.BlockIndex == 1
	}, time.Second, 10*time.Millisecond)

	blocks, err := node.client.AllBlocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.NoError(t, ledger.ValidateBlocks(blocks))
	assert.Equal(t, node.ledger.LastBlock().Hash, blocks[1].Hash)

	blk, err := node.client.Block(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, blk.ComputeHash(), blk.Hash)

	res, err := node.client.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, uint64(1), res.Height)

	health, err := node.client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Pending)
	assert.Equal(t, 1, health.Difficulty)
	assert.Equal(t, "1", health.BaseReward)
}

func TestRPC_AddTxRejections(t *testing.T) {
	node := newTestNode(t)
	ctx := context.Background()
	alice, bob := genKey(t), genKey(t)

	tampered := signed(t, alice, bob.PublicID(), 5, 1)
	tampered.Amount = uint256.NewInt(6)

	foreign := transaction.NewTransfer(alice.PublicID(), bob.PublicID(), uint256.NewInt(5), uint256.NewInt(1))
	foreign.Signature = signed(t, bob, alice.PublicID(), 5, 1).Signature

	tests := []struct {
		name     string
		tx       *transaction.Transaction
		wantCode errors.ErrorCode
	}{
		{name: "reward records cannot be submitted", tx: transaction.NewReward(bob.PublicID(), uint256.NewInt(100)), wantCode: errors.ErrCodeReservedSender},
		{name: "unsigned", tx: transaction.NewTransfer(alice.PublicID(), bob.PublicID(), nil, nil), wantCode: errors.ErrCodeInvalidRequest},
		{name: "tampered amount", tx: tampered, wantCode: errors.ErrCodeInvalidTransaction},
		{name: "foreign signature", tx: foreign, wantCode: errors.ErrCodeInvalidTransaction},
		{name: "recipient not a key", tx: signed(t, alice, "bob", 1, 0), wantCode: errors.ErrCodeInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := node.client.AddTx(ctx, tt.tx)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
	assert.Equal(t, 0, node.ledger.PendingCount())
}

func TestRPC_AddTxBadAmount(t *testing.T) {
	node := newTestNode(t)
	alice, bob := genKey(t), genKey(t)
	p := NewTxParams(signed(t, alice, bob.PublicID(), 1, 0))
	p.Amount = "-1"

	_, rpcErr := node.server.rpcAddTx(p)
	require.NotNil(t, rpcErr)
	assert.Contains(t, rpcErr.Message, string(errors.ErrCodeInvalidAmount))
}

func TestRPC_EnergyTradeRoundTrip(t *testing.T) {
	node := newTestNode(t)
	alice, bob := genKey(t), genKey(t)
	tx := transaction.NewEnergyTrade(alice.PublicID(), bob.PublicID(), uint256.NewInt(9), uint256.NewInt(1),
		transaction.EnergyTrade{Kwh: 30, Source: "solar"})
	require.NoError(t, tx.Sign(alice))

	_, err := node.client.AddTx(context.Background(), tx)
	require.NoError(t, err)

	pending := node.ledger.PendingTransactions()
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Energy)
	assert.Equal(t, uint64(30), pending[0].Energy.Kwh)
	assert.True(t, pending[0].IsValid())
}

func TestRPC_GetBlockOutOfRange(t *testing.T) {
	node := newTestNode(t)
	_, err := node.client.Block(context.Background(), 5)
	assert.Error(t, err)
}

func TestRPC_GetBlocksPaging(t *testing.T) {
	node := newTestNode(t)
	for i := 0; i < 3; i++ {
		_, err := node.ledger.MinePending(context.Background(), "miner")
		require.NoError(t, err)
	}

	res := node.server.rpcGetBlocks(GetBlocksRequest{From: 1, Limit: 2})
	assert.Equal(t, uint64(3), res.Height)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, uint64(1), res.Blocks[0].Index)

	res = node.server.rpcGetBlocks(GetBlocksRequest{From: 10})
	assert.Empty(t, res.Blocks)
}

func TestRPC_MineNeedsMinerAddress(t *testing.T) {
	node := newTestNode(t)
	_, err := node.client.Mine(context.Background(), "")
	assert.Equal(t, errors.ErrCodeInvalidAddress, errors.CodeOf(err))

	_, err = node.client.Mine(context.Background(), "not-a-key")
	assert.Equal(t, errors.ErrCodeInvalidAddress, errors.CodeOf(err))
	assert.Equal(t, uint64(0), node.ledger.Height())
}

func TestRPC_MineUsesDefaultMiner(t *testing.T) {
	miner := genKey(t)
	node := newTestNode(t, WithMinerAddress(miner.PublicID()))

	res, err := node.client.Mine(context.Background(), "")
	require.NoError(t, err)
	blk := node.ledger.LastBlock()
	assert.Equal(t, res.Hash, blk.Hash)
	assert.Equal(t, miner.PublicID(), blk.Transactions[0].Receiver)
}

func TestRPC_ValidateReportsBrokenBlock(t *testing.T) {
	node := newTestNode(t)
	srv := NewServer("", brokenLedger{node.ledger})
	res := srv.rpcValidate()
	assert.False(t, res.Valid)
	assert.Equal(t, uint64(7), res.BrokenIndex)
	assert.Equal(t, "stale hash", res.Reason)
}

type brokenLedger struct{ *ledger.Ledger }

func (brokenLedger) Validate() error {
	return &errors.ChainIntegrityError{Index: 7, Reason: "stale hash"}
}

func TestRPC_SubmissionRateLimit(t *testing.T) {
	node := newTestNode(t, WithLimiter(ratelimit.NewSubmissionLimiter(1)))
	alice, bob := genKey(t), genKey(t)

	_, err := node.client.AddTx(context.Background(), signed(t, alice, bob.PublicID(), 1, 0))
	require.NoError(t, err)

	_, err = node.client.AddTx(context.Background(), signed(t, alice, bob.PublicID(), 2, 0))
	require.Error(t, err)
	assert.Equal(t, 1, node.ledger.PendingCount())
}

func TestRPC_IPRateLimitAtHTTPLayer(t *testing.T) {
	node := newTestNode(t, WithLimiter(ratelimit.NewSubmissionLimiter(1)))
	body := `{"jsonrpc":"2.0","id":1,"method":"tx.addtx","params":{}}`

	first, err := http.Post(node.http.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Post(node.http.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	health, err := http.Post(node.http.URL, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"health.check"}`))
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	node := newTestNode(t, WithCORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}, AllowedMethods: []string{"POST"}, MaxAge: 60}))

	req, err := http.NewRequest(http.MethodOptions, node.http.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "60", resp.Header.Get("Access-Control-Max-Age"))
}

func TestCORSFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "a, b,")
	t.Setenv("CORS_MAX_AGE", "30")
	cfg, ok := CORSFromEnv()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, cfg.AllowedOrigins)
	assert.Equal(t, 30, cfg.MaxAge)
}

func TestStartAndShutdown(t *testing.T) {
	l, err := ledger.NewLedger(ledger.DefaultConfig())
	require.NoError(t, err)
	srv := NewServer("127.0.0.1:0", l)
	require.NoError(t, srv.Start())

	cli := NewClient("http://" + srv.Addr())
	defer cli.Close()
	health, err := cli.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
