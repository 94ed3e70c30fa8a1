package jsonrpc

import (
	"context"
	stderrors "errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/powledger/block"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/jsonx"
	"github.com/mezonai/powledger/transaction"
)

// Client calls a node's JSON-RPC endpoint over HTTP.
type Client struct {
	cli *jrpc2.Client
}

func NewClient(url string) *Client {
	return &Client{cli: jrpc2.NewClient(jhttp.NewChannel(url, nil), nil)}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// AddTx submits a signed record and returns its hash.
func (c *Client) AddTx(ctx context.Context, tx *transaction.Transaction) (string, error) {
	var res AddTxResponse
	if err := c.call(ctx, MethodTxAddTx, NewTxParams(tx), &res); err != nil {
		return "", err
	}
	return res.TxHash, nil
}

func (c *Client) TxStatus(ctx context.Context, txHash string) (*TxStatusInfo, error) {
	var res TxStatusInfo
	if err := c.call(ctx, MethodTxGetTransactionStatus, GetTxStatusRequest{TxHash: txHash}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) PendingTransactions(ctx context.Context) (*PendingTxsResponse, error) {
	var res PendingTxsResponse
	if err := c.call(ctx, MethodTxGetPendingTransactions, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AllBlocks pages through chain.getblocks until the whole chain is fetched.
func (c *Client) AllBlocks(ctx context.Context) ([]*block.Block, error) {
	var out []*block.Block
	for {
		var res BlocksResponse
		req := GetBlocksRequest{From: uint64(len(out)), Limit: maxBlocksLimit}
		if err := c.call(ctx, MethodChainGetBlocks, req, &res); err != nil {
			return nil, err
		}
		out = append(out, res.Blocks...)
		if len(res.Blocks) == 0 || uint64(len(out)) > res.Height {
			return out, nil
		}
	}
}

func (c *Client) Block(ctx context.Context, index uint64) (*block.Block, error) {
	var res block.Block
	if err := c.call(ctx, MethodChainGetBlock, GetBlockRequest{Index: index}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Validate(ctx context.Context) (*ValidateResponse, error) {
	var res ValidateResponse
	if err := c.call(ctx, MethodChainValidate, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Mine(ctx context.Context, miner string) (*MineResponse, error) {
	var res MineResponse
	if err := c.call(ctx, MethodMinerMine, MineRequest{Miner: miner}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var res HealthResponse
	if err := c.call(ctx, MethodHealthCheck, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// call unwraps ledger errors carried in the JSON-RPC error data.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	err := c.cli.CallResult(ctx, method, params, result)
	if err == nil {
		return nil
	}
	var rpcErr *jrpc2.Error
	if stderrors.As(err, &rpcErr) && len(rpcErr.Data) > 0 {
		var ledgerErr errors.LedgerError
		if jsonx.Unmarshal(rpcErr.Data, &ledgerErr) == nil && ledgerErr.Code != "" {
			return &ledgerErr
		}
	}
	return err
}
