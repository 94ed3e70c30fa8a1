package jsonrpc

import (
	"net"
	"net/http"
	"strings"

	"github.com/mezonai/powledger/jsonx"
	"github.com/mezonai/powledger/logx"
)

// JSON-RPC Method name constants
const (
	// Transaction methods
	MethodTxAddTx                  = "tx.addtx"
	MethodTxGetTransactionStatus   = "tx.gettransactionstatus"
	MethodTxGetPendingTransactions = "tx.getpendingtransactions"

	// Chain methods
	MethodChainGetBlocks = "chain.getblocks"
	MethodChainGetBlock  = "chain.getblock"
	MethodChainValidate  = "chain.validate"

	// Miner methods
	MethodMinerMine = "miner.mine"

	// Health methods
	MethodHealthCheck = "health.check"
)

// JSON-RPC error codes used by handlers
const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	codeNotFound      = -32004
	codeRateLimited   = -32029
)

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

// parseJSONRPCRequests decodes the method names of a single or batch request.
func parseJSONRPCRequests(body []byte) []jsonRPCRequest {
	var req jsonRPCRequest
	if err := jsonx.Unmarshal(body, &req); err == nil {
		return []jsonRPCRequest{req}
	}
	var batch []jsonRPCRequest
	if err := jsonx.Unmarshal(body, &batch); err == nil {
		return batch
	}
	return nil
}

func extractClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		logx.Debug("SECURITY", "X-Forwarded-For:", xff)
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return "unknown"
}
