package jsonrpc

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/block"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/exception"
	"github.com/mezonai/powledger/interfaces"
	"github.com/mezonai/powledger/jsonx"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/monitoring"
	"github.com/mezonai/powledger/ratelimit"
	"github.com/mezonai/powledger/security/validation"
	"github.com/mezonai/powledger/transaction"
	"github.com/mezonai/powledger/utils"
)

const (
	defaultBlocksLimit = 100
	maxBlocksLimit     = 1000
)

// --- Error type used by handlers ---

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func toJRPC2Error(e *rpcError) error {
	if e == nil {
		return nil
	}
	var ledgerError errors.LedgerError
	err := jsonx.Unmarshal([]byte(e.Message), &ledgerError)
	if err == nil && ledgerError.Code != "" {
		return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", ledgerError.Message).WithData(ledgerError)
	}
	return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message)
}

func newRPCError(rpcCode int, code errors.ErrorCode, message string) *rpcError {
	return &rpcError{Code: rpcCode, Message: errors.NewError(code, message).Error()}
}

// ledgerRPCError maps a ledger error onto a JSON-RPC error carrying its code.
func ledgerRPCError(err error) *rpcError {
	var ledgerErr *errors.LedgerError
	if stderrors.As(err, &ledgerErr) {
		return &rpcError{Code: codeServerError, Message: ledgerErr.Error()}
	}
	code := errors.CodeOf(err)
	rpcCode := codeServerError
	if code == errors.ErrCodeInvalidTransaction {
		rpcCode = codeInvalidParams
	}
	return newRPCError(rpcCode, code, err.Error())
}

// --- Params/Results ---

// TxParams is the wire form of a signed record.
type TxParams struct {
	Type      int32  `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Kwh       uint64 `json:"kwh,omitempty"`
	Source    string `json:"source,omitempty"`
	Signature string `json:"signature"`
}

// NewTxParams converts a record to its wire form.
func NewTxParams(tx *transaction.Transaction) TxParams {
	p := TxParams{
		Type:      tx.Type,
		Sender:    tx.Sender,
		Recipient: tx.Receiver,
		Amount:    utils.Uint256ToString(tx.Amount),
		Fee:       utils.Uint256ToString(tx.Fee),
		Signature: tx.Signature,
	}
	if tx.Energy != nil {
		p.Kwh = tx.Energy.Kwh
		p.Source = tx.Energy.Source
	}
	return p
}

func (p TxParams) toTransaction() (*transaction.Transaction, error) {
	if err := validation.ValidateShortTextLength(validation.AmountField, p.Amount); err != nil {
		return nil, err
	}
	if err := validation.ValidateShortTextLength(validation.FeeField, p.Fee); err != nil {
		return nil, err
	}
	amount, err := utils.ParseUint256(p.Amount)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	fee, err := utils.ParseUint256(p.Fee)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}

	var tx *transaction.Transaction
	switch p.Type {
	case transaction.TxTypeTransfer:
		tx = transaction.NewTransfer(p.Sender, p.Recipient, amount, fee)
	case transaction.TxTypeEnergyTrade:
		tx = transaction.NewEnergyTrade(p.Sender, p.Recipient, amount, fee, transaction.EnergyTrade{Kwh: p.Kwh, Source: p.Source})
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidTransaction, fmt.Sprintf("unknown transaction type %d", p.Type))
	}
	tx.Signature = p.Signature
	return tx, nil
}

type AddTxResponse struct {
	Ok     bool   `json:"ok"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

type GetTxStatusRequest struct {
	TxHash string `json:"tx_hash"`
}

type TxStatusInfo struct {
	TxHash     string `json:"tx_hash"`
	Status     string `json:"status"`
	BlockIndex uint64 `json:"block_index,omitempty"`
	BlockHash  string `json:"block_hash,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

type TransactionData struct {
	TxHash string `json:"tx_hash"`
	TxParams
}

type PendingTxsResponse struct {
	TotalCount uint64            `json:"total_count"`
	PendingTxs []TransactionData `json:"pending_txs"`
}

type GetBlocksRequest struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

type BlocksResponse struct {
	Height uint64         `json:"height"`
	Blocks []*block.Block `json:"blocks"`
}

type GetBlockRequest struct {
	Index uint64 `json:"index"`
}

type ValidateResponse struct {
	Valid       bool   `json:"valid"`
	Height      uint64 `json:"height"`
	BrokenIndex uint64 `json:"broken_index,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type MineRequest struct {
	Miner string `json:"miner"`
}

type MineResponse struct {
	Index   uint64 `json:"index"`
	Hash    string `json:"hash"`
	Nonce   uint64 `json:"nonce"`
	TxCount int    `json:"tx_count"`
	Reward  string `json:"reward"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Height     uint64 `json:"height"`
	Pending    int    `json:"pending"`
	Difficulty int    `json:"difficulty"`
	BaseReward string `json:"base_reward"`
}

// --- Server ---

type Server struct {
	addr         string
	ledger       interfaces.Ledger
	tracker      interfaces.TransactionTrackerInterface
	limiter      *ratelimit.SubmissionLimiter
	minerAddress string
	corsConfig   CORSConfig

	bridge     *jhttp.Bridge
	httpServer *http.Server
	listener   net.Listener
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

type Option func(*Server)

// WithTracker enables tx.gettransactionstatus.
func WithTracker(tracker interfaces.TransactionTrackerInterface) Option {
	return func(s *Server) { s.tracker = tracker }
}

func WithLimiter(limiter *ratelimit.SubmissionLimiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithMinerAddress sets the reward address used when miner.mine gets none.
func WithMinerAddress(addr string) Option {
	return func(s *Server) { s.minerAddress = addr }
}

func WithCORS(config CORSConfig) Option {
	return func(s *Server) { s.corsConfig = config }
}

func NewServer(addr string, l interfaces.Ledger, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		ledger: l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving the JSON-RPC bridge.
func (s *Server) Handler() http.Handler {
	if s.bridge == nil {
		bridge := jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
		s.bridge = &bridge
	}
	return s.withMiddleware(s.bridge)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}

	exception.SafeGo("JSONRPCServer", func() {
		logx.Info("JSONRPC", "Serving JSON-RPC on ", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logx.Error("JSONRPC", "JSON-RPC server stopped: ", err)
		}
	})
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	return err
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.DefaultRequestBodyLimit))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		for _, req := range parseJSONRPCRequests(body) {
			if req.Method != MethodTxAddTx {
				continue
			}
			ip := extractClientIPFromRequest(r)
			if err := s.limiter.AllowIP(ip); err != nil {
				monitoring.RecordRejectedTx(monitoring.TxRateLimited)
				logx.Warn("SECURITY", err.Error())
				http.Error(w, errors.NewError(errors.ErrCodeRateLimited, errors.ErrMsgRateLimited).Error(), http.StatusTooManyRequests)
				return
			}
			break
		}
		next.ServeHTTP(w, r)
	})
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodTxAddTx: handler.New(func(ctx context.Context, p TxParams) (*AddTxResponse, error) {
			res, err := s.rpcAddTx(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodTxGetTransactionStatus: handler.New(func(ctx context.Context, p GetTxStatusRequest) (*TxStatusInfo, error) {
			res, err := s.rpcGetTransactionStatus(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodTxGetPendingTransactions: handler.New(func(ctx context.Context) (*PendingTxsResponse, error) {
			return s.rpcGetPendingTransactions(), nil
		}),
		MethodChainGetBlocks: handler.New(func(ctx context.Context, p GetBlocksRequest) (*BlocksResponse, error) {
			return s.rpcGetBlocks(p), nil
		}),
		MethodChainGetBlock: handler.New(func(ctx context.Context, p GetBlockRequest) (*block.Block, error) {
			res, err := s.rpcGetBlock(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodChainValidate: handler.New(func(ctx context.Context) (*ValidateResponse, error) {
			return s.rpcValidate(), nil
		}),
		MethodMinerMine: handler.New(func(ctx context.Context, p MineRequest) (*MineResponse, error) {
			res, err := s.rpcMine(ctx, p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*HealthResponse, error) {
			return s.rpcHealthCheck(), nil
		}),
	}
}

// --- Implementations ---

func (s *Server) rpcAddTx(p TxParams) (*AddTxResponse, *rpcError) {
	tx, err := p.toTransaction()
	if err != nil {
		monitoring.RecordRejectedTx(monitoring.TxMalformed)
		return nil, ledgerRPCError(err)
	}
	if err := validation.ValidateSubmittedTx(tx); err != nil {
		reason := monitoring.TxMalformed
		if errors.CodeOf(err) == errors.ErrCodeReservedSender {
			reason = monitoring.TxReservedSender
		}
		monitoring.RecordRejectedTx(reason)
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := s.limiter.AllowSender(tx.Sender); err != nil {
		monitoring.RecordRejectedTx(monitoring.TxRateLimited)
		logx.Warn("SECURITY", err.Error())
		return nil, newRPCError(codeRateLimited, errors.ErrCodeRateLimited, errors.ErrMsgRateLimited)
	}

	if err := s.ledger.AddTransaction(tx); err != nil {
		return nil, ledgerRPCError(err)
	}
	return &AddTxResponse{Ok: true, TxHash: tx.Hash()}, nil
}

func (s *Server) rpcGetTransactionStatus(p GetTxStatusRequest) (*TxStatusInfo, *rpcError) {
	if err := validation.ValidateHexField(validation.TxHashField, p.TxHash, 64); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if s.tracker == nil {
		return nil, &rpcError{Code: codeNotFound, Message: "transaction tracking is disabled", Data: p.TxHash}
	}
	rec := s.tracker.Status(p.TxHash)
	info := &TxStatusInfo{
		TxHash:     p.TxHash,
		Status:     string(rec.Status),
		BlockIndex: rec.BlockIndex,
		BlockHash:  rec.BlockHash,
		Reason:     rec.Reason,
	}
	if !rec.UpdatedAt.IsZero() {
		info.Timestamp = rec.UpdatedAt.Unix()
	}
	return info, nil
}

func (s *Server) rpcGetPendingTransactions() *PendingTxsResponse {
	pending := s.ledger.PendingTransactions()
	out := make([]TransactionData, 0, len(pending))
	for _, tx := range pending {
		out = append(out, TransactionData{TxHash: tx.Hash(), TxParams: NewTxParams(tx)})
	}
	return &PendingTxsResponse{TotalCount: uint64(len(out)), PendingTxs: out}
}

func (s *Server) rpcGetBlocks(p GetBlocksRequest) *BlocksResponse {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultBlocksLimit
	}
	if limit > maxBlocksLimit {
		limit = maxBlocksLimit
	}

	blocks := s.ledger.Blocks()
	height := uint64(len(blocks) - 1)
	if p.From >= uint64(len(blocks)) {
		return &BlocksResponse{Height: height, Blocks: []*block.Block{}}
	}
	end := p.From + uint64(limit)
	if end > uint64(len(blocks)) {
		end = uint64(len(blocks))
	}
	return &BlocksResponse{Height: height, Blocks: blocks[p.From:end]}
}

func (s *Server) rpcGetBlock(p GetBlockRequest) (*block.Block, *rpcError) {
	blk, ok := s.ledger.Block(p.Index)
	if !ok {
		return nil, &rpcError{
			Code:    codeNotFound,
			Message: fmt.Sprintf(errors.ErrMsgBlockIndexOutOfRange, p.Index, s.ledger.Height()),
			Data:    p.Index,
		}
	}
	return blk, nil
}

func (s *Server) rpcValidate() *ValidateResponse {
	resp := &ValidateResponse{Valid: true, Height: s.ledger.Height()}
	err := s.ledger.Validate()
	if err == nil {
		return resp
	}
	resp.Valid = false
	resp.Reason = err.Error()
	var integrityErr *errors.ChainIntegrityError
	if stderrors.As(err, &integrityErr) {
		resp.BrokenIndex = integrityErr.Index
		resp.Reason = integrityErr.Reason
	}
	return resp
}

func (s *Server) rpcMine(ctx context.Context, p MineRequest) (*MineResponse, *rpcError) {
	miner := p.Miner
	if miner == "" {
		miner = s.minerAddress
	} else if !validation.ValidateTxAddress(miner) {
		return nil, newRPCError(codeInvalidParams, errors.ErrCodeInvalidAddress, errors.ErrMsgInvalidAddress)
	}
	if miner == "" {
		return nil, newRPCError(codeInvalidParams, errors.ErrCodeInvalidAddress, errors.ErrEmptyMinerAddress.Error())
	}

	blk, err := s.ledger.MinePending(ctx, miner)
	if err != nil {
		return nil, newRPCError(codeServerError, errors.ErrCodeMiningFailed, err.Error())
	}

	reward := uint256.NewInt(0)
	if n := len(blk.Transactions); n > 0 && blk.Transactions[n-1].IsReward() {
		reward = blk.Transactions[n-1].Amount
	}
	return &MineResponse{
		Index:   blk.Index,
		Hash:    blk.Hash,
		Nonce:   blk.Nonce,
		TxCount: len(blk.Transactions),
		Reward:  utils.Uint256ToString(reward),
	}, nil
}

func (s *Server) rpcHealthCheck() *HealthResponse {
	return &HealthResponse{
		Status:     "ok",
		Height:     s.ledger.Height(),
		Pending:    s.ledger.PendingCount(),
		Difficulty: s.ledger.Difficulty(),
		BaseReward: utils.Uint256ToString(s.ledger.BaseReward()),
	}
}

// --- Helpers ---

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	// Set allowed origins
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	methods := os.Getenv("CORS_ALLOWED_METHODS")
	headers := os.Getenv("CORS_ALLOWED_HEADERS")
	maxAgeStr := os.Getenv("CORS_MAX_AGE")

	var maxAge int
	if maxAgeStr != "" {
		if v, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = v
		}
	}

	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(origins),
		AllowedMethods: splitAndTrim(methods),
		AllowedHeaders: splitAndTrim(headers),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
