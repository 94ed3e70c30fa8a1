package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/mezonai/powledger/jsonx"
)

// ErrorCode represents standardized error codes for ledger operations
type ErrorCode string

const (
	// General errors
	ErrCodeInternal ErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest     ErrorCode = "invalid_request"
	ErrCodeInvalidTransaction ErrorCode = "invalid_transaction"
	ErrCodeInvalidSignature   ErrorCode = "invalid_signature"
	ErrCodeInvalidAddress     ErrorCode = "invalid_address"
	ErrCodeInvalidAmount      ErrorCode = "invalid_amount"

	// Business logic errors
	ErrCodeUnauthorizedSigner ErrorCode = "unauthorized_signer"
	ErrCodeChainIntegrity     ErrorCode = "chain_integrity"
	ErrCodeReservedSender     ErrorCode = "reserved_sender"

	// System errors
	ErrCodeMempoolFull  ErrorCode = "mempool_full"
	ErrCodeRateLimited  ErrorCode = "rate_limited"
	ErrCodeMiningFailed ErrorCode = "mining_failed"
)

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest       = "Request format is invalid"
	ErrMsgInvalidTransaction   = "Transaction data is invalid"
	ErrMsgInvalidSignature     = "Transaction signature is invalid"
	ErrMsgInvalidAddress       = "Address is invalid"
	ErrMsgInvalidAmount        = "Amount is invalid"
	ErrMsgUnauthorizedSigner   = "Signing key does not belong to the sender"
	ErrMsgReservedSender       = "Sender is reserved for mining rewards"
	ErrMsgMempoolFull          = "Pending pool is full, please try again"
	ErrMsgRateLimited          = "Too many requests, please slow down"
	ErrMsgInternal             = "Server error, please try again"
	ErrMsgShortTextTooLong     = "Short text length exceeds maximum (%d) for field '%s'"
	ErrMsgLongTextTooLong      = "Long text length exceeds maximum (%d) for field '%s'"
	ErrMsgInvalidCharacters    = "Field '%s' contains invalid characters"
	ErrMsgInvalidHexField      = "Field '%s' is not valid hex"
	ErrMsgBlockIndexOutOfRange = "Block index %d is out of range (height %d)"
)

var (
	ErrMempoolFull       = NewError(ErrCodeMempoolFull, ErrMsgMempoolFull)
	ErrInvalidDifficulty = stderrors.New("difficulty must be between 0 and 64")
	ErrEmptyMinerAddress = stderrors.New("miner address must not be empty")
	ErrNilTransaction    = stderrors.New("transaction is nil")
)

// LedgerError represents a standardized ledger error
type LedgerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	b, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(b)
}

// NewError creates a new LedgerError and returns it as error interface
func NewError(code ErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// AuthorizationError is returned when a record is signed with a key that does
// not match its claimed sender.
type AuthorizationError struct {
	Sender string
	Signer string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: signer %s is not sender %s", ErrCodeUnauthorizedSigner, e.Signer, e.Sender)
}

func (e *AuthorizationError) Code() ErrorCode { return ErrCodeUnauthorizedSigner }

// ValidationError reports a submitted record that failed verification. The
// record is excluded from the pending pool.
type ValidationError struct {
	TxHash string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: transaction %s rejected: %s", ErrCodeInvalidTransaction, e.TxHash, e.Reason)
}

func (e *ValidationError) Code() ErrorCode { return ErrCodeInvalidTransaction }

// ChainIntegrityError describes the first block that breaks the chain, either by
// a stale hash or a broken link to its predecessor.
type ChainIntegrityError struct {
	Index  uint64
	Reason string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("%s: block %d: %s", ErrCodeChainIntegrity, e.Index, e.Reason)
}

func (e *ChainIntegrityError) Code() ErrorCode { return ErrCodeChainIntegrity }

// CodeOf extracts the ledger error code from err, falling back to internal_error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded interface{ Code() ErrorCode }
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ErrCodeInternal
}
