package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/jsonx"
	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/utils"
)

// SystemSender is the sender of mining rewards. Records from it are valid
// without a signature.
const SystemSender = "System"

const (
	TxTypeTransfer    = 0
	TxTypeEnergyTrade = 1
)

// Reasons reported by Verify.
const (
	ReasonMissingSignature  = "missing signature"
	ReasonSignatureTooLarge = "signature too large"
	ReasonBadSignature      = "signature verification failed"
)

// Limits to prevent DoS via oversized inputs
const (
	maxSignatureHexLen = 512
	maxIdentifierLen   = 256
)

// EnergyTrade carries the extra fixed fields of an energy trade record.
type EnergyTrade struct {
	Kwh    uint64 `json:"kwh"`
	Source string `json:"source"`
}

// Transaction is a signed transfer record. Type selects the variant: a plain
// transfer, or an energy trade that must carry Energy.
type Transaction struct {
	Type      int32        `json:"type"`
	Sender    string       `json:"sender"`
	Receiver  string       `json:"receiver"`
	Amount    *uint256.Int `json:"amount"`
	Fee       *uint256.Int `json:"fee"`
	Energy    *EnergyTrade `json:"energy,omitempty"`
	Signature string       `json:"signature,omitempty"`
}

func NewTransfer(sender, receiver string, amount, fee *uint256.Int) *Transaction {
	return &Transaction{
		Type:     TxTypeTransfer,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Fee:      fee,
	}
}

func NewEnergyTrade(sender, receiver string, amount, fee *uint256.Int, trade EnergyTrade) *Transaction {
	return &Transaction{
		Type:     TxTypeEnergyTrade,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Fee:      fee,
		Energy:   &trade,
	}
}

// NewReward builds the unsigned system record crediting a miner.
func NewReward(miner string, amount *uint256.Int) *Transaction {
	return NewTransfer(SystemSender, miner, amount, uint256.NewInt(0))
}

// CanonicalBytes is the byte form that is signed and hashed. Field order is
// fixed: sender, receiver, amount, fee, then variant fields. Strings are quoted
// so that no identifier content can shift a field boundary. The signature is
// never part of it.
func (tx *Transaction) CanonicalBytes() []byte {
	b := make([]byte, 0, 64+len(tx.Sender)+len(tx.Receiver))
	b = strconv.AppendQuote(b, tx.Sender)
	b = append(b, '|')
	b = strconv.AppendQuote(b, tx.Receiver)
	b = append(b, '|')
	b = append(b, utils.Uint256ToString(tx.Amount)...)
	b = append(b, '|')
	b = append(b, utils.Uint256ToString(tx.Fee)...)
	if tx.Type == TxTypeEnergyTrade && tx.Energy != nil {
		b = append(b, '|')
		b = strconv.AppendUint(b, tx.Energy.Kwh, 10)
		b = append(b, '|')
		b = strconv.AppendQuote(b, tx.Energy.Source)
	}
	return b
}

// Sign binds a signature to the canonical bytes. Only the sender's own key may
// sign.
func (tx *Transaction) Sign(signer keys.Signer) error {
	signerID := signer.PublicID()
	if !keys.SamePublicID(signerID, tx.Sender) {
		return &errors.AuthorizationError{Sender: tx.Sender, Signer: signerID}
	}
	sig, err := signer.Sign(tx.CanonicalBytes())
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = hex.EncodeToString(sig)
	return nil
}

// IsValid reports whether the record may enter a block. System records are
// always valid; everything else needs a well-formed variant and a signature
// that verifies against the sender key. Decoding problems count as invalid.
func (tx *Transaction) IsValid() bool {
	return tx.Verify() == ""
}

// Verify returns the reason the record is invalid, or "" when it is valid.
func (tx *Transaction) Verify() string {
	if tx == nil {
		return "nil transaction"
	}
	if tx.Sender == SystemSender {
		return ""
	}
	if reason := tx.checkShape(); reason != "" {
		return reason
	}
	if tx.Signature == "" {
		return ReasonMissingSignature
	}
	if len(tx.Signature) > maxSignatureHexLen {
		return ReasonSignatureTooLarge
	}
	if !keys.Verify(tx.Sender, tx.CanonicalBytes(), tx.Signature) {
		logx.Debug("TransactionVerify", "signature check failed for sender ", utils.ShortenLog(tx.Sender))
		return ReasonBadSignature
	}
	return ""
}

func (tx *Transaction) checkShape() string {
	switch tx.Type {
	case TxTypeTransfer:
		if tx.Energy != nil {
			return "transfer must not carry energy fields"
		}
	case TxTypeEnergyTrade:
		if tx.Energy == nil {
			return "energy trade without energy fields"
		}
	default:
		return fmt.Sprintf("unknown transaction type %d", tx.Type)
	}
	if len(tx.Sender) > maxIdentifierLen || len(tx.Receiver) > maxIdentifierLen {
		return "identifier too large"
	}
	return ""
}

// IsReward reports whether the record was issued by the system.
func (tx *Transaction) IsReward() bool {
	return tx.Sender == SystemSender
}

// FeeOrZero returns the fee, treating nil as zero.
func (tx *Transaction) FeeOrZero() *uint256.Int {
	if tx.Fee == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(tx.Fee)
}

// Hash identifies the record by its canonical bytes.
func (tx *Transaction) Hash() string {
	sum256 := sha256.Sum256(tx.CanonicalBytes())
	return hex.EncodeToString(sum256[:])
}

func (tx *Transaction) Bytes() []byte {
	b, _ := jsonx.Marshal(tx)
	return b
}

// Clone returns a deep copy.
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	c := *tx
	if tx.Amount != nil {
		c.Amount = new(uint256.Int).Set(tx.Amount)
	}
	if tx.Fee != nil {
		c.Fee = new(uint256.Int).Set(tx.Fee)
	}
	if tx.Energy != nil {
		e := *tx.Energy
		c.Energy = &e
	}
	return &c
}
