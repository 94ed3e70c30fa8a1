package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/keys"
	"github.com/mezonai/powledger/transaction"
	"golang.org/x/text/unicode/norm"
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// ValidateShortTextLength validates short text field length
func ValidateShortTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxShortTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgShortTextTooLong, MaxShortTextLength, fieldName),
		)
	}
	return nil
}

// ValidateLongTextLength validates long text field length and rejects
// template or injection payloads.
func ValidateLongTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxLongTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgLongTextTooLong, MaxLongTextLength, fieldName),
		)
	}

	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, fieldName),
		)
	}

	return nil
}

// ValidateHexField checks that value is non-empty hex no longer than maxLen.
func ValidateHexField(fieldName, value string, maxLen int) error {
	if len(value) > maxLen {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgLongTextTooLong, maxLen, fieldName),
		)
	}
	if value == "" || len(value)%2 != 0 {
		return errors.NewError(errors.ErrCodeInvalidRequest, fmt.Sprintf(errors.ErrMsgInvalidHexField, fieldName))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return errors.NewError(errors.ErrCodeInvalidRequest, fmt.Sprintf(errors.ErrMsgInvalidHexField, fieldName))
	}
	return nil
}

// ValidateTxAddress reports whether addr is a hex secp256k1 public key.
func ValidateTxAddress(addr string) bool {
	if len(addr) > MaxAddressLength {
		return false
	}
	_, err := keys.ParsePublicID(addr)
	return err == nil
}

// ValidateSubmittedTx checks a record arriving from outside the node before it
// reaches the ledger. Reward records cannot be submitted.
func ValidateSubmittedTx(tx *transaction.Transaction) error {
	if tx == nil {
		return errors.NewError(errors.ErrCodeInvalidRequest, errors.ErrMsgInvalidRequest)
	}
	if tx.Sender == transaction.SystemSender {
		return errors.NewError(errors.ErrCodeReservedSender, errors.ErrMsgReservedSender)
	}
	if !ValidateTxAddress(tx.Sender) || !ValidateTxAddress(tx.Receiver) {
		return errors.NewError(errors.ErrCodeInvalidAddress, errors.ErrMsgInvalidAddress)
	}
	if err := ValidateHexField(SignatureField, tx.Signature, MaxSignatureLength); err != nil {
		return err
	}
	if tx.Energy != nil {
		if err := ValidateShortTextLength(SourceField, tx.Energy.Source); err != nil {
			return err
		}
		if err := ValidateLongTextLength(SourceField, tx.Energy.Source); err != nil {
			return err
		}
	}
	return nil
}
