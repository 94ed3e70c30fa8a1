package utils

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Uint256ToString converts a *uint256.Int to its decimal string, returning "0" if nil
func Uint256ToString(value *uint256.Int) string {
	if value == nil {
		return "0"
	}
	return value.Dec()
}

// ParseUint256 parses a decimal amount, accepting "_" digit separators and a
// 0x-prefixed hex form. Empty input parses as zero.
func ParseUint256(s string) (*uint256.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return uint256.NewInt(0), nil
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := uint256.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex amount %q: %w", s, err)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal amount %q: %w", s, err)
	}
	return v, nil
}

// SumUint256 adds all values, treating nil entries as zero. The second result
// is true when the sum wrapped past 2^256.
func SumUint256(values ...*uint256.Int) (*uint256.Int, bool) {
	total := uint256.NewInt(0)
	overflowed := false
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, of := total.AddOverflow(total, v); of {
			overflowed = true
		}
	}
	return total, overflowed
}
