package ledger

import (
	"fmt"

	"github.com/mezonai/powledger/block"
	"github.com/mezonai/powledger/errors"
	"github.com/mezonai/powledger/logx"
	"github.com/mezonai/powledger/monitoring"
)

// Validate walks the chain from index 1 and returns a *errors.ChainIntegrityError
// for the first block whose stored hash is stale or whose previous hash does
// not match its predecessor. The genesis block is trusted as is.
func (l *Ledger) Validate() error {
	l.mu.RLock()
	err := ValidateBlocks(l.chain)
	l.mu.RUnlock()

	monitoring.SetChainValid(err == nil)
	if err != nil {
		logx.Error("LEDGER", "Chain integrity check failed: ", err)
	}
	return err
}

// IsChainValid reports whether Validate finds no broken block.
func (l *Ledger) IsChainValid() bool {
	return l.Validate() == nil
}

// ValidateBlocks runs the integrity check over any block sequence, for example
// one fetched from a remote node. Proof of work is not re-checked.
func ValidateBlocks(blocks []*block.Block) error {
	for i := 1; i < len(blocks); i++ {
		current := blocks[i]
		previous := blocks[i-1]
		if current == nil || previous == nil {
			return &errors.ChainIntegrityError{Index: uint64(i), Reason: "missing block"}
		}
		if recomputed := current.ComputeHash(); current.Hash != recomputed {
			return &errors.ChainIntegrityError{
				Index:  uint64(i),
				Reason: fmt.Sprintf("stored hash %s does not match recomputed %s", current.Hash, recomputed),
			}
		}
		if current.PreviousHash != previous.Hash {
			return &errors.ChainIntegrityError{
				Index:  uint64(i),
				Reason: fmt.Sprintf("previous hash %s does not link to %s", current.PreviousHash, previous.Hash),
			}
		}
	}
	return nil
}
