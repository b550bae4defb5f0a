// Package blockchain implements the ordered, validated sequence of blocks
// of spec.md section 4.2: genesis-anchored validity, append, and atomic
// longest-valid-chain replacement. Generalizes the teacher's
// Blockchain.AddBlock/IsValidChain (byte-prefix SHA-256, ECDSA, UTXO
// bookkeeping folded into the chain type) to a chain that only holds
// blocks, with transaction-data and balance checks layered on top per
// spec.md's valid_transaction_data.
package blockchain

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
)

// Blockchain is a many-reader/single-writer ordered sequence of blocks.
type Blockchain struct {
	mu     sync.RWMutex
	blocks []*block.Block
}

// New creates a blockchain holding only the genesis block.
func New() *Blockchain {
	return &Blockchain{blocks: []*block.Block{block.Genesis()}}
}

// Blocks returns a snapshot of the current chain. Callers must not mutate
// the returned slice's blocks.
func (bc *Blockchain) Blocks() []*block.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	out := make([]*block.Block, len(bc.blocks))
	copy(out, bc.blocks)
	return out
}

// Tail returns the most recently appended block.
func (bc *Blockchain) Tail() *block.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// Len returns the number of blocks in the chain.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// AddBlock mines a new block over data, chained to the current tail, and
// appends it. Mining runs without holding bc's lock: only the append
// itself is synchronized.
func (bc *Blockchain) AddBlock(data []*transaction.Transaction) *block.Block {
	bc.mu.RLock()
	last := bc.blocks[len(bc.blocks)-1]
	bc.mu.RUnlock()

	mined := block.Mine(data, last)

	bc.mu.Lock()
	bc.blocks = append(bc.blocks, mined)
	bc.mu.Unlock()

	return mined
}

// IsValidChain reports whether chain is non-empty, starts with the genesis
// block, and every subsequent block correctly chains to its predecessor
// with a hash that recomputes and a difficulty that moved by at most one.
// spec.md section 4.2.
func IsValidChain(chain []*block.Block) bool {
	if len(chain) == 0 {
		return false
	}
	genesis := block.Genesis()
	if !blockEqual(chain[0], genesis) {
		return false
	}

	for i := 1; i < len(chain); i++ {
		curr, prev := chain[i], chain[i-1]
		if !bytes.Equal(curr.LastHash, prev.Hash) {
			return false
		}
		if absDiffU32(curr.Difficulty, prev.Difficulty) > 1 {
			return false
		}
		if !bytes.Equal(curr.RecomputeHash(), curr.Hash) {
			return false
		}
	}
	return true
}

func blockEqual(a, b *block.Block) bool {
	return a.Timestamp == b.Timestamp &&
		bytes.Equal(a.LastHash, b.LastHash) &&
		bytes.Equal(a.Hash, b.Hash) &&
		len(a.Data) == len(b.Data) &&
		a.Nonce == b.Nonce &&
		a.Difficulty == b.Difficulty
}

func absDiffU32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// ReplaceChain atomically adopts newChain iff it is strictly longer than
// the current chain and fully valid. On success the caller must prune the
// transaction pool against the new chain (spec.md section 4.2).
func (bc *Blockchain) ReplaceChain(newChain []*block.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(newChain) <= len(bc.blocks) {
		return fmt.Errorf("blockchain: rejecting chain of length %d, not longer than current length %d", len(newChain), len(bc.blocks))
	}
	if !IsValidChain(newChain) {
		return fmt.Errorf("blockchain: rejecting invalid chain of length %d", len(newChain))
	}

	bc.blocks = newChain
	return nil
}

// BalanceCalculator abstracts the wallet balance scan so this package does
// not import wallet (which itself depends on blockchain for chain access).
type BalanceCalculator func(chain []*block.Block, address []byte) uint32

// ValidTransactionData implements spec.md section 4.2's semantic check on
// an incoming chain: at most one reward transaction per block with the
// correct amount, every other transaction individually valid with an input
// amount matching the sender's true balance at that point in history, and
// no duplicate transaction ids within a block.
func ValidTransactionData(chain []*block.Block, calculateBalance BalanceCalculator) bool {
	for i := 1; i < len(chain); i++ {
		blk := chain[i]
		rewardCount := 0
		seen := map[string]bool{}

		for _, tx := range blk.Data {
			if tx.Input.IsReward() {
				rewardCount++
				if rewardCount > 1 {
					fmt.Println("blockchain: block has more than one reward transaction")
					return false
				}
				if tx.OutputMap.Sum() != config.MiningReward {
					fmt.Println("blockchain: reward transaction amount is invalid")
					return false
				}
				continue
			}

			if !tx.IsValid() {
				fmt.Println("blockchain: invalid transaction in chain")
				return false
			}

			trueBalance := calculateBalance(chain[:i], tx.Input.SenderAddress)
			if tx.Input.Amount != trueBalance {
				fmt.Println("blockchain: transaction input amount does not match sender's true balance")
				return false
			}

			idStr := tx.ID.String()
			if seen[idStr] {
				fmt.Println("blockchain: duplicate transaction id within block")
				return false
			}
			seen[idStr] = true
		}
	}
	return true
}
