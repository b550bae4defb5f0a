// Package miner implements the fixed five-step mining cycle of spec.md
// section 4.6. Generalizes the teacher's inline mining call in node.go
// (mine whatever is in the mempool, no reward transaction, no broadcast
// hook) into its own collaborator so the coordinator can trigger it as a
// single unit and observe its ordering guarantee.
package miner

import (
	"fmt"

	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

// Miner bundles the shared-state handles mine_transactions needs: the
// chain to extend, the pool to drain, and the wallet whose address earns
// the block reward.
type Miner struct {
	Blockchain *blockchain.Blockchain
	Pool       *pool.Pool
	Wallet     *wallet.Wallet

	// OnChainGrown is invoked after the mined block is appended and before
	// the pool is cleared, so a caller (the coordinator) can broadcast the
	// new chain. Step 3 and this call must happen in that order; see
	// MineTransactions.
	OnChainGrown func()
}

// New builds a Miner over the given collaborators.
func New(bc *blockchain.Blockchain, p *pool.Pool, w *wallet.Wallet, onChainGrown func()) *Miner {
	return &Miner{Blockchain: bc, Pool: p, Wallet: w, OnChainGrown: onChainGrown}
}

// MineTransactions runs the five-step cycle of spec.md section 4.6:
// snapshot valid pool entries, append a reward transaction, mine and
// append a block over that data, invoke OnChainGrown, then clear the
// pool. Steps 3 and 4 are strictly ordered: no broadcast fires before the
// local chain has actually grown.
func (m *Miner) MineTransactions() (*transaction.Transaction, error) {
	validTxs := m.Pool.GetValidTransactions()

	rewardTx, err := transaction.NewRewardTransaction(m.Wallet.PublicKey(), config.MiningReward)
	if err != nil {
		return nil, fmt.Errorf("miner: building reward transaction: %w", err)
	}

	data := append(validTxs, rewardTx)
	m.Blockchain.AddBlock(data)

	if m.OnChainGrown != nil {
		m.OnChainGrown()
	}

	m.Pool.Clear()
	return rewardTx, nil
}
