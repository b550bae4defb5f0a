// Package wallet implements the node's ledger identity: its keypair,
// cached balance, and the transaction factory of spec.md section 4.4.
// Generalizes the teacher's account.go/wallet.go (ECDSA identity, PEM
// persistence, balance tracked via an Account struct) to an Ed25519
// identity whose balance is derived entirely by scanning the chain.
package wallet

import (
	"fmt"
	"sync"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
)

// Wallet is a node's signing identity plus a cached balance snapshot.
type Wallet struct {
	keys *cryptoutil.KeyPair

	mu      sync.RWMutex
	balance uint32
}

// New creates a wallet around a fresh Ed25519 identity, starting at the
// network's starting balance.
func New() (*Wallet, error) {
	keys, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wallet.New: %w", err)
	}
	return &Wallet{keys: keys, balance: config.StartingBalance}, nil
}

// PublicKey returns the wallet's address: its public key bytes.
func (w *Wallet) PublicKey() []byte {
	return append([]byte(nil), w.keys.Public...)
}

// Balance returns the most recently cached balance.
func (w *Wallet) Balance() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance
}

// CalculateBalance scans chain for address's true balance: walk blocks
// newest to oldest, skipping the most recent (tail) block entirely. Within
// each visited block, sum any output addressed to address; once a block is
// found where address sent a transaction, sum that block's outputs too and
// then stop. If address never sent anything, the balance is
// STARTING_BALANCE plus every output ever addressed to it.
//
// This relies on the invariant that every outgoing transaction leaves the
// sender's residual in its own output map, so outputs from blocks older
// than the most recent send are already accounted for by that residual.
func CalculateBalance(chain []*block.Block, address []byte) uint32 {
	var outputsTotal uint32
	conducted := false

	for i := len(chain) - 2; i >= 0; i-- {
		blk := chain[i]
		for _, tx := range blk.Data {
			if string(tx.Input.SenderAddress) == string(address) {
				conducted = true
			}
			if amount, ok := tx.OutputMap.Get(address); ok {
				outputsTotal += amount
			}
		}
		if conducted {
			break
		}
	}

	if conducted {
		return outputsTotal
	}
	return config.StartingBalance + outputsTotal
}

// refreshBalance recalculates and caches the wallet's balance from chain.
func (w *Wallet) refreshBalance(chain []*block.Block) {
	balance := CalculateBalance(chain, w.PublicKey())
	w.mu.Lock()
	w.balance = balance
	w.mu.Unlock()
}

// CreateTransaction builds a new transaction sending amount to recipient,
// refreshing the cached balance from chain first whenever the chain has
// grown past genesis. Returns transaction.ErrInsufficientBalance if the
// refreshed balance cannot cover amount. spec.md section 4.4.
func (w *Wallet) CreateTransaction(amount uint32, recipient []byte, chain []*block.Block) (*transaction.Transaction, error) {
	if len(chain) > 1 {
		w.refreshBalance(chain)
	}

	balance := w.Balance()
	if balance < amount {
		return nil, transaction.ErrInsufficientBalance
	}

	return transaction.New(w.keys, balance, recipient, amount)
}

// Sign signs message with the wallet's private key. The HTTP submit path
// re-signs existing transactions through Keys and transaction.Update, not
// through Sign.
func (w *Wallet) Sign(message []byte) []byte {
	return w.keys.Sign(message)
}

// Keys returns the wallet's keypair for operations — such as
// transaction.Update — that need the full cryptoutil.KeyPair rather than
// just a detached Sign call.
func (w *Wallet) Keys() *cryptoutil.KeyPair {
	return w.keys
}
