// Package pool implements the pending-transaction pool of spec.md section
// 4.5: a keyed map with sender-based dedup done by SubmitTransaction (plain
// SetTransaction does not dedup by sender), blockchain-
// driven pruning, and a local-wins merge policy for incoming peer pools.
// Generalizes the teacher's mempool.go (slice-backed, FIFO eviction by
// fixed capacity) to a map keyed by transaction id with no capacity bound,
// since spec.md's pruning model removes entries by chain inclusion rather
// than by age.
package pool

import (
	"sync"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/txid"
)

// Pool is a many-reader/single-writer map of pending transactions.
type Pool struct {
	mu           sync.RWMutex
	transactions map[txid.ID]*transaction.Transaction
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{transactions: make(map[txid.ID]*transaction.Transaction)}
}

// SetTransaction inserts t, overwriting any prior entry sharing its id.
func (p *Pool) SetTransaction(t *transaction.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions[t.ID] = t
}

// ExistingTransaction returns a clone of the pool entry sent by
// senderAddress, if any. It is read-only: mutating the returned
// Transaction never affects the pool. Use SubmitTransaction to update an
// existing entry in place.
func (p *Pool) ExistingTransaction(senderAddress []byte) *transaction.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.transactions {
		if string(t.Input.SenderAddress) == string(senderAddress) {
			return t.Clone()
		}
	}
	return nil
}

// SubmitTransaction implements the HTTP submit path's update-or-create
// logic (spec.md section 4.3/6) under a single write lock, so the
// find-existing, mutate, and store steps are atomic with respect to every
// other pool reader and writer. If senderAddress already has a pending
// transaction, update is applied to the live pool entry; otherwise create
// builds a fresh one, which is inserted. Either way SubmitTransaction
// returns a clone of the stored transaction, safe for the caller to read
// (e.g. to broadcast) without holding the pool's lock.
func (p *Pool) SubmitTransaction(senderAddress []byte, update func(existing *transaction.Transaction) error, create func() (*transaction.Transaction, error)) (*transaction.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.transactions {
		if string(t.Input.SenderAddress) == string(senderAddress) {
			if err := update(t); err != nil {
				return nil, err
			}
			return t.Clone(), nil
		}
	}

	t, err := create()
	if err != nil {
		return nil, err
	}
	p.transactions[t.ID] = t
	return t.Clone(), nil
}

// Get returns a clone of the pool entry with the given id, if present.
func (p *Pool) Get(id txid.ID) (*transaction.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.transactions[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// GetValidTransactions returns clones of every pool entry that currently
// satisfies Transaction.IsValid. Reward transactions (which never carry a
// signature) are always included, since IsValid exempts them; every other
// entry is gated by IsValid's sum and signature checks.
func (p *Pool) GetValidTransactions() []*transaction.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*transaction.Transaction, 0, len(p.transactions))
	for _, t := range p.transactions {
		if t.IsValid() {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions = make(map[txid.ID]*transaction.Transaction)
}

// Map returns a snapshot of the pool keyed by transaction id, cloned so the
// caller (JSON encoding or gossip serialization) never reads a live entry
// concurrently with an in-place Update. spec.md section 5.
func (p *Pool) Map() map[txid.ID]*transaction.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[txid.ID]*transaction.Transaction, len(p.transactions))
	for id, t := range p.transactions {
		out[id] = t.Clone()
	}
	return out
}

// ClearBlockchainTransactions drops every pool entry whose id appears in
// any block of chain. Blocks are scanned newest-first, and every block is
// visited: the full set of mined ids is collected before any pool entry is
// dropped. spec.md section 4.5.
func (p *Pool) ClearBlockchainTransactions(chain []*block.Block) {
	mined := make(map[txid.ID]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, t := range chain[i].Data {
			mined[t.ID] = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.transactions {
		if mined[id] {
			delete(p.transactions, id)
		}
	}
}

// UpdateTransactionPool merges incoming into p: ids absent locally are
// adopted, ids already present locally are left untouched. Local wins,
// protecting a transaction the owning node is still actively Update-ing
// from being clobbered by a stale peer copy. spec.md section 4.5 / section
// 9 (resolving the source's "local wins" vs "last writer wins" ambiguity).
func (p *Pool) UpdateTransactionPool(incoming map[txid.ID]*transaction.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range incoming {
		if _, exists := p.transactions[id]; !exists {
			p.transactions[id] = t
		}
	}
}
