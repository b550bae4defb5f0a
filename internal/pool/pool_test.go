package pool_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/txid"
)

func newTx(t *testing.T) *transaction.Transaction {
	t.Helper()
	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)
	return tx
}

func TestSetAndGetTransaction(t *testing.T) {
	p := pool.New()
	tx := newTx(t)

	p.SetTransaction(tx)

	got, ok := p.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.OutputMap, got.OutputMap)
}

func TestExistingTransactionFindsBySender(t *testing.T) {
	p := pool.New()
	tx := newTx(t)
	p.SetTransaction(tx)

	got := p.ExistingTransaction(tx.Input.SenderAddress)
	require.NotNil(t, got)
	assert.Equal(t, tx.ID, got.ID)

	other, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	assert.Nil(t, p.ExistingTransaction(other.Public))
}

func TestGetValidTransactionsExcludesInvalid(t *testing.T) {
	p := pool.New()
	valid := newTx(t)
	invalid := newTx(t)
	invalid.OutputMap.Set(invalid.Input.SenderAddress, 999999)
	p.SetTransaction(valid)
	p.SetTransaction(invalid)

	got := p.GetValidTransactions()
	require.Len(t, got, 1)
	assert.Equal(t, valid.ID, got[0].ID)
}

func TestClearBlockchainTransactionsPrunesMinedIDs(t *testing.T) {
	p := pool.New()
	a, b, c := newTx(t), newTx(t), newTx(t)
	p.SetTransaction(a)
	p.SetTransaction(b)
	p.SetTransaction(c)

	chain := []*block.Block{
		block.Genesis(),
		{Data: []*transaction.Transaction{a}},
	}
	p.ClearBlockchainTransactions(chain)

	keys := poolKeys(p)
	assert.ElementsMatch(t, []txid.ID{b.ID, c.ID}, keys)
}

func TestUpdateTransactionPoolLocalWins(t *testing.T) {
	p := pool.New()
	local := newTx(t)
	p.SetTransaction(local)

	staleRemoteCopy := *local
	staleRemoteCopy.Amount = 999
	incoming := map[txid.ID]*transaction.Transaction{
		local.ID: &staleRemoteCopy,
	}

	p.UpdateTransactionPool(incoming)

	got, ok := p.Get(local.ID)
	require.True(t, ok)
	assert.Equal(t, local.Amount, got.Amount)
}

func TestUpdateTransactionPoolAdoptsUnknownIDs(t *testing.T) {
	p := pool.New()
	incomingTx := newTx(t)
	incoming := map[txid.ID]*transaction.Transaction{incomingTx.ID: incomingTx}

	p.UpdateTransactionPool(incoming)

	got, ok := p.Get(incomingTx.ID)
	require.True(t, ok)
	assert.Equal(t, incomingTx.Amount, got.Amount)
}

func TestSubmitTransactionCreatesThenUpdates(t *testing.T) {
	p := pool.New()
	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	create := func() (*transaction.Transaction, error) {
		return transaction.New(sender, 1000, recipient.Public, 100)
	}
	update := func(existing *transaction.Transaction) error {
		return existing.Update(sender, recipient.Public, 50)
	}

	first, err := p.SubmitTransaction(sender.Public, update, create)
	require.NoError(t, err)
	assert.Equal(t, uint32(900), first.OutputMap[hex.EncodeToString(sender.Public)])

	second, err := p.SubmitTransaction(sender.Public, update, create)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint32(850), second.OutputMap[hex.EncodeToString(sender.Public)])

	stored, ok := p.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, second.OutputMap, stored.OutputMap)
}

func poolKeys(p *pool.Pool) []txid.ID {
	m := p.Map()
	keys := make([]txid.ID, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	return keys
}
