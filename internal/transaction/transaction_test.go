package transaction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dyst0rti0n/ledgernode/internal/codec"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
)

func newKeyPair(t *testing.T) *cryptoutil.KeyPair {
	t.Helper()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestNewTransactionOutputsSumToInputAmount(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	sum := tx.OutputMap.Sum()
	assert.Equal(t, tx.Input.Amount, sum)
	assert.True(t, tx.IsValid())
}

func TestNewTransactionRecipientReceivesAmount(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	got, ok := tx.OutputMap.Get(recipient.Public)
	require.True(t, ok)
	assert.Equal(t, uint32(50), got)
}

func TestUpdateMergesExistingRecipient(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	require.NoError(t, tx.Update(sender, recipient.Public, 30))

	got, ok := tx.OutputMap.Get(recipient.Public)
	require.True(t, ok)
	assert.Equal(t, uint32(80), got)

	senderResidual, ok := tx.OutputMap.Get(sender.Public)
	require.True(t, ok)
	assert.Equal(t, uint32(1000-80), senderResidual)

	assert.Equal(t, tx.Input.Amount, tx.OutputMap.Sum())
	assert.True(t, tx.IsValid())
}

func TestUpdateRejectsOverdraft(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	err = tx.Update(sender, recipient.Public, 99999)
	assert.ErrorIs(t, err, transaction.ErrInsufficientBalance)
}

func TestIsValidRejectsTamperedOutputMap(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	tx.OutputMap.Set(recipient.Public, 9999)
	assert.False(t, tx.IsValid())
}

func TestRewardTransactionExemptFromSignatureCheck(t *testing.T) {
	miner := newKeyPair(t)

	tx, err := transaction.NewRewardTransaction(miner.Public, 50)
	require.NoError(t, err)

	assert.True(t, tx.Input.IsReward())
	assert.True(t, tx.IsValid())

	amount, ok := tx.OutputMap.Get(miner.Public)
	require.True(t, ok)
	assert.Equal(t, uint32(50), amount)
}

func TestCanonicalBytesRoundTrip(t *testing.T) {
	sender := newKeyPair(t)
	recipient := newKeyPair(t)

	tx, err := transaction.New(sender, 1000, recipient.Public, 50)
	require.NoError(t, err)

	assert.NotEmpty(t, tx.CanonicalBytes())

	decoded, err := codec.DecodeTransaction(tx.CanonicalBytes())
	require.NoError(t, err)
	assert.Equal(t, tx.CanonicalBytes(), decoded.CanonicalBytes())
}
