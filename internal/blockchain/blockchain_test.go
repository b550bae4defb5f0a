package blockchain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

func newRewardTx(t *testing.T, minerPK []byte) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.NewRewardTransaction(minerPK, config.MiningReward)
	require.NoError(t, err)
	return tx
}

func TestGenesisOnlyChainIsValid(t *testing.T) {
	assert.True(t, blockchain.IsValidChain([]*block.Block{block.Genesis()}))
}

func TestGenesisWithDataIsInvalid(t *testing.T) {
	tampered := block.Genesis()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	tampered.Data = []*transaction.Transaction{newRewardTx(t, kp.Public)}

	assert.False(t, blockchain.IsValidChain([]*block.Block{tampered}))
}

func TestAddBlockChainsToTail(t *testing.T) {
	bc := blockchain.New()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	mined := bc.AddBlock([]*transaction.Transaction{newRewardTx(t, kp.Public)})

	assert.Equal(t, block.Genesis().Hash, mined.LastHash)
	amount, ok := mined.Data[0].OutputMap.Get(kp.Public)
	require.True(t, ok)
	assert.Equal(t, config.MiningReward, amount)
	assert.True(t, blockchain.IsValidChain(bc.Blocks()))
}

func TestReplaceChainRejectsShorterOrEqual(t *testing.T) {
	a := blockchain.New()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	a.AddBlock([]*transaction.Transaction{newRewardTx(t, kp.Public)})

	b := blockchain.New()

	before := a.Blocks()
	err = a.ReplaceChain(b.Blocks())
	assert.Error(t, err)
	assert.Equal(t, before, a.Blocks())

	equal := blockchain.New()
	equal.AddBlock([]*transaction.Transaction{newRewardTx(t, kp.Public)})
	err = a.ReplaceChain(equal.Blocks())
	assert.Error(t, err)
	assert.Equal(t, before, a.Blocks())
}

func TestReplaceChainAcceptsLongerValid(t *testing.T) {
	a := blockchain.New()
	b := blockchain.New()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		b.AddBlock([]*transaction.Transaction{newRewardTx(t, kp.Public)})
	}

	require.NoError(t, a.ReplaceChain(b.Blocks()))
	assert.Equal(t, b.Blocks(), a.Blocks())
}

func TestValidTransactionDataAcceptsHonestChain(t *testing.T) {
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	chain := []*block.Block{block.Genesis()}
	chain = append(chain, block.Mine([]*transaction.Transaction{newRewardTx(t, kp.Public)}, chain[len(chain)-1]))

	assert.True(t, blockchain.ValidTransactionData(chain, wallet.CalculateBalance))
}

func TestValidTransactionDataRejectsMultipleRewardTransactions(t *testing.T) {
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	chain := []*block.Block{block.Genesis()}
	data := []*transaction.Transaction{newRewardTx(t, kp.Public), newRewardTx(t, kp.Public)}
	chain = append(chain, block.Mine(data, chain[len(chain)-1]))

	assert.False(t, blockchain.ValidTransactionData(chain, wallet.CalculateBalance))
}

func TestValidTransactionDataRejectsWrongRewardAmount(t *testing.T) {
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	tx, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward*2)
	require.NoError(t, err)

	chain := []*block.Block{block.Genesis()}
	chain = append(chain, block.Mine([]*transaction.Transaction{tx}, chain[len(chain)-1]))

	assert.False(t, blockchain.ValidTransactionData(chain, wallet.CalculateBalance))
}

func TestValidTransactionDataRejectsDuplicateTransactionIDs(t *testing.T) {
	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	tx, err := transaction.New(sender, config.StartingBalance, recipient.Public, 100)
	require.NoError(t, err)

	chain := []*block.Block{block.Genesis()}
	// Same transaction object appears twice in the block: a malicious peer
	// replaying an id to inflate apparent activity.
	chain = append(chain, block.Mine([]*transaction.Transaction{tx, tx}, chain[len(chain)-1]))

	assert.False(t, blockchain.ValidTransactionData(chain, wallet.CalculateBalance))
}

func TestValidTransactionDataRejectsForgedSenderBalance(t *testing.T) {
	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	// Forge a transaction claiming a sender balance far beyond
	// config.StartingBalance, the true balance CalculateBalance would find.
	tx, err := transaction.New(sender, config.StartingBalance*10, recipient.Public, 500)
	require.NoError(t, err)

	chain := []*block.Block{block.Genesis()}
	chain = append(chain, block.Mine([]*transaction.Transaction{tx}, chain[len(chain)-1]))

	assert.False(t, blockchain.ValidTransactionData(chain, wallet.CalculateBalance))
}
