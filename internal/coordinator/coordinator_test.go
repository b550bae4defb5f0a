package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/codec"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/coordinator"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/netp2p"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

func silentLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func startCoordinator(t *testing.T, net netp2p.Network) (*coordinator.Coordinator, *blockchain.Blockchain, *pool.Pool) {
	t.Helper()
	bc := blockchain.New()
	p := pool.New()
	w, err := wallet.New()
	require.NoError(t, err)

	coord := coordinator.New(bc, p, w, net, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	return coord, bc, p
}

func TestInboundBlockchainGossipReplacesChainAndPrunesPool(t *testing.T) {
	hub := netp2p.NewMemoryHub()
	nodeNet := hub.Join("node-a")
	peerNet := hub.Join("peer-b")

	_, bc, p := startCoordinator(t, nodeNet)

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	rewardTx, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward)
	require.NoError(t, err)
	p.SetTransaction(rewardTx)

	longer := blockchain.New()
	longer.AddBlock([]*transaction.Transaction{rewardTx})

	require.NoError(t, peerNet.Publish("blockchain", codec.EncodeBlockchain(longer.Blocks())))

	require.Eventually(t, func() bool {
		return bc.Len() == longer.Len()
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, stillPresent := p.Get(rewardTx.ID)
		return !stillPresent
	}, time.Second, 5*time.Millisecond)
}

func TestInboundTransactionGossipAddsToPool(t *testing.T) {
	hub := netp2p.NewMemoryHub()
	nodeNet := hub.Join("node-a")
	peerNet := hub.Join("peer-b")

	_, _, p := startCoordinator(t, nodeNet)

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	rewardTx, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward)
	require.NoError(t, err)

	require.NoError(t, peerNet.Publish("transaction", codec.EncodeTransaction(rewardTx)))

	require.Eventually(t, func() bool {
		_, ok := p.Get(rewardTx.ID)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestInboundBlockchainGossipRejectsInvalidTransactionData(t *testing.T) {
	hub := netp2p.NewMemoryHub()
	nodeNet := hub.Join("node-a")
	peerNet := hub.Join("peer-b")

	_, bc, _ := startCoordinator(t, nodeNet)
	startLen := bc.Len()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	firstReward, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward)
	require.NoError(t, err)
	secondReward, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward)
	require.NoError(t, err)

	genesis := block.Genesis()
	forged := block.Mine([]*transaction.Transaction{firstReward, secondReward}, genesis)
	chain := []*block.Block{genesis, forged}

	require.NoError(t, peerNet.Publish("blockchain", codec.EncodeBlockchain(chain)))

	// Give the gossip handler time to run; the chain must stay at its
	// original length since the incoming chain carries two reward
	// transactions in one block.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, startLen, bc.Len())
}

func TestScheduledMiningGrowsChainWhenPoolNonEmpty(t *testing.T) {
	hub := netp2p.NewMemoryHub()
	nodeNet := hub.Join("node-a")

	_, bc, p := startCoordinator(t, nodeNet)
	startLen := bc.Len()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	pendingReward, err := transaction.NewRewardTransaction(kp.Public, config.MiningReward)
	require.NoError(t, err)
	p.SetTransaction(pendingReward)

	require.Eventually(t, func() bool {
		return bc.Len() > startLen
	}, config.MineScheduleInterval+2*time.Second, 20*time.Millisecond)
}

func TestPeerUpArmsDebounceForChainBroadcast(t *testing.T) {
	hub := netp2p.NewMemoryHub()
	nodeNet := hub.Join("node-a")

	startCoordinator(t, nodeNet)

	listener := hub.Join("listener")
	t.Cleanup(func() { _ = listener.Close() })

	require.Eventually(t, func() bool {
		select {
		case ev := <-listener.Events():
			return ev.Kind == netp2p.EventMessage && ev.Topic == "blockchain"
		default:
			return false
		}
	}, config.DebounceDelay+2*time.Second, 20*time.Millisecond)
}
