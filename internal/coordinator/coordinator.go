// Package coordinator implements the concurrency hub of spec.md section
// 4.7: a single select loop multiplexing inbound network events, HTTP-
// originated commands, a heartbeat tick, and a debounced periodic
// broadcast. Grounded in shape on
// original_source/src/{p2p_task,p2p_mdns_bc_coms}.rs (select over a
// swarm event stream, an mpsc command channel, and a tick interval, with
// inbound gossip routed by topic string) and, for the Go idiom of a
// single consumer goroutine owning shared state, the teacher's node.go
// run loop.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/codec"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/debounce"
	"github.com/Dyst0rti0n/ledgernode/internal/miner"
	"github.com/Dyst0rti0n/ledgernode/internal/netp2p"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/txid"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

// CommandKind discriminates the HTTP-originated commands of spec.md
// section 4.7 item 2.
type CommandKind int

const (
	CmdBroadcastTransaction CommandKind = iota
	CmdBroadcastChain
	CmdMineTransactions
	CmdClearTransactionPool
)

// Command is one HTTP-originated instruction submitted to the
// coordinator's event channel.
type Command struct {
	Kind          CommandKind
	TransactionID txid.ID
}

// Coordinator is the single owner of every piece of shared state: the
// blockchain, the pool, the wallet (via the miner), and the network
// handle. Only its Run goroutine touches them outside of their own
// internal locks.
type Coordinator struct {
	Blockchain *blockchain.Blockchain
	Pool       *pool.Pool
	Wallet     *wallet.Wallet
	Miner      *miner.Miner
	Network    netp2p.Network

	Commands chan Command

	debouncer *debounce.Debouncer
	log       *logrus.Entry

	peersMu sync.Mutex
	peers   map[string]struct{}

	// mining guards against two overlapping MineTransactions cycles: both
	// would snapshot the same chain tail and race to append, corrupting
	// the chain. CompareAndSwap lets handleCommand and the schedule/peer-up
	// triggers share one gate without a separate lock.
	mining atomic.Bool
}

// New wires a Coordinator over the given collaborators. It hooks
// miner.OnChainGrown to this coordinator's chain broadcast, so that
// MineTransactions's internal "append block, then broadcast" ordering
// (spec.md section 4.6) is enforced by construction rather than by
// command-dispatch order.
func New(bc *blockchain.Blockchain, p *pool.Pool, w *wallet.Wallet, net netp2p.Network, log *logrus.Entry) *Coordinator {
	c := &Coordinator{
		Blockchain: bc,
		Pool:       p,
		Wallet:     w,
		Network:    net,
		Commands:   make(chan Command, 64),
		debouncer:  debounce.New(config.DebounceDelay),
		log:        log,
		peers:      make(map[string]struct{}),
	}
	c.Miner = miner.New(bc, p, w, c.broadcastChain)
	return c
}

// Run drives the event loop until ctx is cancelled or the network's
// event stream closes.
func (c *Coordinator) Run(ctx context.Context) {
	heartbeat := time.NewTicker(config.HeartbeatInterval)
	defer heartbeat.Stop()

	mineTicker := time.NewTicker(config.MineScheduleInterval)
	defer mineTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-c.Network.Events():
			if !ok {
				return
			}
			c.handleNetworkEvent(ev)

		case cmd := <-c.Commands:
			c.handleCommand(cmd)

		case now := <-heartbeat.C:
			if c.debouncer.Check(now) {
				c.broadcastChain()
				c.broadcastPool()
			}

		case <-mineTicker.C:
			c.triggerScheduledMine()
		}
	}
}

// startMining launches a mining cycle on its own goroutine if one is not
// already running, per spec.md section 5's requirement that the CPU-bound
// PoW search not block the event loop. OnChainGrown (wired in New) handles
// the broadcast once the cycle completes; the event loop itself never
// waits on the result.
func (c *Coordinator) startMining() {
	if !c.mining.CompareAndSwap(false, true) {
		c.log.Debug("mining cycle already in progress, skipping")
		return
	}
	go func() {
		defer c.mining.Store(false)
		if _, err := c.Miner.MineTransactions(); err != nil {
			c.log.WithError(err).Error("mining cycle failed")
		}
	}()
}

// triggerScheduledMine starts a mining cycle only when there is something
// to mine, so the schedule tick is a no-op on an otherwise idle node.
func (c *Coordinator) triggerScheduledMine() {
	if len(c.Pool.GetValidTransactions()) == 0 {
		return
	}
	c.startMining()
}

func (c *Coordinator) handleNetworkEvent(ev netp2p.Event) {
	switch ev.Kind {
	case netp2p.EventMessage:
		c.handleGossip(ev.Topic, ev.Payload)

	case netp2p.EventPeerUp:
		c.peersMu.Lock()
		c.peers[ev.PeerID] = struct{}{}
		c.peersMu.Unlock()
		c.debouncer.OnEvent(time.Now())
		c.triggerScheduledMine()

	case netp2p.EventPeerDown:
		c.peersMu.Lock()
		delete(c.peers, ev.PeerID)
		c.peersMu.Unlock()

	case netp2p.EventPeerDiscovered:
		if err := c.Network.Dial(ev.Multiaddr); err != nil {
			c.log.WithError(err).WithField("multiaddr", ev.Multiaddr).Warn("dialing discovered peer failed")
		}
	}
}

func (c *Coordinator) handleGossip(topic string, payload []byte) {
	switch topic {
	case config.TopicBlockchain:
		chain, err := codec.DecodeBlockchain(payload)
		if err != nil {
			c.log.WithError(err).Warn("discarding malformed blockchain gossip")
			return
		}
		if !blockchain.ValidTransactionData(chain, wallet.CalculateBalance) {
			c.log.Warn("discarding chain with invalid transaction data")
			return
		}
		if err := c.Blockchain.ReplaceChain(chain); err != nil {
			c.log.WithError(err).Debug("rejected incoming chain")
			return
		}
		c.Pool.ClearBlockchainTransactions(c.Blockchain.Blocks())

	case config.TopicTransaction:
		tx, err := codec.DecodeTransaction(payload)
		if err != nil {
			c.log.WithError(err).Warn("discarding malformed transaction gossip")
			return
		}
		c.Pool.SetTransaction(tx)

	case config.TopicTransactionPool:
		incoming, err := codec.DecodePool(payload)
		if err != nil {
			c.log.WithError(err).Warn("discarding malformed transaction-pool gossip")
			return
		}
		c.Pool.UpdateTransactionPool(incoming)

	default:
		c.log.WithField("topic", topic).Debug("ignoring gossip on unknown topic")
	}
}

func (c *Coordinator) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdBroadcastTransaction:
		tx, ok := c.Pool.Get(cmd.TransactionID)
		if !ok {
			c.log.WithField("id", cmd.TransactionID.String()).Warn("cannot broadcast unknown transaction")
			return
		}
		if err := c.Network.Publish(config.TopicTransaction, codec.EncodeTransaction(tx)); err != nil {
			c.log.WithError(err).Warn("publishing transaction failed")
		}

	case CmdBroadcastChain:
		c.broadcastChain()

	case CmdMineTransactions:
		c.startMining()

	case CmdClearTransactionPool:
		c.Pool.Clear()
	}
}

func (c *Coordinator) broadcastChain() {
	payload := codec.EncodeBlockchain(c.Blockchain.Blocks())
	if err := c.Network.Publish(config.TopicBlockchain, payload); err != nil {
		c.log.WithError(err).Warn("broadcasting chain failed")
	}
}

func (c *Coordinator) broadcastPool() {
	payload := codec.EncodePool(c.Pool.Map())
	if err := c.Network.Publish(config.TopicTransactionPool, payload); err != nil {
		c.log.WithError(err).Warn("broadcasting transaction pool failed")
	}
}
