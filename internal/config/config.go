// Package config holds the constants every peer in the network must agree
// on. A mismatch here is a consensus bug, not a configuration error.
package config

import "time"

// Mining / difficulty timing, per spec.md section 6.
const (
	MineRate      = 1000 * time.Millisecond
	MineRateDelta = 50 * time.Millisecond
)

// Genesis block constants. Every node must construct the identical block.
var (
	GenesisTimestamp  int64  = 1
	GenesisHash              = []byte{1, 2, 3, 4}
	GenesisLastHash          = []byte{1, 2, 3, 4}
	GenesisDifficulty uint32 = 5
	GenesisNonce      uint32 = 0
)

// Ledger economics.
const (
	StartingBalance uint32 = 1000
	MiningReward    uint32 = 50
)

// RewardInputAddress is the sentinel sender address for reward transactions.
// It can never be produced by a real keypair: it is shorter than an Ed25519
// public key, so no signature could ever verify against it.
var RewardInputAddress = []byte("REWARD-SENTINEL")

// Coordinator timing.
const (
	HeartbeatInterval = 100 * time.Millisecond
	DebounceDelay     = 10 * time.Second

	// MineScheduleInterval is how often the coordinator checks the pool
	// for pending transactions and starts a mining cycle on its own, on
	// top of the peer-up trigger. Unlike MineRate, this is not a
	// consensus-critical value: it only governs how eagerly this node
	// tries to mine, not the hash target every peer must agree on.
	MineScheduleInterval = 5 * time.Second
)

// Gossip topics, shared by every peer's pubsub subscription.
const (
	TopicBlockchain      = "blockchain"
	TopicTransaction     = "transaction"
	TopicTransactionPool = "transaction_pool"
)

// DefaultHTTPPort is the default local API port per spec.md section 6.
const DefaultHTTPPort = 3005

// DefaultRendezvous is the mDNS/pubsub discovery tag peers use to find one
// another on the local network.
const DefaultRendezvous = "ledgernode-rendezvous-v1"
