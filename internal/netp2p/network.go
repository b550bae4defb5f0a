// Package netp2p defines the Network capability spec.md section 1 and
// section 9 describe as an external collaborator: publish-by-topic,
// an inbound event stream of gossip messages and peer up/down/discovery
// signals, and a dial primitive. Two implementations live alongside this
// interface: a libp2p-backed one (libp2p.go) and an in-memory test
// double (memory.go) that lets multiple nodes run, and gossip to each
// other, inside a single test process.
package netp2p

// EventKind discriminates the members of Event.
type EventKind int

const (
	// EventMessage carries an inbound gossip payload on Topic.
	EventMessage EventKind = iota
	// EventPeerUp reports a newly connected peer.
	EventPeerUp
	// EventPeerDown reports a peer's last connection dropping.
	EventPeerDown
	// EventPeerDiscovered reports a multiaddress found via discovery,
	// not yet dialed.
	EventPeerDiscovered
)

// Event is a single inbound occurrence the coordinator must react to.
type Event struct {
	Kind      EventKind
	Topic     string
	Payload   []byte
	PeerID    string
	Multiaddr string
}

// Network is the capability spec.md section 1 requires of the transport
// substrate: publish bytes under a topic, observe an inbound event
// stream, and dial a discovered peer.
type Network interface {
	// Publish broadcasts payload under topic to every subscribed peer.
	Publish(topic string, payload []byte) error
	// Events returns the channel of inbound occurrences. Closed when the
	// network shuts down.
	Events() <-chan Event
	// Dial connects to a peer at the given multiaddress.
	Dial(multiaddr string) error
	// Close tears down the network, closing Events.
	Close() error
}
