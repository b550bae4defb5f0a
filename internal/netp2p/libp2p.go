// libp2p-backed Network implementation: host + gossipsub + mDNS
// discovery. Grounded on
// other_examples/68534baf_louis-xie-programmer-mini_chain__gossip-main.go.go
// (host construction, per-topic pubsub join/subscribe, the mDNS notifee
// pattern, network.Notifiee for connect/disconnect). The DHT/routing-
// discovery half of that file is not adopted: spec.md's Non-goals
// describe local-discovery (mDNS) only, and wiring a DHT would add a
// rendezvous mechanism the spec never asks for — see DESIGN.md.
package netp2p

import (
	"context"
	"fmt"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	libnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// Topics lists the three gossip subjects spec.md section 6 defines.
var Topics = []string{"blockchain", "transaction", "transaction_pool"}

// LibP2P is the production Network: a libp2p host running gossipsub over
// a fixed set of topics, with peers found via mDNS on the local segment.
type LibP2P struct {
	host  host.Host
	pubsb *pubsub.PubSub
	log   *logrus.Entry

	topics        map[string]*pubsub.Topic
	subscriptions map[string]*pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event

	mu          sync.Mutex
	peerConns   map[peer.ID]int
}

// NewLibP2P starts a libp2p host listening on port, joins every topic in
// Topics, and begins mDNS discovery under rendezvous.
func NewLibP2P(port int, rendezvous string, log *logrus.Entry) (*LibP2P, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port)),
		libp2p.NATPortMap(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("netp2p: creating libp2p host: %w", err)
	}

	gsub, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("netp2p: creating gossipsub: %w", err)
	}

	n := &LibP2P{
		host:          h,
		pubsb:         gsub,
		log:           log,
		topics:        make(map[string]*pubsub.Topic),
		subscriptions: make(map[string]*pubsub.Subscription),
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan Event, 256),
		peerConns:     make(map[peer.ID]int),
	}

	for _, name := range Topics {
		topic, err := gsub.Join(name)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("netp2p: joining topic %q: %w", name, err)
		}
		sub, err := topic.Subscribe()
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("netp2p: subscribing to topic %q: %w", name, err)
		}
		n.topics[name] = topic
		n.subscriptions[name] = sub
		go n.subscribeLoop(name, sub)
	}

	h.Network().Notify(&connNotifiee{n: n})

	mdnsSvc := mdns.NewMdnsService(h, rendezvous, &mdnsNotifee{n: n})
	if err := mdnsSvc.Start(); err != nil {
		n.Close()
		return nil, fmt.Errorf("netp2p: starting mdns: %w", err)
	}

	return n, nil
}

func (n *LibP2P) subscribeLoop(topic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.emit(Event{Kind: EventMessage, Topic: topic, Payload: msg.Data})
	}
}

func (n *LibP2P) emit(ev Event) {
	select {
	case n.events <- ev:
	case <-n.ctx.Done():
	}
}

// Publish implements Network.
func (n *LibP2P) Publish(topic string, payload []byte) error {
	t, ok := n.topics[topic]
	if !ok {
		return fmt.Errorf("netp2p: publish to unknown topic %q", topic)
	}
	if err := t.Publish(n.ctx, payload); err != nil {
		return fmt.Errorf("netp2p: publishing to %q: %w", topic, err)
	}
	return nil
}

// Events implements Network.
func (n *LibP2P) Events() <-chan Event {
	return n.events
}

// Dial implements Network.
func (n *LibP2P) Dial(multiaddr string) error {
	info, err := peer.AddrInfoFromString(multiaddr)
	if err != nil {
		return fmt.Errorf("netp2p: parsing multiaddr %q: %w", multiaddr, err)
	}
	if err := n.host.Connect(n.ctx, *info); err != nil {
		return fmt.Errorf("netp2p: dialing %q: %w", multiaddr, err)
	}
	return nil
}

// Close implements Network.
func (n *LibP2P) Close() error {
	n.cancel()
	err := n.host.Close()
	close(n.events)
	return err
}

// connNotifiee adapts libp2p's per-connection Notifiee callbacks to
// peer-up/peer-down Events, counting connections per peer so a peer with
// multiple open connections only fires PeerDown once its last connection
// drops.
type connNotifiee struct {
	n *LibP2P
}

func (c *connNotifiee) Connected(_ libnetwork.Network, conn libnetwork.Conn) {
	c.n.mu.Lock()
	c.n.peerConns[conn.RemotePeer()]++
	first := c.n.peerConns[conn.RemotePeer()] == 1
	c.n.mu.Unlock()
	if first {
		c.n.emit(Event{Kind: EventPeerUp, PeerID: conn.RemotePeer().String()})
	}
}

func (c *connNotifiee) Disconnected(_ libnetwork.Network, conn libnetwork.Conn) {
	c.n.mu.Lock()
	c.n.peerConns[conn.RemotePeer()]--
	last := c.n.peerConns[conn.RemotePeer()] <= 0
	if last {
		delete(c.n.peerConns, conn.RemotePeer())
	}
	c.n.mu.Unlock()
	if last {
		c.n.emit(Event{Kind: EventPeerDown, PeerID: conn.RemotePeer().String()})
	}
}

func (c *connNotifiee) Listen(libnetwork.Network, ma.Multiaddr)      {}
func (c *connNotifiee) ListenClose(libnetwork.Network, ma.Multiaddr) {}

// mdnsNotifee surfaces locally-discovered peers as EventPeerDiscovered;
// the coordinator is responsible for calling Dial per spec.md section
// 4.7 ("Discovery: dial each discovered multiaddress").
type mdnsNotifee struct {
	n *LibP2P
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	m.n.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.TempAddrTTL)
	for _, addr := range pi.Addrs {
		m.n.emit(Event{Kind: EventPeerDiscovered, Multiaddr: fmt.Sprintf("%s/p2p/%s", addr, pi.ID)})
	}
}
