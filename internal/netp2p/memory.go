// In-memory Network test double: an in-process hub that routes
// publishes directly into peer event queues, so multiple nodes can run
// and gossip to each other inside one test process. spec.md section 9
// ("Test doubles substitute an in-memory Network ... enabling multi-node
// tests in one process").
package netp2p

import "sync"

// MemoryHub is a shared switchboard every in-memory peer joins. Zero
// value is not usable; use NewMemoryHub.
type MemoryHub struct {
	mu    sync.Mutex
	peers map[string]*Memory
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{peers: make(map[string]*Memory)}
}

// Join registers a new peer with id on the hub, announcing it (PeerUp) to
// every already-joined peer and announcing every existing peer to it.
func (h *MemoryHub) Join(id string) *Memory {
	m := &Memory{
		id:     id,
		hub:    h,
		events: make(chan Event, 256),
	}

	h.mu.Lock()
	for otherID, other := range h.peers {
		other.emit(Event{Kind: EventPeerUp, PeerID: id})
		m.emit(Event{Kind: EventPeerUp, PeerID: otherID})
	}
	h.peers[id] = m
	h.mu.Unlock()

	return m
}

func (h *MemoryHub) leave(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	others := make([]*Memory, 0, len(h.peers))
	for _, other := range h.peers {
		others = append(others, other)
	}
	h.mu.Unlock()

	for _, other := range others {
		other.emit(Event{Kind: EventPeerDown, PeerID: id})
	}
}

func (h *MemoryHub) broadcast(from, topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, peer := range h.peers {
		if id == from {
			continue
		}
		peer.emit(Event{Kind: EventMessage, Topic: topic, Payload: payload})
	}
}

// Memory is one node's in-process Network handle.
type Memory struct {
	id     string
	hub    *MemoryHub
	events chan Event
}

func (m *Memory) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}

// Publish implements Network: forwards payload to every other joined peer.
func (m *Memory) Publish(topic string, payload []byte) error {
	m.hub.broadcast(m.id, topic, payload)
	return nil
}

// Events implements Network.
func (m *Memory) Events() <-chan Event {
	return m.events
}

// Dial is a no-op: every joined peer is already reachable through the
// shared hub.
func (m *Memory) Dial(multiaddr string) error {
	return nil
}

// Close removes m from its hub and stops its event channel.
func (m *Memory) Close() error {
	m.hub.leave(m.id)
	close(m.events)
	return nil
}
