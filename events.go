package udpcon

import "net"

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	// EventNewPeer fires at most once per connection lifecycle, on the
	// first validated inbound datagram from a remote (also when a local
	// Connect/Send already created the entry), and always precedes any
	// EventMessage for that remote. A connection that never receives
	// anything gets no EventNewPeer.
	EventNewPeer EventKind = iota
	// EventPeerTimedOut fires when a connection is dropped by the idle
	// sweep after 5s of inbound silence.
	EventPeerTimedOut
	// EventMessage carries a validated, demultiplexed payload.
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventNewPeer:
		return "NewPeer"
	case EventPeerTimedOut:
		return "PeerTimedOut"
	case EventMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

// Event is the single user-visible value Update returns a batch of. Only
// Data is populated for EventMessage; Address is populated for all kinds.
type Event struct {
	Kind    EventKind
	Address net.Addr
	Data    []byte
}

// Reliability selects how Send frames an outgoing payload.
type Reliability int

const (
	// Unreliable sends tagged with classUnreliableMessage: no ordering or
	// delivery guarantee beyond raw UDP.
	Unreliable Reliability = iota
	// Sequenced adds a packet number taken from the Peer's single outbound
	// counter, shared by all targets; the receiver silently drops anything
	// that arrives out of order relative to the highest number already
	// accepted from that remote.
	Sequenced
)
