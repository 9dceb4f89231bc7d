package udpcon

import (
	"net"
	"time"
)

// idleTimeout is how long a connection may go without a validated inbound
// datagram before the idle sweep removes it and emits PeerTimedOut.
const idleTimeout = 5 * time.Second

// heartbeatInterval is how long a connection may go without an outbound
// datagram before the heartbeat sweep sends an empty keep-alive.
const heartbeatInterval = 1 * time.Second

// initialLastSentOffset is subtracted from "now" when a connection is
// created so the very first heartbeat sweep fires immediately rather than
// waiting a full heartbeatInterval. Preserved exactly from the original
// design (see SPEC_FULL.md, Design Notes).
const initialLastSentOffset = 10 * time.Second

// Connection is the per-remote bookkeeping entry. It is local state only:
// nothing is negotiated with the remote, and its presence in a Peer's
// table is the entire definition of "connected".
type Connection struct {
	Address              net.Addr
	LastReceived         time.Time
	LastSent             time.Time
	LastReceivedSequence uint16

	// confirmedByInbound is false for an entry created by a local
	// Connect/Send before anything has ever arrived from Address. It
	// gates EventNewPeer: that event must fire on the first validated
	// inbound datagram even if the entry already exists from an earlier
	// outbound creation.
	confirmedByInbound bool
}

func newConnectionFromInbound(addr net.Addr, now time.Time) *Connection {
	return &Connection{
		Address:              addr,
		LastReceived:         now,
		LastSent:             now.Add(-initialLastSentOffset),
		LastReceivedSequence: 0,
		confirmedByInbound:   true,
	}
}

func newConnectionFromOutbound(addr net.Addr, now time.Time) *Connection {
	return &Connection{
		Address:              addr,
		LastReceived:         now,
		LastSent:             now.Add(-initialLastSentOffset),
		LastReceivedSequence: 0,
		confirmedByInbound:   false,
	}
}

func (c *Connection) idleSince(now time.Time) time.Duration {
	return now.Sub(c.LastReceived)
}

func (c *Connection) dueForHeartbeat(now time.Time) bool {
	return now.Sub(c.LastSent) > heartbeatInterval
}
