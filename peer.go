// Package udpcon is a connectionless, bidirectional UDP datagram transport.
// It layers protocol identification, heartbeats, per-remote timeouts, and
// optional best-effort sequencing over a single non-blocking UDP socket,
// with a dedicated background goroutine performing all socket I/O and a
// user-facing Peer draining it through channels.
//
// udpcon does not do congestion control, retransmission, encryption,
// fragmentation, or NAT traversal/handshaking. It offers exactly two
// delivery modes: Unreliable and Sequenced (best-effort, order-dropping).
package udpcon

import (
	"hash/crc32"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// MaxDatagramSize is the MTU estimate from the wire format: the upper
// bound on a single framed datagram, including its trailer.
const MaxDatagramSize = 1024

// Peer is the user-facing transport handle. A Peer owns a worker
// goroutine pair, the protocol id, the per-remote connection table, and a
// FIFO of events accumulated by Update. A Peer is not safe for concurrent
// use: exactly one goroutine should call Send/Connect/Update/Stats/Stop,
// matching the single-threaded "peer façade" half of the original design.
type Peer struct {
	protocolID uint32
	worker     *worker

	connections  map[string]*Connection
	events       []Event
	nextSequence uint16

	stats Stats

	stopOnce sync.Once
	stopped  bool
}

// Option configures a Peer at Start time.
type Option func(*peerOptions)

type peerOptions struct {
	queueSize int
}

// WithQueueSize overrides the capacity of the worker's outgoing and
// incoming channels (defaultQueueSize otherwise). A larger queue absorbs
// bigger bursts before Send starts returning ErrWorkerBusy, at the cost of
// more buffered memory per Peer.
func WithQueueSize(n int) Option {
	return func(o *peerOptions) { o.queueSize = n }
}

// Start binds a UDP socket (bind == "" binds an ephemeral local address)
// and computes the protocol id as CRC32-IEEE of protocolName. It returns
// an error instead of panicking on bind failure.
func Start(bind string, protocolName string, opts ...Option) (*Peer, error) {
	cfg := peerOptions{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := startWorker(bind, cfg.queueSize)
	if err != nil {
		return nil, errors.Wrap(err, "udpcon: start")
	}

	p := &Peer{
		protocolID:   crc32.ChecksumIEEE([]byte(protocolName)),
		worker:       w,
		connections:  make(map[string]*Connection),
		nextSequence: 1,
	}

	glog.Infof("udpcon: peer started on %s, protocol %q (id=%d)", w.conn.LocalAddr(), protocolName, p.protocolID)
	return p, nil
}

// LocalAddr returns the address the underlying socket is bound to.
func (p *Peer) LocalAddr() net.Addr {
	return p.worker.conn.LocalAddr()
}

// Stop shuts the worker down and releases the socket. It is safe to call
// more than once; only the first call has effect. After Stop returns,
// Connect and Send return ErrPeerStopped and Update returns nil.
func (p *Peer) Stop() {
	p.stopOnce.Do(func() {
		p.worker.stop()
		p.stopped = true
		glog.Infof("udpcon: peer stopped")
	})
}

// Connect sends a heartbeat to target, which creates the bookkeeping
// entry for it via sendPacketAt's create-or-update step (see SPEC_FULL.md
// §9, decision 1 — the module this was ported from only created entries
// on the next validated inbound, leaving a new target briefly invisible
// to its own table). No handshake is negotiated; this is purely local
// bookkeeping so a reply from target matches an existing connection.
func (p *Peer) Connect(target net.Addr) error {
	if p.stopped {
		return ErrPeerStopped
	}

	return p.sendHeartbeat(target, time.Now())
}

// Send frames payload per reliability and hands it to the worker. It
// returns ErrDataTooLarge if the framed datagram would exceed
// MaxDatagramSize, or ErrWorkerBusy if the worker's outgoing queue is
// full.
func (p *Peer) Send(target net.Addr, payload []byte, reliability Reliability) error {
	if p.stopped {
		return ErrPeerStopped
	}

	framed := make([]byte, len(payload), len(payload)+sequencedHeaderSize+headerSize)
	copy(framed, payload)

	var class packetClass
	switch reliability {
	case Sequenced:
		framed = encodeSequencedHeader(framed, p.nextSequence)
		p.nextSequence++
		if p.nextSequence == 0 {
			// 0 is connection.go's "nothing received yet" sentinel;
			// skip it on wraparound the same way Start skips it at
			// initialization.
			p.nextSequence = 1
		}
		class = classSequencedMessage
	default:
		class = classUnreliableMessage
	}
	framed = encodeHeader(framed, class, p.protocolID)

	return p.sendPacket(target, framed)
}

// sendHeartbeat ships an empty, header-only datagram to keep target's
// idle timer from firing.
func (p *Peer) sendHeartbeat(target net.Addr, now time.Time) error {
	framed := encodeHeader(nil, classHeartbeat, p.protocolID)
	return p.sendPacketAt(target, framed, now)
}

// sendPacket is the internal hand-off to the worker shared by Send and
// the heartbeat sweep. Once the datagram is queued, target's LastSent is
// updated, and a connection entry is created for target if it has none.
func (p *Peer) sendPacket(target net.Addr, framed []byte) error {
	return p.sendPacketAt(target, framed, time.Now())
}

func (p *Peer) sendPacketAt(target net.Addr, framed []byte, now time.Time) error {
	if len(framed) > MaxDatagramSize {
		return errors.Wrapf(ErrDataTooLarge, "target=%s size=%d budget=%d", target, len(framed), MaxDatagramSize)
	}

	if err := p.worker.send(target, framed); err != nil {
		return err
	}

	key := target.String()
	conn, ok := p.connections[key]
	if !ok {
		conn = newConnectionFromOutbound(target, now)
		p.connections[key] = conn
	}
	conn.LastSent = now

	p.stats.addSent(len(framed))
	return nil
}

// Update drains every datagram the worker has queued, validates and
// demultiplexes it, updates per-remote bookkeeping, runs the idle and
// heartbeat sweeps, and returns the batch of events produced. Within a
// single call, inbound-message events are ordered by receive order and
// precede any timeout events, matching the original design's ordering
// guarantee.
func (p *Peer) Update() []Event {
	if p.stopped {
		return nil
	}

	p.events = p.events[:0]
	now := time.Now()

	pending := len(p.worker.incoming)
	for i := 0; i < pending; i++ {
		datagram, ok := p.worker.tryRecv()
		if !ok {
			break
		}
		p.handleDatagram(datagram, now)
	}

	p.sweepTimeouts(now)
	p.sweepHeartbeats(now)

	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Peer) handleDatagram(datagram recvDatagram, now time.Time) {
	class, payload, ok := decodeHeader(datagram.data, p.protocolID)
	if !ok {
		glog.V(2).Infof("udpcon: dropping datagram from %s: bad protocol id or class", datagram.from)
		p.stats.addDropped()
		return
	}

	conn := p.updateLastReceived(datagram.from, now)
	p.stats.addReceived(len(datagram.data))

	switch class {
	case classHeartbeat:
		// bookkeeping only; no event.
	case classUnreliableMessage:
		p.events = append(p.events, Event{Kind: EventMessage, Address: datagram.from, Data: payload})
	case classSequencedMessage:
		if len(payload) < sequencedHeaderSize {
			glog.V(2).Infof("udpcon: dropping sequenced datagram from %s: too short", datagram.from)
			p.stats.addDropped()
			return
		}
		seq, data := decodeSequencedHeader(payload)
		if !sequenceGreaterThan(seq, conn.LastReceivedSequence) {
			glog.V(2).Infof("udpcon: dropping late/duplicate sequenced packet %d from %s", seq, datagram.from)
			p.stats.addLateOrDuplicate()
			return
		}
		conn.LastReceivedSequence = seq
		p.events = append(p.events, Event{Kind: EventMessage, Address: datagram.from, Data: data})
	}
}

// updateLastReceived records a validated inbound datagram, creating a new
// Connection if from is unknown. EventNewPeer fires on the first validated
// inbound from from regardless of whether the entry already exists: a
// local Connect/Send creates an unconfirmed entry so the outbound side has
// somewhere to record LastSent, but that alone must not suppress the
// NewPeer event the first real reply earns.
func (p *Peer) updateLastReceived(from net.Addr, now time.Time) *Connection {
	key := from.String()
	conn, ok := p.connections[key]
	if !ok {
		conn = newConnectionFromInbound(from, now)
		p.connections[key] = conn
		p.events = append(p.events, Event{Kind: EventNewPeer, Address: from})
		glog.Infof("udpcon: new peer %s", from)
		return conn
	}

	conn.LastReceived = now
	if !conn.confirmedByInbound {
		conn.confirmedByInbound = true
		p.events = append(p.events, Event{Kind: EventNewPeer, Address: from})
		glog.Infof("udpcon: new peer %s", from)
	}
	return conn
}

// sweepTimeouts removes every connection that has been silent for at
// least idleTimeout and emits EventPeerTimedOut for each. Addresses are
// collected first so the map is never structurally modified mid-range.
func (p *Peer) sweepTimeouts(now time.Time) {
	var expired []*Connection
	for key, conn := range p.connections {
		if conn.idleSince(now) >= idleTimeout {
			expired = append(expired, conn)
			_ = key
		}
	}

	for _, conn := range expired {
		delete(p.connections, conn.Address.String())
		p.events = append(p.events, Event{Kind: EventPeerTimedOut, Address: conn.Address})
		p.stats.addTimeout()
		glog.Infof("udpcon: peer %s timed out", conn.Address)
	}
}

// sweepHeartbeats sends a heartbeat to every surviving connection whose
// LastSent is overdue. Addresses are collected first for the same reason
// as sweepTimeouts.
func (p *Peer) sweepHeartbeats(now time.Time) {
	var due []*Connection
	for _, conn := range p.connections {
		if conn.dueForHeartbeat(now) {
			due = append(due, conn)
		}
	}

	for _, conn := range due {
		if err := p.sendHeartbeat(conn.Address, now); err != nil {
			glog.V(2).Infof("udpcon: heartbeat to %s skipped: %v", conn.Address, err)
		}
	}
}

// Stats returns a snapshot of the peer's lifetime counters.
func (p *Peer) Stats() Stats {
	return p.stats.snapshot()
}
