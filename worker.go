package udpcon

import (
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// defaultQueueSize is the default capacity of the worker's outgoing and
// incoming channels. It is the Go-idiomatic replacement for the original
// design's unbounded pending FIFO: bounding it trades "never blocks" for
// "fails fast with ErrWorkerBusy" under sustained overload (see
// DESIGN.md, Open Question on backpressure).
const defaultQueueSize = 256

// recvDatagram is a single datagram the worker has accepted off the wire
// and is handing to the Peer for validation/demultiplexing.
type recvDatagram struct {
	from net.Addr
	data []byte
}

// workerCommand is sent from Peer to worker over the outgoing channel.
type workerCommand struct {
	stop   bool
	target net.Addr
	data   []byte
}

// worker owns exactly one net.PacketConn and performs every read/write
// syscall for a Peer. It communicates with its owner exclusively through
// the outgoing/incoming channels; it never touches Peer-owned state
// directly, so no locking is required between the two.
//
// This is the Go translation of the original mio-based design: a
// dedicated goroutine parked in a blocking ReadFrom plays the role of the
// SOCKET-readable readiness branch, and a second goroutine parked on a
// channel receive plays the role of the CHANNEL readiness branch. Go's
// runtime network poller is what the original had to build by hand with
// mio::Poll, so there is no separate registration/readiness step here.
type worker struct {
	conn net.PacketConn

	outgoing chan workerCommand
	incoming chan recvDatagram
	closing  chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// startWorker binds a UDP socket (bind == "" binds an ephemeral address)
// and spawns the reader/writer goroutines. queueSize must be positive.
func startWorker(bind string, queueSize int) (*worker, error) {
	if bind == "" {
		bind = "0.0.0.0:0"
	}

	conn, err := net.ListenPacket("udp", bind)
	if err != nil {
		return nil, errors.Wrapf(err, "udpcon: bind %q", bind)
	}

	w := &worker{
		conn:     conn,
		outgoing: make(chan workerCommand, queueSize),
		incoming: make(chan recvDatagram, queueSize),
		closing:  make(chan struct{}),
	}

	w.wg.Add(2)
	go w.readLoop()
	go w.writeLoop()

	return w, nil
}

// readLoop repeatedly reads datagrams off the socket until it is closed.
// Datagrams shorter than headerSize are dropped immediately: this is the
// amplification guard from the original design, applied before anything
// ever reaches a channel.
func (w *worker) readLoop() {
	defer w.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := w.conn.ReadFrom(buf)
		if err != nil {
			if !w.isClosing() {
				glog.Warningf("udpcon: worker read loop exiting: %v", err)
			}
			return
		}

		if n < headerSize {
			glog.V(2).Infof("udpcon: dropping undersized datagram (%d bytes) from %s", n, from)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case w.incoming <- recvDatagram{from: from, data: data}:
		default:
			glog.V(2).Infof("udpcon: incoming queue full, dropping datagram from %s", from)
		}
	}
}

// writeLoop drains outgoing commands and writes them to the socket in
// order, preserving per-caller send order. A stop command closes the
// socket, which unblocks readLoop's pending ReadFrom as a side effect.
func (w *worker) writeLoop() {
	defer w.wg.Done()

	for cmd := range w.outgoing {
		if cmd.stop {
			w.conn.Close()
			return
		}

		if _, err := w.conn.WriteTo(cmd.data, cmd.target); err != nil {
			if !w.isClosing() {
				glog.Warningf("udpcon: write to %s failed: %v", cmd.target, err)
			}
		}
	}
}

func (w *worker) isClosing() bool {
	select {
	case <-w.closing:
		return true
	default:
		return false
	}
}

// send enqueues a datagram for target without blocking. It returns
// ErrWorkerBusy if the outgoing queue is full.
func (w *worker) send(target net.Addr, data []byte) error {
	select {
	case w.outgoing <- workerCommand{target: target, data: data}:
		return nil
	default:
		return ErrWorkerBusy
	}
}

// tryRecv returns the next queued inbound datagram, or ok=false if none is
// pending. It never blocks.
func (w *worker) tryRecv() (recvDatagram, bool) {
	select {
	case d := <-w.incoming:
		return d, true
	default:
		return recvDatagram{}, false
	}
}

// stop sends the stop command and waits for both goroutines to exit.
func (w *worker) stop() {
	w.stopOnce.Do(func() {
		close(w.closing)
		w.outgoing <- workerCommand{stop: true}
		w.wg.Wait()
	})
}
