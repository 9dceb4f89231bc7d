package udpcon

import (
	"testing"
	"time"
)

// waitForEvent polls Update until an event of the given kind from addr
// shows up, or the deadline elapses.
func waitForEvent(t *testing.T, p *Peer, kind EventKind, addr string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range p.Update() {
			if ev.Kind == kind && (addr == "" || ev.Address.String() == addr) {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v from %s", kind, addr)
	return Event{}
}

// Scenario 1: handshake-free discovery.
func TestScenarioHandshakeFreeDiscovery(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	b, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}
	defer b.Stop()

	if err := b.Connect(a.LocalAddr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitForEvent(t, a, EventNewPeer, b.LocalAddr().String(), 500*time.Millisecond)
	if ev.Address.String() != b.LocalAddr().String() {
		t.Fatalf("NewPeer address = %s, want %s", ev.Address, b.LocalAddr())
	}
}

// Scenario 2: unreliable echo.
func TestScenarioUnreliableEcho(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	b, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}
	defer b.Stop()

	if err := b.Connect(a.LocalAddr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForEvent(t, a, EventNewPeer, b.LocalAddr().String(), 500*time.Millisecond)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := b.Send(a.LocalAddr(), payload, Unreliable); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ev := waitForEvent(t, a, EventMessage, b.LocalAddr().String(), 500*time.Millisecond)
	if string(ev.Data) != string(payload) {
		t.Fatalf("Message data = %v, want %v", ev.Data, payload)
	}
}

// Scenario 3: sequenced delivery drops anything not newer than the
// high-water mark, even if it arrives after a newer packet.
func TestScenarioSequencedOutOfOrderDrop(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	b, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}
	defer b.Stop()

	if err := b.Connect(a.LocalAddr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForEvent(t, a, EventNewPeer, b.LocalAddr().String(), 500*time.Millisecond)

	// Frame "a", "b", "c" ourselves so we control delivery order: a, c, b.
	frame := func(seq uint16, payload string) []byte {
		buf := append([]byte(nil), payload...)
		buf = encodeSequencedHeader(buf, seq)
		return encodeHeader(buf, classSequencedMessage, a.protocolID)
	}

	target := a.LocalAddr()

	send := func(data []byte) {
		if err := b.worker.send(target, data); err != nil {
			t.Fatalf("worker send: %v", err)
		}
	}

	send(frame(1, "a"))
	send(frame(3, "c"))
	send(frame(2, "b"))

	var got []string
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && len(got) < 2 {
		for _, ev := range a.Update() {
			if ev.Kind == EventMessage {
				got = append(got, string(ev.Data))
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("messages = %v, want [a c]", got)
	}
}

// Scenario 4: wrong protocol produces no events.
func TestScenarioWrongProtocolProducesNoEvents(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	c, err := Start("127.0.0.1:0", "u")
	if err != nil {
		t.Fatalf("start C: %v", err)
	}
	defer c.Stop()

	if err := c.Send(a.LocalAddr(), []byte{0x00}, Unreliable); err != nil {
		t.Fatalf("Send: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if events := a.Update(); len(events) != 0 {
		t.Fatalf("events = %v, want none", events)
	}
}

// Scenario 5: idle sweep times a silent remote out exactly once.
func TestScenarioTimeout(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	b, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}

	if err := b.Connect(a.LocalAddr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForEvent(t, a, EventNewPeer, b.LocalAddr().String(), 500*time.Millisecond)

	b.Stop() // B goes silent abruptly, without notifying A.

	ev := waitForEvent(t, a, EventPeerTimedOut, b.LocalAddr().String(), idleTimeout+2*time.Second)
	if ev.Address.String() != b.LocalAddr().String() {
		t.Fatalf("PeerTimedOut address = %s, want %s", ev.Address, b.LocalAddr())
	}

	// No further events should reference b.
	time.Sleep(200 * time.Millisecond)
	for _, ev := range a.Update() {
		if ev.Address != nil && ev.Address.String() == b.LocalAddr().String() {
			t.Fatalf("unexpected event %v referencing timed-out peer", ev)
		}
	}
}

// Scenario 6: an oversize send is rejected before anything is transmitted.
func TestScenarioOversizeRejection(t *testing.T) {
	a, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	defer a.Stop()

	b, err := Start("127.0.0.1:0", "t")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}
	defer b.Stop()

	err = b.Send(a.LocalAddr(), make([]byte, 2048), Unreliable)
	if err == nil {
		t.Fatalf("Send: expected error for oversize payload")
	}

	time.Sleep(100 * time.Millisecond)
	if events := a.Update(); len(events) != 0 {
		t.Fatalf("events = %v, want none (nothing should have been transmitted)", events)
	}
}
