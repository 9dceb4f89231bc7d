package udpcon

import "sync/atomic"

// Stats is a point-in-time snapshot of a Peer's lifetime counters. It is
// modeled directly on the atomic-counter SNMP block a KCP session keeps:
// every field here is updated with a single atomic add on the hot path,
// and Stats() takes a cheap consistent-enough snapshot the way
// DefaultSnmp.Copy() does.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Dropped         uint64
	LateOrDuplicate uint64
	Timeouts        uint64
}

func (s *Stats) addSent(n int) {
	atomic.AddUint64(&s.PacketsSent, 1)
	atomic.AddUint64(&s.BytesSent, uint64(n))
}

func (s *Stats) addReceived(n int) {
	atomic.AddUint64(&s.PacketsReceived, 1)
	atomic.AddUint64(&s.BytesReceived, uint64(n))
}

func (s *Stats) addDropped() {
	atomic.AddUint64(&s.Dropped, 1)
}

func (s *Stats) addLateOrDuplicate() {
	atomic.AddUint64(&s.LateOrDuplicate, 1)
}

func (s *Stats) addTimeout() {
	atomic.AddUint64(&s.Timeouts, 1)
}

func (s *Stats) snapshot() Stats {
	return Stats{
		PacketsSent:     atomic.LoadUint64(&s.PacketsSent),
		PacketsReceived: atomic.LoadUint64(&s.PacketsReceived),
		BytesSent:       atomic.LoadUint64(&s.BytesSent),
		BytesReceived:   atomic.LoadUint64(&s.BytesReceived),
		Dropped:         atomic.LoadUint64(&s.Dropped),
		LateOrDuplicate: atomic.LoadUint64(&s.LateOrDuplicate),
		Timeouts:        atomic.LoadUint64(&s.Timeouts),
	}
}
