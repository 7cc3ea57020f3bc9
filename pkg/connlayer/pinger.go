package connlayer

import "time"

// Pinger tracks when the next liveness probe is due and the round-trip time
// samples its Pong replies produce. Modeled on `crates/datagram-pinger`
// (client_out_ping/client_in_ping) and the teacher's own sessionCleanupLoop
// staleness pattern in source/server/server.go, but scoped to one
// connection rather than a server-wide sweep: each side's FrameOutbound
// already carries a connection id, so pinging is naturally per-session here.
type Pinger struct {
	interval time.Duration
	lastSent time.Time
	inFlight bool
	sentAt   time.Time

	lastRTT time.Duration
}

// NewPinger creates a pinger that probes at most once per interval.
func NewPinger(interval time.Duration) *Pinger {
	return &Pinger{interval: interval}
}

// Due reports whether no ping is awaiting its Pong and enough time has
// passed since the last ping to send another one; it does not mutate state.
func (p *Pinger) Due(now time.Time) bool {
	if p.inFlight {
		return false
	}
	return p.lastSent.IsZero() || now.Sub(p.lastSent) >= p.interval
}

// Send marks a ping as sent at now, returning the ClientTime to encode into
// the outbound wire.Ping.
func (p *Pinger) Send(now time.Time) uint16 {
	p.lastSent = now
	p.sentAt = now
	p.inFlight = true
	return uint16(now.UnixMilli())
}

// ReceivePong records the round-trip time for a Pong reply and clears the
// in-flight flag so the next Due check can fire again.
func (p *Pinger) ReceivePong(now time.Time) {
	if !p.inFlight {
		return
	}
	p.lastRTT = now.Sub(p.sentAt)
	p.inFlight = false
}

// RTT reports the most recently measured round-trip time, zero if no Pong
// has been received yet.
func (p *Pinger) RTT() time.Duration { return p.lastRTT }
