// Package ping tracks round trip statistics for the control and voice
// channels and decides when voice must fall back to the TCP tunnel.
package ping

import (
	"math"
	"sync"
	"time"
)

// MissedThreshold is the number of consecutive unanswered UDP pings after
// which voice is tunneled over TCP.
const MissedThreshold = 2

// Stats is a running delay summary in milliseconds.
//
// Deviation is the squared distance of the latest sample from the updated
// mean, not a running variance. Servers display it as reported, so it is
// kept in this form.
type Stats struct {
	Packets   uint32
	Average   float64
	Deviation float64
}

func (s *Stats) Add(delay float64) {
	s.Packets++
	s.Average += (delay - s.Average) / float64(s.Packets)
	s.Deviation = math.Pow(math.Abs(delay-s.Average), 2)
}

// Snapshot is a consistent copy of a Tracker.
type Snapshot struct {
	TCP       Stats
	UDP       Stats
	Missed    int
	Tunneling bool
}

type Tracker struct {
	mu        sync.Mutex
	now       func() time.Time
	start     time.Time
	tcp       Stats
	udp       Stats
	missed    int
	tunneling bool
	forced    bool
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithForceTunnel keeps voice on the TCP tunnel permanently.
func WithForceTunnel() Option {
	return func(t *Tracker) {
		t.forced = true
		t.tunneling = true
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t
}

// Timestamp returns microseconds since the tracker was created, for
// stamping an outgoing ping.
func (t *Tracker) Timestamp() uint64 {
	return uint64(t.now().Sub(t.start).Microseconds())
}

// delay converts an echoed timestamp into milliseconds. ok is false for
// timestamps from the future, which can only come from a confused peer.
func (t *Tracker) delay(sentAt uint64) (float64, bool) {
	now := t.Timestamp()
	if sentAt > now {
		return 0, false
	}
	return float64(now-sentAt) / 1000, true
}

func (t *Tracker) OnTCPPong(sentAt uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.delay(sentAt); ok {
		t.tcp.Add(d)
	}
}

// OnUDPPong records a UDP reply. It reports whether voice moved back from
// the tunnel to UDP.
func (t *Tracker) OnUDPPong(sentAt uint64) (modeChanged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.delay(sentAt); ok {
		t.udp.Add(d)
	}
	t.missed = 0
	if t.tunneling && !t.forced {
		t.tunneling = false
		return true
	}
	return false
}

// TickUDP is called before each UDP ping is sent. It reports whether
// voice moved from UDP to the tunnel.
func (t *Tracker) TickUDP() (modeChanged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.missed++
	if t.missed >= MissedThreshold && !t.tunneling {
		t.tunneling = true
		return true
	}
	return false
}

func (t *Tracker) Tunneling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tunneling
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{TCP: t.tcp, UDP: t.udp, Missed: t.missed, Tunneling: t.tunneling}
}
