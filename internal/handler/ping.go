package handler

import (
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/ping"
)

// PingHandler records the round trip of a control-channel ping echoed by
// the server.
func PingHandler(tracker *ping.Tracker) func(*mumbleproto.Ping) error {
	return func(m *mumbleproto.Ping) error {
		if m.Timestamp != nil {
			tracker.OnTCPPong(*m.Timestamp)
		}
		return nil
	}
}
