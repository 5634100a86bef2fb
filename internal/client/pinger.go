package client

import (
	"log/slog"
	"time"

	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/mumbleproto"
)

// pingLoop keeps both channels measured. The TCP ping also reports the
// voice cipher counters back to the server.
func (c *Client) pingLoop(conn *connection) error {
	tcp := time.NewTicker(c.cfg.PingInterval)
	defer tcp.Stop()
	udp := time.NewTicker(c.cfg.PingInterval)
	defer udp.Stop()

	for {
		select {
		case <-conn.ctx.Done():
			return nil
		case <-tcp.C:
			if err := conn.control.SendMessage(conn.ctx, c.tcpPing()); err != nil {
				conn.logger.Debug("Failed to send TCP ping", slog.Any("error", err))
				continue
			}
			c.countSent("tcp", "ping")
			c.publish(c.Stats())
		case <-udp.C:
			if conn.getMedia() == nil {
				continue
			}
			if c.tracker.TickUDP() {
				tunneling := c.tracker.Tunneling()
				conn.logger.Info("Voice transport changed", "tunneling", tunneling)
				c.publish(event.ModeChanged{Tunneling: tunneling})
			}
			c.sendUDPPing(conn)
		}
	}
}

func (c *Client) tcpPing() *mumbleproto.Ping {
	snap := c.tracker.Snapshot()
	crypt := c.crypt.Stats()
	return &mumbleproto.Ping{
		Timestamp:  mumbleproto.Ptr(c.tracker.Timestamp()),
		Good:       mumbleproto.Ptr(crypt.Good),
		Late:       mumbleproto.Ptr(crypt.Late),
		Lost:       mumbleproto.Ptr(crypt.Lost),
		Resync:     mumbleproto.Ptr(crypt.Resync),
		UDPPackets: mumbleproto.Ptr(snap.UDP.Packets),
		TCPPackets: mumbleproto.Ptr(snap.TCP.Packets),
		UDPPingAvg: mumbleproto.Ptr(float32(snap.UDP.Average)),
		UDPPingVar: mumbleproto.Ptr(float32(snap.UDP.Deviation)),
		TCPPingAvg: mumbleproto.Ptr(float32(snap.TCP.Average)),
		TCPPingVar: mumbleproto.Ptr(float32(snap.TCP.Deviation)),
	}
}
