package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/glizzus/murmur/internal/udpproto"
)

type MediaOptions struct {
	// OnPacket receives a copy of every datagram. Its errors are logged
	// and otherwise ignored.
	OnPacket func(packet []byte) error
	Logger   *slog.Logger
}

// Media is the unreliable voice channel: a UDP socket connected to the
// server.
type Media struct {
	conn   net.Conn
	opts   MediaOptions
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func DialMedia(ctx context.Context, addr string, opts MediaOptions) (*Media, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	return NewMedia(conn, opts), nil
}

// NewMedia wraps a connected packet socket.
func NewMedia(conn net.Conn, opts MediaOptions) *Media {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Media{conn: conn, opts: opts, logger: logger}
}

// Run receives datagrams until ctx is done or the socket is closed.
func (m *Media) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, udpproto.MaxPacketSize)
	for {
		n, err := m.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// ICMP errors from an unreachable port surface here and are
			// transient.
			m.logger.Debug("UDP read failed", slog.Any("error", err))
			continue
		}
		if n == 0 || m.opts.OnPacket == nil {
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		if err := m.opts.OnPacket(packet); err != nil {
			m.logger.Debug("Dropping UDP packet", "size", n, slog.Any("error", err))
		}
	}
}

// Write sends one datagram without waiting for any acknowledgement.
func (m *Media) Write(p []byte) error {
	for len(p) > 0 {
		n, err := m.conn.Write(p)
		if err != nil {
			return fmt.Errorf("udp write: %w", err)
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func (m *Media) LocalAddr() net.Addr {
	return m.conn.LocalAddr()
}

func (m *Media) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.conn.Close()
	})
	return m.closeErr
}
