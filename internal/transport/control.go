package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

var (
	ErrNotConnected = errors.New("control channel not connected")
	ErrClosed       = errors.New("control channel closed")
)

type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const DefaultQueueSize = 256

type ControlOptions struct {
	// ServerName overrides the TLS server name, which otherwise is the
	// host part of the dial address.
	ServerName string
	// Identity is presented as the client certificate when set.
	Identity *tls.Certificate
	// Trust defaults to TrustAll.
	Trust     TrustPolicy
	QueueSize int

	// OnFrame is called from the reader goroutine for every frame, in
	// arrival order.
	OnFrame func(mumbleproto.Frame)
	// OnDisconnect is called exactly once when the channel closes. It must
	// not call Wait.
	OnDisconnect func(reason string, err error)

	Logger *slog.Logger
}

// Control is the reliable control channel. Frames are read and written by
// two dedicated goroutines; Send enqueues onto a bounded queue and blocks
// while it is full.
type Control struct {
	conn   net.Conn
	opts   ControlOptions
	logger *slog.Logger

	state   atomic.Int32
	queue   chan outgoing
	done    chan struct{}
	closing sync.Once
	wg      sync.WaitGroup
}

// outgoing is a frame to write, or a flush marker when flushed is set.
type outgoing struct {
	frame   []byte
	flushed chan struct{}
}

func newControl(opts ControlOptions) *Control {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{
		opts:   opts,
		logger: logger,
		queue:  make(chan outgoing, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// DialControl connects to addr over TCP, performs the TLS handshake and
// starts the reader and writer goroutines.
func DialControl(ctx context.Context, addr string, opts ControlOptions) (*Control, error) {
	c := newControl(opts)
	c.setState(StateConnecting)

	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	serverName := opts.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("parse address %s: %w", addr, err)
		}
		serverName = host
	}

	c.setState(StateHandshaking)
	conn := tls.Client(raw, clientTLSConfig(serverName, opts.Identity, opts.Trust))
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}

	c.start(conn)
	return c, nil
}

// NewControl runs the control protocol over an already established
// connection.
func NewControl(conn net.Conn, opts ControlOptions) *Control {
	c := newControl(opts)
	c.start(conn)
	return c
}

func (c *Control) start(conn net.Conn) {
	c.conn = conn
	c.setState(StateConnected)
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
}

func (c *Control) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Control) State() State {
	return State(c.state.Load())
}

func (c *Control) readLoop() {
	defer c.wg.Done()

	fr := mumbleproto.NewFrameReader(bufio.NewReader(c.conn))
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			var perr *mumbleproto.ProtocolError
			switch {
			case errors.As(err, &perr):
				c.closeWithError("protocol error", err)
			case errors.Is(err, io.EOF):
				c.closeWithError("server closed connection", nil)
			default:
				c.closeWithError("read failed", err)
			}
			return
		}
		if c.opts.OnFrame != nil {
			c.opts.OnFrame(frame)
		}
	}
}

func (c *Control) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case o := <-c.queue:
			if o.flushed != nil {
				close(o.flushed)
				continue
			}
			if _, err := c.conn.Write(o.frame); err != nil {
				c.closeWithError("write failed", err)
				return
			}
		}
	}
}

// Send queues one frame. It blocks while the outbound queue is full until
// ctx is done.
func (c *Control) Send(ctx context.Context, t mumbleproto.MessageType, payload []byte) error {
	switch c.State() {
	case StateConnected:
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotConnected
	}

	frame := mumbleproto.AppendFrame(make([]byte, 0, mumbleproto.HeaderSize+len(payload)), t, payload)
	return c.enqueue(ctx, outgoing{frame: frame})
}

func (c *Control) enqueue(ctx context.Context, o outgoing) error {
	select {
	case c.queue <- o:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every frame queued before the call has been written.
func (c *Control) Flush(ctx context.Context) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	flushed := make(chan struct{})
	if err := c.enqueue(ctx, outgoing{flushed: flushed}); err != nil {
		return err
	}
	select {
	case <-flushed:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage marshals m and queues it.
func (c *Control) SendMessage(ctx context.Context, m mumbleproto.Message) error {
	return c.Send(ctx, m.Type(), mumbleproto.Marshal(m))
}

// Close shuts the channel down. Only the first call has any effect.
func (c *Control) Close(reason string) {
	c.closeWithError(reason, nil)
}

func (c *Control) closeWithError(reason string, err error) {
	c.closing.Do(func() {
		c.setState(StateClosed)
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
		if err != nil {
			c.logger.Warn("Control channel closed", "reason", reason, slog.Any("error", err))
		} else {
			c.logger.Info("Control channel closed", "reason", reason)
		}
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(reason, err)
		}
	})
}

// Done is closed once the channel has closed.
func (c *Control) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the reader and writer goroutines have exited.
func (c *Control) Wait() {
	c.wg.Wait()
}

func (c *Control) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Control) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// PeerCertificates returns the server chain, or nil when the connection
// is not TLS.
func (c *Control) PeerCertificates() []*x509.Certificate {
	tc, ok := c.conn.(*tls.Conn)
	if !ok {
		return nil
	}
	return tc.ConnectionState().PeerCertificates
}
