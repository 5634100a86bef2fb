// Package client runs one connection to a Mumble server: the control
// channel, the voice channel, session state and the tasks that keep them
// alive.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glizzus/murmur/internal/cryptstate"
	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/generator"
	"github.com/glizzus/murmur/internal/handler"
	"github.com/glizzus/murmur/internal/metrics"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/opus"
	"github.com/glizzus/murmur/internal/ping"
	"github.com/glizzus/murmur/internal/state"
	"github.com/glizzus/murmur/internal/transport"
	"github.com/glizzus/murmur/internal/udpproto"
)

var (
	ErrNotConnected     = errors.New("client not connected")
	ErrAlreadyConnected = errors.New("client already connected")
	ErrNotSynced        = errors.New("server has not finished syncing")
)

const (
	DefaultPingInterval = 5 * time.Second
	shutdownTimeout     = 2 * time.Second
)

type Config struct {
	// Addr is the server host:port, used for both TCP and UDP.
	Addr       string
	ServerName string
	Trust      transport.TrustPolicy
	// ForceTCP tunnels all voice over the control channel.
	ForceTCP bool

	// BufferCapacity and JitterThreshold size each speaker's buffer in
	// samples. Zero values take the state package defaults.
	BufferCapacity  int
	JitterThreshold int

	PingInterval time.Duration

	// Release, OS and OSVersion are reported to the server.
	Release   string
	OS        string
	OSVersion string
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithIDGenerator sets where connection ids for log records come from.
func WithIDGenerator(gen generator.Generator[string]) Option {
	return func(c *Client) {
		c.ids = gen
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithDecoderFactory replaces the libopus decoder used for each speaker.
func WithDecoderFactory(fn func() (opus.Decoder, error)) Option {
	return func(c *Client) {
		c.newDecoder = fn
	}
}

// WithClock replaces the clock used to time pings.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is a single use connection to a server. Create a new Client to
// reconnect.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	ids        generator.Generator[string]
	metrics    *metrics.Metrics
	newDecoder func() (opus.Decoder, error)
	now        func() time.Time

	bus     *event.Bus
	audio   *state.AudioBuffers
	session *state.Session
	// sessionMu guards session only while no owner goroutine is running.
	sessionMu sync.Mutex

	crypt   *cryptstate.CryptState
	tracker *ping.Tracker
	router  *handler.Router
	voice   *voiceReceiver

	dialect  atomic.Value
	sequence generator.Counter
	self     atomic.Uint32
	synced   atomic.Bool

	mu   sync.Mutex
	conn *connection
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		logger:     slog.Default(),
		ids:        &generator.UUIDV4Generator{},
		newDecoder: opus.NewDecoder,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.PingInterval <= 0 {
		c.cfg.PingInterval = DefaultPingInterval
	}
	if c.cfg.Release == "" {
		c.cfg.Release = "murmur " + mumbleproto.ClientVersion.String()
	}
	if c.cfg.OS == "" {
		c.cfg.OS = runtime.GOOS
	}
	if c.cfg.OSVersion == "" {
		c.cfg.OSVersion = runtime.GOARCH
	}

	capacity := c.cfg.BufferCapacity
	if capacity <= 0 {
		capacity = state.DefaultBufferCapacity
	}
	threshold := c.cfg.JitterThreshold
	if threshold <= 0 {
		threshold = state.DefaultJitterThreshold
	}

	c.bus = event.NewBus(c.logger)
	c.audio = state.NewAudioBuffers(capacity, threshold)
	c.session = state.New(c.audio)
	c.crypt = cryptstate.New()

	trackerOpts := []ping.Option{ping.WithClock(c.now)}
	if c.cfg.ForceTCP {
		trackerOpts = append(trackerOpts, ping.WithForceTunnel())
	}
	c.tracker = ping.NewTracker(trackerOpts...)
	c.voice = newVoiceReceiver(c)
	c.setDialect(udpproto.Select(mumbleproto.SemVer{}, udpproto.RoleClient))

	if c.metrics != nil {
		c.bus.Subscribe(c.metrics.Observe)
	}
	c.router = c.routes()
	return c
}

func (c *Client) setDialect(d udpproto.Dialect) {
	c.dialect.Store(&d)
}

func (c *Client) currentDialect() udpproto.Dialect {
	return *c.dialect.Load().(*udpproto.Dialect)
}

// Events returns the bus every event of this client is published on.
// Handlers run on the goroutine that owns the session state, or on the
// voice receive goroutine for UserTalking and ModeChanged.
func (c *Client) Events() *event.Bus {
	return c.bus
}

// Audio returns the per-speaker buffers a renderer mixes from.
func (c *Client) Audio() *state.AudioBuffers {
	return c.audio
}

func (c *Client) publish(events ...event.Event) {
	for _, e := range events {
		c.bus.Publish(e)
	}
}

type query struct {
	fn   func(*state.Session)
	done chan struct{}
}

// connection is everything that lives exactly as long as one control
// connection.
type connection struct {
	id     string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	control   *transport.Control
	frames    chan mumbleproto.Frame
	queries   chan query
	ownerDone chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	closing bool
	media   *transport.Media

	stopOnce sync.Once
	reason   string
	err      error
}

// stop records why the connection ended and starts the shutdown. Only the
// first reason is kept.
func (conn *connection) stop(reason string, err error) {
	conn.stopOnce.Do(func() {
		conn.reason = reason
		conn.err = err
	})
	conn.cancel()
}

// goTask starts fn in the task set unless shutdown has begun.
func (conn *connection) goTask(fn func() error) bool {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closing {
		return false
	}
	conn.group.Go(fn)
	return true
}

func (conn *connection) getMedia() *transport.Media {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.media
}

func (c *Client) current() *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Connect dials the server, completes the TLS handshake with identity as
// the client certificate, and announces the client version. ctx bounds
// the dial only; the connection lives until Disconnect or a fault.
func (c *Client) Connect(ctx context.Context, identity *tls.Certificate) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	id, err := c.ids.Next()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to generate connection ID: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	conn := &connection{
		id:        id,
		logger:    c.logger.With("connectionID", id),
		ctx:       groupCtx,
		cancel:    cancel,
		group:     group,
		frames:    make(chan mumbleproto.Frame),
		queries:   make(chan query),
		ownerDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.conn = conn
	c.mu.Unlock()

	conn.logger.Info("Connecting", "addr", c.cfg.Addr)
	control, err := transport.DialControl(ctx, c.cfg.Addr, transport.ControlOptions{
		ServerName: c.cfg.ServerName,
		Identity:   identity,
		Trust:      c.cfg.Trust,
		OnFrame:    c.frameSink(conn),
		OnDisconnect: func(reason string, err error) {
			conn.stop(reason, err)
		},
		Logger: conn.logger,
	})
	if err != nil {
		cancel()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		return err
	}
	conn.control = control
	c.publish(event.Connected{})

	conn.goTask(func() error {
		c.own(conn)
		return nil
	})
	conn.goTask(func() error {
		control.Wait()
		return nil
	})
	conn.goTask(func() error {
		return c.pingLoop(conn)
	})
	go c.supervise(conn)

	version := mumbleproto.ClientVersion
	err = control.SendMessage(ctx, &mumbleproto.Version{
		VersionV1: mumbleproto.Ptr(version.V1()),
		VersionV2: mumbleproto.Ptr(version.V2()),
		Release:   mumbleproto.Ptr(c.cfg.Release),
		OS:        mumbleproto.Ptr(c.cfg.OS),
		OSVersion: mumbleproto.Ptr(c.cfg.OSVersion),
	})
	if err != nil {
		conn.stop("failed to send version", err)
		return fmt.Errorf("failed to send version: %w", err)
	}
	return nil
}

// frameSink hands frames from the control reader to the owner goroutine.
func (c *Client) frameSink(conn *connection) func(mumbleproto.Frame) {
	return func(f mumbleproto.Frame) {
		if c.metrics != nil {
			c.metrics.PacketsReceived.WithLabelValues("tcp", f.Type.String()).Inc()
		}
		select {
		case conn.frames <- f:
		case <-conn.ctx.Done():
		}
	}
}

// own is the only goroutine that touches the session while connected.
func (c *Client) own(conn *connection) {
	defer close(conn.ownerDone)
	for {
		select {
		case f := <-conn.frames:
			c.router.Dispatch(f)
		case q := <-conn.queries:
			q.fn(c.session)
			close(q.done)
		case <-conn.ctx.Done():
			return
		}
	}
}

// supervise waits for the connection to end, tears it down with a bounded
// wait and publishes the single Disconnected event.
func (c *Client) supervise(conn *connection) {
	<-conn.ctx.Done()

	conn.mu.Lock()
	conn.closing = true
	media := conn.media
	conn.mu.Unlock()

	conn.control.Close("client shutting down")
	if media != nil {
		media.Close()
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- conn.group.Wait() }()

	var taskErr error
	select {
	case taskErr = <-waitErr:
	case <-time.After(shutdownTimeout):
		conn.logger.Warn("Timed out waiting for connection tasks", "timeout", shutdownTimeout)
	}

	conn.stop("connection task failed", taskErr)
	if conn.err != nil {
		conn.logger.Warn("Disconnected", "reason", conn.reason, slog.Any("error", conn.err))
	} else {
		conn.logger.Info("Disconnected", "reason", conn.reason)
	}
	c.publish(event.Disconnected{Reason: conn.reason, Err: conn.err})
	close(conn.done)
}

// Disconnect closes the connection and waits for it to shut down.
func (c *Client) Disconnect() {
	conn := c.current()
	if conn == nil {
		return
	}
	conn.stop("client disconnected", nil)
	<-conn.done
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed once the connection has fully shut down. Before Connect
// it is already closed.
func (c *Client) Done() <-chan struct{} {
	conn := c.current()
	if conn == nil {
		return closedChan
	}
	return conn.done
}

// Query runs fn against the session state on the goroutine that owns it.
// fn must not retain the session. Query must not be called from an event
// handler, which already runs on that goroutine.
func (c *Client) Query(ctx context.Context, fn func(*state.Session)) error {
	conn := c.current()
	if conn == nil {
		return c.queryDirect(fn)
	}

	q := query{fn: fn, done: make(chan struct{})}
	select {
	case conn.queries <- q:
	case <-conn.ownerDone:
		return c.queryDirect(fn)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) queryDirect(fn func(*state.Session)) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	fn(c.session)
	return nil
}

// Snapshot returns a copy of the session state.
func (c *Client) Snapshot(ctx context.Context) (state.Snapshot, error) {
	var snap state.Snapshot
	err := c.Query(ctx, func(s *state.Session) {
		snap = s.Snapshot()
	})
	return snap, err
}

// Stats reports the current ping and cipher counters.
func (c *Client) Stats() event.Stats {
	snap := c.tracker.Snapshot()
	return event.Stats{
		TCP:       snap.TCP,
		UDP:       snap.UDP,
		Crypt:     c.crypt.Stats(),
		Tunneling: snap.Tunneling,
	}
}

// SelfSession returns the local user's session once the server has
// synced.
func (c *Client) SelfSession() (uint32, bool) {
	return c.self.Load(), c.synced.Load()
}
