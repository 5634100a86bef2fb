// Package e2e holds an in-process Mumble server for exercising the client
// over real sockets.
package e2e

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/cryptstate"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/udpproto"
)

const waitTimeout = 3 * time.Second

// Server accepts a single client over TLS and listens for voice on the
// same port over UDP.
type Server struct {
	t           *testing.T
	listener    net.Listener
	udp         *net.UDPConn
	Fingerprint [32]byte

	accepted chan *Conn
}

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "murmur e2e"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// listenPair binds TCP and UDP on one port. The UDP bind can lose a race
// for the port, so it is retried with a fresh TCP port.
func listenPair(t *testing.T, cfg *tls.Config) (net.Listener, *net.UDPConn) {
	t.Helper()
	var lastErr error
	for range 10 {
		ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		udp, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		if err == nil {
			return ln, udp
		}
		ln.Close()
		lastErr = err
	}
	t.Fatalf("failed to bind TCP and UDP on one port: %v", lastErr)
	return nil, nil
}

func StartServer(t *testing.T) *Server {
	t.Helper()
	cert := selfSigned(t)
	ln, udp := listenPair(t, &tls.Config{Certificates: []tls.Certificate{cert}})
	s := &Server{
		t:           t,
		listener:    ln,
		udp:         udp,
		Fingerprint: sha256.Sum256(cert.Certificate[0]),
		accepted:    make(chan *Conn, 1),
	}
	t.Cleanup(func() {
		ln.Close()
		udp.Close()
	})

	go func() {
		raw, err := ln.Accept()
		if err != nil {
			return
		}
		s.accepted <- newConn(raw)
	}()
	return s
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Accept waits for the client to connect.
func (s *Server) Accept() *Conn {
	s.t.Helper()
	select {
	case c := <-s.accepted:
		s.t.Cleanup(c.Close)
		return c
	case <-time.After(waitTimeout):
		s.t.Fatal("client did not connect")
		return nil
	}
}

// ReadUDP waits for one datagram.
func (s *Server) ReadUDP() ([]byte, *net.UDPAddr) {
	s.t.Helper()
	buf := make([]byte, udpproto.MaxPacketSize)
	require.NoError(s.t, s.udp.SetReadDeadline(time.Now().Add(waitTimeout)))
	n, addr, err := s.udp.ReadFromUDP(buf)
	require.NoError(s.t, err, "no datagram from client")
	return buf[:n], addr
}

func (s *Server) WriteUDP(b []byte, addr *net.UDPAddr) {
	s.t.Helper()
	_, err := s.udp.WriteToUDP(b, addr)
	require.NoError(s.t, err)
}

// Conn is the server side of one control connection.
type Conn struct {
	conn    net.Conn
	frames  chan mumbleproto.Frame
	readErr chan error

	writeMu sync.Mutex
	once    sync.Once
}

func newConn(raw net.Conn) *Conn {
	c := &Conn{
		conn:    raw,
		frames:  make(chan mumbleproto.Frame, 64),
		readErr: make(chan error, 1),
	}
	go func() {
		fr := mumbleproto.NewFrameReader(raw)
		for {
			f, err := fr.ReadFrame()
			if err != nil {
				c.readErr <- err
				close(c.frames)
				return
			}
			c.frames <- f
		}
	}()
	return c
}

func (c *Conn) Send(m mumbleproto.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(mumbleproto.EncodeMessage(m))
	return err
}

// Expect returns the next frame of type want, skipping pings and anything
// else in between.
func (c *Conn) Expect(want mumbleproto.MessageType) (mumbleproto.Message, error) {
	deadline := time.After(waitTimeout)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return nil, fmt.Errorf("connection closed waiting for %s: %w", want, <-c.readErr)
			}
			if f.Type != want {
				continue
			}
			return mumbleproto.Decode(f.Type, f.Payload)
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for %s", want)
		}
	}
}

// WaitClosed waits for the client to hang up.
func (c *Conn) WaitClosed() error {
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return nil
			}
		case <-deadline:
			return errors.New("client did not close the connection")
		}
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		c.conn.Close()
	})
}

// World is the state a handshake announces.
type World struct {
	Version  mumbleproto.SemVer
	Channels []*mumbleproto.ChannelState
	Users    []*mumbleproto.UserState
	Self     uint32
	Welcome  string
}

// Keys are the voice cipher secrets sent in CryptSetup.
type Keys struct {
	Key         []byte
	ClientNonce []byte
	ServerNonce []byte
}

func NewKeys() Keys {
	k := Keys{
		Key:         make([]byte, cryptstate.KeySize),
		ClientNonce: make([]byte, cryptstate.KeySize),
		ServerNonce: make([]byte, cryptstate.KeySize),
	}
	rand.Read(k.Key)
	rand.Read(k.ClientNonce)
	rand.Read(k.ServerNonce)
	return k
}

// ServerCrypt returns the server side cipher for k.
func (k Keys) ServerCrypt() (*cryptstate.CryptState, error) {
	cs := cryptstate.New()
	if err := cs.SetKey(k.Key, k.ServerNonce, k.ClientNonce); err != nil {
		return nil, err
	}
	return cs, nil
}

// Handshake plays the server side of a login: it waits for Version and
// Authenticate, then sends the version, keys, world and ServerSync.
func (c *Conn) Handshake(w World, keys *Keys) (*mumbleproto.Authenticate, error) {
	if _, err := c.Expect(mumbleproto.TypeVersion); err != nil {
		return nil, err
	}
	m, err := c.Expect(mumbleproto.TypeAuthenticate)
	if err != nil {
		return nil, err
	}
	auth := m.(*mumbleproto.Authenticate)

	msgs := []mumbleproto.Message{
		&mumbleproto.Version{
			VersionV1: mumbleproto.Ptr(w.Version.V1()),
			VersionV2: mumbleproto.Ptr(w.Version.V2()),
			Release:   mumbleproto.Ptr("e2e"),
		},
	}
	if keys != nil {
		msgs = append(msgs, &mumbleproto.CryptSetup{
			Key:         keys.Key,
			ClientNonce: keys.ClientNonce,
			ServerNonce: keys.ServerNonce,
		})
	}
	for _, ch := range w.Channels {
		msgs = append(msgs, ch)
	}
	for _, u := range w.Users {
		msgs = append(msgs, u)
	}
	msgs = append(msgs, &mumbleproto.ServerSync{
		Session:     mumbleproto.Ptr(w.Self),
		WelcomeText: mumbleproto.Ptr(w.Welcome),
	})
	for _, m := range msgs {
		if err := c.Send(m); err != nil {
			return nil, fmt.Errorf("send %s: %w", m.Type(), err)
		}
	}
	return auth, nil
}
