package e2e_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/e2e"
	"github.com/glizzus/murmur/internal/audio"
	"github.com/glizzus/murmur/internal/client"
	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/generator"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/opus"
	"github.com/glizzus/murmur/internal/state"
	"github.com/glizzus/murmur/internal/transport"
	"github.com/glizzus/murmur/internal/udpproto"
)

// fakeDecoder turns a packet into one frame of its first byte.
type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte, pcm []int16) (int, error) {
	for i := range audio.FrameSize {
		pcm[i] = int16(data[0])
	}
	return audio.FrameSize, nil
}

func (fakeDecoder) DecodePLC(pcm []int16) error {
	clear(pcm)
	return nil
}

var _ opus.Decoder = fakeDecoder{}

func newClient(t *testing.T, srv *e2e.Server, forceTCP bool, configure ...func(*client.Config)) *client.Client {
	t.Helper()
	cfg := client.Config{
		Addr:     srv.Addr(),
		Trust:    transport.TrustPinned(srv.Fingerprint),
		ForceTCP: forceTCP,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	c := client.New(cfg,
		client.WithIDGenerator(generator.Static[string]{Value: "e2e"}),
		client.WithDecoderFactory(func() (opus.Decoder, error) { return fakeDecoder{}, nil }),
	)
	t.Cleanup(c.Disconnect)
	return c
}

// waitFor returns the next event of type T.
func waitFor[T event.Event](t *testing.T, events <-chan event.Event) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if got, ok := e.(T); ok {
				return got
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func world(version mumbleproto.SemVer) e2e.World {
	return e2e.World{
		Version: version,
		Channels: []*mumbleproto.ChannelState{
			{ChannelID: mumbleproto.Ptr(uint32(0)), Name: mumbleproto.Ptr("Root")},
			{ChannelID: mumbleproto.Ptr(uint32(1)), Parent: mumbleproto.Ptr(uint32(0)), Name: mumbleproto.Ptr("Lobby")},
			{ChannelID: mumbleproto.Ptr(uint32(2)), Parent: mumbleproto.Ptr(uint32(0)), Name: mumbleproto.Ptr("AFK"), Position: mumbleproto.Ptr(int32(5))},
		},
		Users: []*mumbleproto.UserState{
			{Session: mumbleproto.Ptr(uint32(1)), Name: mumbleproto.Ptr("alice"), ChannelID: mumbleproto.Ptr(uint32(1))},
			{Session: mumbleproto.Ptr(uint32(2)), Name: mumbleproto.Ptr("bob"), ChannelID: mumbleproto.Ptr(uint32(1))},
		},
		Self:    1,
		Welcome: "hello",
	}
}

func connect(t *testing.T, c *client.Client, srv *e2e.Server, w e2e.World, keys *e2e.Keys) (*e2e.Conn, <-chan event.Event) {
	t.Helper()
	events, unsubscribe := c.Events().Chan(128)
	t.Cleanup(unsubscribe)

	require.NoError(t, c.Connect(t.Context(), nil))
	conn := srv.Accept()
	require.NoError(t, c.Authenticate("alice", "", mumbleproto.ClientTypeRegular, "token"))

	auth, err := conn.Handshake(w, keys)
	require.NoError(t, err)
	require.Equal(t, "alice", *auth.Username)
	require.Nil(t, auth.Password)
	require.True(t, *auth.Opus)
	require.Equal(t, []string{"token"}, auth.Tokens)

	synced := waitFor[event.Synced](t, events)
	require.Equal(t, uint32(1), synced.SelfSession)
	return conn, events
}

func TestConnectSyncsState(t *testing.T) {
	srv := e2e.StartServer(t)
	c := newClient(t, srv, true)
	conn, events := connect(t, c, srv, world(mumbleproto.SemVer{Major: 1, Minor: 5}), nil)

	snap, err := c.Snapshot(t.Context())
	require.NoError(t, err)

	var names []string
	for _, ch := range snap.Children(state.RootChannel) {
		names = append(names, ch.Name)
	}
	if diff := cmp.Diff([]string{"Lobby", "AFK"}, names); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}

	var users []string
	for _, u := range snap.UsersIn(1) {
		users = append(users, u.Name)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "hello", snap.WelcomeText)

	require.NoError(t, c.JoinChannel(2))
	m, err := conn.Expect(mumbleproto.TypeUserState)
	require.NoError(t, err)
	move := m.(*mumbleproto.UserState)
	require.Equal(t, uint32(1), *move.Session)
	require.Equal(t, uint32(2), *move.ChannelID)

	require.NoError(t, conn.Send(&mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(1)), ChannelID: mumbleproto.Ptr(uint32(2))}))
	moved := waitFor[event.UserChangedChannel](t, events)
	if diff := cmp.Diff(event.UserChangedChannel{Session: 1, From: 1, To: 2}, moved); diff != "" {
		t.Errorf("move mismatch (-want +got):\n%s", diff)
	}

	c.Disconnect()
	gone := waitFor[event.Disconnected](t, events)
	require.Equal(t, "client disconnected", gone.Reason)
	require.NoError(t, gone.Err)
	require.NoError(t, conn.WaitClosed())
}

func TestTunneledVoice(t *testing.T) {
	srv := e2e.StartServer(t)
	c := newClient(t, srv, true)
	conn, events := connect(t, c, srv, world(mumbleproto.SemVer{Major: 1, Minor: 5}), nil)

	dialect := udpproto.Select(mumbleproto.SemVer{Major: 1, Minor: 5}, udpproto.RoleServer)
	for seq, last := range []bool{false, false, true} {
		packet := udpproto.Encode(dialect, &udpproto.Audio{
			Session:    2,
			Sequence:   uint64(seq),
			Payload:    []byte{9},
			Terminator: last,
		})
		require.NoError(t, conn.Send(&mumbleproto.UDPTunnel{Packet: packet}))
	}

	require.Equal(t, event.UserTalking{Session: 2, Talking: true}, waitFor[event.UserTalking](t, events))
	require.Equal(t, event.UserTalking{Session: 2, Talking: false}, waitFor[event.UserTalking](t, events))

	buf, ok := c.Audio().Get(2)
	require.True(t, ok)
	require.Equal(t, 3*audio.FrameSize, buf.Len())

	require.NoError(t, c.SendAudio([]byte{1, 2, 3}, true))
	m, err := conn.Expect(mumbleproto.TypeUDPTunnel)
	require.NoError(t, err)
	p, err := dialect.Decode(m.(*mumbleproto.UDPTunnel).Packet)
	require.NoError(t, err)
	sent := p.(*udpproto.Audio)
	require.Equal(t, []byte{1, 2, 3}, sent.Payload)
	require.True(t, sent.Terminator)
}

func TestUDPVoice(t *testing.T) {
	legacy := mumbleproto.SemVer{Major: 1, Minor: 4}
	srv := e2e.StartServer(t)
	c := newClient(t, srv, false)
	keys := e2e.NewKeys()
	_, events := connect(t, c, srv, world(legacy), &keys)

	crypt, err := keys.ServerCrypt()
	require.NoError(t, err)
	dialect := udpproto.Select(legacy, udpproto.RoleServer)

	// The first datagram is the ping announcing the client's address.
	packet, addr := srv.ReadUDP()
	plain, err := crypt.Decrypt(packet)
	require.NoError(t, err)
	p, err := dialect.Decode(plain)
	require.NoError(t, err)
	require.IsType(t, &udpproto.Ping{}, p)

	reply, err := crypt.Encrypt(plain)
	require.NoError(t, err)
	srv.WriteUDP(reply, addr)

	voice, err := crypt.Encrypt(udpproto.Encode(dialect, &udpproto.Audio{Session: 2, Payload: []byte{4}}))
	require.NoError(t, err)
	srv.WriteUDP(voice, addr)
	require.Equal(t, event.UserTalking{Session: 2, Talking: true}, waitFor[event.UserTalking](t, events))

	require.NoError(t, c.SendAudio([]byte{5, 6}, false))
	packet, _ = srv.ReadUDP()
	plain, err = crypt.Decrypt(packet)
	require.NoError(t, err)
	p, err = dialect.Decode(plain)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6}, p.(*udpproto.Audio).Payload)

	require.Eventually(t, func() bool {
		return c.Stats().Crypt.Good >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFallbackToTunnel(t *testing.T) {
	const interval = 20 * time.Millisecond
	legacy := mumbleproto.SemVer{Major: 1, Minor: 4}
	srv := e2e.StartServer(t)
	c := newClient(t, srv, false, func(cfg *client.Config) {
		cfg.PingInterval = interval
	})

	var mu sync.Mutex
	var changes []event.ModeChanged
	unsubscribe := event.SubscribeFunc(c.Events(), func(e event.ModeChanged) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, e)
	})
	defer unsubscribe()

	keys := e2e.NewKeys()
	conn, _ := connect(t, c, srv, world(legacy), &keys)

	// UDP pings go unanswered, so voice moves to the control channel.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, c.SendAudio([]byte{7, 8}, true))
	m, err := conn.Expect(mumbleproto.TypeUDPTunnel)
	require.NoError(t, err)
	p, err := udpproto.Select(legacy, udpproto.RoleServer).Decode(m.(*mumbleproto.UDPTunnel).Packet)
	require.NoError(t, err)
	sent := p.(*udpproto.Audio)
	require.Equal(t, []byte{7, 8}, sent.Payload)
	require.True(t, sent.Terminator)

	// More missed pings do not announce the switch again.
	time.Sleep(10 * interval)
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]event.ModeChanged{{Tunneling: true}}, changes); diff != "" {
		t.Errorf("mode changes mismatch (-want +got):\n%s", diff)
	}
}

func TestRejected(t *testing.T) {
	srv := e2e.StartServer(t)
	c := newClient(t, srv, true)
	events, unsubscribe := c.Events().Chan(32)
	defer unsubscribe()

	require.NoError(t, c.Connect(t.Context(), nil))
	conn := srv.Accept()
	_, err := conn.Expect(mumbleproto.TypeVersion)
	require.NoError(t, err)
	require.NoError(t, conn.Send(&mumbleproto.Reject{
		RejectType: mumbleproto.Ptr(mumbleproto.RejectWrongUserPW),
		Reason:     mumbleproto.Ptr("bad password"),
	}))

	rejected := waitFor[event.Rejected](t, events)
	require.Equal(t, "bad password", rejected.Reason)

	gone := waitFor[event.Disconnected](t, events)
	var rejectErr *client.RejectError
	require.True(t, errors.As(gone.Err, &rejectErr))
	require.Equal(t, mumbleproto.RejectWrongUserPW, rejectErr.Type)

	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client did not shut down")
	}
	require.ErrorIs(t, c.Connect(t.Context(), nil), client.ErrAlreadyConnected)
}

func TestServerHangUp(t *testing.T) {
	srv := e2e.StartServer(t)
	c := newClient(t, srv, true)
	conn, events := connect(t, c, srv, world(mumbleproto.SemVer{Major: 1, Minor: 5}), nil)

	conn.Close()
	gone := waitFor[event.Disconnected](t, events)
	require.Equal(t, "server closed connection", gone.Reason)

	select {
	case e := <-events:
		if _, ok := e.(event.Disconnected); ok {
			t.Fatal("second Disconnected event")
		}
	case <-time.After(100 * time.Millisecond):
	}
}
