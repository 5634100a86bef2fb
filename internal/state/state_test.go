package state_test

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/state"
)

func u32(v uint32) *uint32 { return &v }
func str(v string) *string { return &v }
func boolean(v bool) *bool { return &v }

func channel(id, parent uint32, name string) *mumbleproto.ChannelState {
	return &mumbleproto.ChannelState{ChannelID: u32(id), Parent: u32(parent), Name: str(name)}
}

func user(session, channel uint32, name string) *mumbleproto.UserState {
	return &mumbleproto.UserState{Session: u32(session), ChannelID: u32(channel), Name: str(name)}
}

// synced returns a session holding a small tree that has completed sync.
//
//	0 Root
//	├── 1 Lobby (alice)
//	└── 2 Games
//	    └── 3 Quiet (bob)
func synced(t *testing.T) *state.Session {
	t.Helper()
	s := state.New(nil)
	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(0), Name: str("Root")})
	s.ApplyChannelState(channel(1, 0, "Lobby"))
	s.ApplyChannelState(channel(2, 0, "Games"))
	s.ApplyChannelState(channel(3, 2, "Quiet"))
	s.ApplyUserState(user(10, 1, "alice"))
	s.ApplyUserState(user(11, 3, "bob"))
	events := s.ApplyServerSync(&mumbleproto.ServerSync{Session: u32(10), WelcomeText: str("hi"), MaxBandwidth: u32(72000)})
	require.Equal(t, []event.Event{event.Synced{SelfSession: 10, WelcomeText: "hi", MaxBandwidth: 72000}}, events)
	return s
}

func TestPreSyncDeltasEmitNothing(t *testing.T) {
	s := state.New(nil)
	require.Empty(t, s.ApplyChannelState(channel(1, 0, "Lobby")))
	require.Empty(t, s.ApplyUserState(user(5, 1, "carol")))
	require.Empty(t, s.ApplyUserState(&mumbleproto.UserState{Session: u32(5), ChannelID: u32(0)}))
	require.Empty(t, s.RemoveUser(&mumbleproto.UserRemove{Session: u32(5)}))
	require.Empty(t, s.RemoveChannel(1))
	require.False(t, s.Synced())
	_, ok := s.Self()
	require.False(t, ok)
}

func TestSparseChannelUpdate(t *testing.T) {
	s := synced(t)
	s.ApplyChannelState(&mumbleproto.ChannelState{
		ChannelID:   u32(1),
		Description: str("welcome"),
		Position:    mumbleproto.Ptr(int32(-2)),
		MaxUsers:    u32(10),
	})

	events := s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), Temporary: boolean(true)})
	require.Equal(t, []event.Event{event.ChannelChanged{ChannelID: 1}}, events)

	ch, ok := s.Channel(1)
	require.True(t, ok)
	require.Equal(t, "Lobby", ch.Name)
	require.Equal(t, "welcome", ch.Description)
	require.Equal(t, int32(-2), ch.Position)
	require.Equal(t, uint32(10), ch.MaxUsers)
	require.True(t, ch.Temporary)
	require.Equal(t, uint32(0), ch.ParentID)
	require.True(t, ch.HasParent)
}

func TestSparseUserUpdate(t *testing.T) {
	s := synced(t)
	s.ApplyUserState(&mumbleproto.UserState{Session: u32(10), SelfMute: boolean(true), Comment: str("afk soon")})
	events := s.ApplyUserState(&mumbleproto.UserState{Session: u32(10), SelfDeaf: boolean(true)})
	require.Equal(t, []event.Event{event.UserChanged{Session: 10}}, events)

	alice, ok := s.Self()
	require.True(t, ok)
	require.Equal(t, "alice", alice.Name)
	require.Equal(t, uint32(1), alice.ChannelID)
	require.True(t, alice.SelfMute)
	require.True(t, alice.SelfDeaf)
	require.Equal(t, "afk soon", alice.Comment)

	// Explicit false clears.
	s.ApplyUserState(&mumbleproto.UserState{Session: u32(10), SelfMute: boolean(false)})
	alice, _ = s.Self()
	require.False(t, alice.SelfMute)
	require.True(t, alice.SelfDeaf)
}

func TestChannelLinks(t *testing.T) {
	s := synced(t)
	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), Links: []uint32{2, 3}})
	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), LinksAdd: []uint32{0}, LinksRemove: []uint32{2}})

	ch, _ := s.Channel(1)
	require.True(t, ch.Links.Has(0))
	require.False(t, ch.Links.Has(2))
	require.True(t, ch.Links.Has(3))

	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), Links: []uint32{2}})
	ch, _ = s.Channel(1)
	require.Len(t, ch.Links, 1)
	require.True(t, ch.Links.Has(2))

	s.RemoveChannel(2)
	ch, _ = s.Channel(1)
	require.False(t, ch.Links.Has(2), "removed channel still linked")
}

func TestReparent(t *testing.T) {
	s := synced(t)
	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(3), Parent: u32(1)})

	require.Equal(t, []uint32{3}, s.Children(1))
	require.Empty(t, s.Children(2))
	require.Equal(t, []uint32{1, 2}, s.Children(0))
}

func TestRemoveChannel(t *testing.T) {
	s := synced(t)
	events := s.RemoveChannel(2)
	require.Equal(t, []event.Event{event.ChannelRemoved{ChannelID: 2}}, events)

	_, ok := s.Channel(2)
	require.False(t, ok)
	require.Equal(t, []uint32{1}, s.Children(0))
	require.Empty(t, s.Children(2))

	// The orphan keeps its recorded parent.
	quiet, ok := s.Channel(3)
	require.True(t, ok)
	require.Equal(t, uint32(2), quiet.ParentID)

	require.Nil(t, s.RemoveChannel(42))
}

func TestUserChangedChannel(t *testing.T) {
	s := synced(t)

	var seen []uint32
	events := s.ApplyUserState(&mumbleproto.UserState{Session: u32(11), ChannelID: u32(1)})
	for _, e := range events {
		if moved, ok := e.(event.UserChangedChannel); ok {
			require.Equal(t, event.UserChangedChannel{Session: 11, From: 3, To: 1}, moved)
			// The index already reflects the move.
			seen = s.UsersIn(moved.To)
			require.Empty(t, s.UsersIn(moved.From))
		}
	}
	require.Equal(t, []uint32{10, 11}, seen)
	require.Equal(t, []event.Event{
		event.UserChangedChannel{Session: 11, From: 3, To: 1},
		event.UserChanged{Session: 11},
	}, events)

	// Same channel again is not a move.
	events = s.ApplyUserState(&mumbleproto.UserState{Session: u32(11), ChannelID: u32(1)})
	require.Equal(t, []event.Event{event.UserChanged{Session: 11}}, events)
}

func TestUserJoinAndLeave(t *testing.T) {
	s := synced(t)
	events := s.ApplyUserState(user(12, 2, "carol"))
	require.Equal(t, []event.Event{event.UserJoined{Session: 12}}, events)
	require.Equal(t, []uint32{12}, s.UsersIn(2))

	_, ok := s.Audio().Get(12)
	require.True(t, ok, "joined user has no audio buffer")

	events = s.RemoveUser(&mumbleproto.UserRemove{Session: u32(12), Actor: u32(10), Reason: str("bye"), Ban: boolean(true)})
	require.Equal(t, []event.Event{event.UserLeft{Session: 12, Actor: 10, Reason: "bye", Ban: true}}, events)
	require.Empty(t, s.UsersIn(2))

	_, ok = s.User(12)
	require.False(t, ok)
	_, ok = s.Audio().Get(12)
	require.False(t, ok, "removed user kept its audio buffer")
	require.Nil(t, s.RemoveUser(&mumbleproto.UserRemove{Session: u32(12)}))
}

func TestNewUserWithoutChannelIsInRoot(t *testing.T) {
	s := synced(t)
	s.ApplyUserState(&mumbleproto.UserState{Session: u32(20), Name: str("dave")})
	require.Equal(t, []uint32{20}, s.UsersIn(0))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := synced(t)
	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), Links: []uint32{2}})
	snap := s.Snapshot()

	s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(1), Name: str("Renamed"), LinksAdd: []uint32{3}})
	s.ApplyUserState(&mumbleproto.UserState{Session: u32(10), ChannelID: u32(2)})

	require.Equal(t, "Lobby", snap.Channels[1].Name)
	require.False(t, snap.Channels[1].Links.Has(3))
	require.Equal(t, uint32(1), snap.Users[10].ChannelID)
	require.True(t, snap.Synced)
	require.Equal(t, uint32(10), snap.Self)

	names := func(chs []state.Channel) []string {
		var out []string
		for _, ch := range chs {
			out = append(out, ch.Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"Games", "Lobby"}, names(snap.Children(0))); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, snap.UsersIn(3), 1)
	require.Len(t, snap.ChannelByName("Quiet"), 1)
}

// After any sequence of channel deltas, the reverse index agrees with each
// channel's parent and never mentions a removed channel.
func TestChannelIndexInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := state.New(nil)
	s.ApplyServerSync(&mumbleproto.ServerSync{Session: u32(1)})

	removed := map[uint32]bool{}
	for step := 0; step < 5000; step++ {
		id := uint32(rng.IntN(40))
		switch rng.IntN(4) {
		case 0:
			s.RemoveChannel(id)
			removed[id] = true
		default:
			s.ApplyChannelState(&mumbleproto.ChannelState{ChannelID: u32(id), Parent: u32(uint32(rng.IntN(40)))})
			delete(removed, id)
		}

		if step%50 != 0 {
			continue
		}
		for parent := uint32(0); parent < 40; parent++ {
			for _, child := range s.Children(parent) {
				require.False(t, removed[child], "removed channel %d listed under %d", child, parent)
				ch, ok := s.Channel(child)
				require.True(t, ok, "child %d of %d unknown", child, parent)
				require.Equal(t, parent, ch.ParentID, "child %d listed under wrong parent", child)
			}
		}
	}
}

func TestAudioBuffers(t *testing.T) {
	a := state.NewAudioBuffers(0, -1)
	b := a.Add(7)
	require.Equal(t, state.DefaultBufferCapacity, b.Cap())
	require.Same(t, b, a.Add(7))

	a.Add(3)
	a.Add(9)
	bufs := a.Buffers()
	require.Len(t, bufs, 3)
	require.Same(t, b, bufs[1], "buffers not in session order")

	a.Remove(7)
	require.Equal(t, 2, a.Len())

	b.Write(make([]int16, state.DefaultJitterThreshold-1))
	require.False(t, b.Satisfied())
	b.Write([]int16{1})
	require.True(t, b.Satisfied())
}
