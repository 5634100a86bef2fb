package state

import (
	"cmp"
	"slices"
)

// Snapshot is a deep copy of a Session that may be read from any
// goroutine.
type Snapshot struct {
	Channels    map[uint32]Channel
	Users       map[uint32]User
	Self        uint32
	Synced      bool
	WelcomeText string
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Channels:    make(map[uint32]Channel, len(s.channels)),
		Users:       make(map[uint32]User, len(s.users)),
		Self:        s.self,
		Synced:      s.synced,
		WelcomeText: s.welcomeText,
	}
	for id, ch := range s.channels {
		snap.Channels[id] = ch.clone()
	}
	for session, u := range s.users {
		snap.Users[session] = u.clone()
	}
	return snap
}

// Children returns the channels whose parent is id, ordered by position
// and then name.
func (s Snapshot) Children(id uint32) []Channel {
	var out []Channel
	for _, ch := range s.Channels {
		if ch.HasParent && ch.ParentID == id && ch.ID != id {
			out = append(out, ch)
		}
	}
	slices.SortFunc(out, func(a, b Channel) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

// UsersIn returns the users in channel id ordered by name.
func (s Snapshot) UsersIn(id uint32) []User {
	var out []User
	for _, u := range s.Users {
		if u.ChannelID == id {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b User) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Session, b.Session))
	})
	return out
}

// ChannelByName returns every channel called name.
func (s Snapshot) ChannelByName(name string) map[uint32]Channel {
	out := make(map[uint32]Channel)
	for id, ch := range s.Channels {
		if ch.Name == name {
			out[id] = ch
		}
	}
	return out
}
