// Package state holds the channel tree and user roster of one connection.
//
// A Session is built from the deltas the server sends on the control
// channel. It is owned by the goroutine reading that channel and is not
// safe for concurrent use; other goroutines read it through
// client.Client.Query or a Snapshot.
package state

import (
	"slices"

	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/util"
)

// RootChannel is the implicit root of every server's tree.
const RootChannel uint32 = 0

type Channel struct {
	ID                uint32
	ParentID          uint32
	HasParent         bool
	Name              string
	Description       string
	DescriptionHash   []byte
	Temporary         bool
	Position          int32
	MaxUsers          uint32
	IsEnterRestricted bool
	CanEnter          bool
	Links             util.Set[uint32]
}

func (c Channel) clone() Channel {
	c.DescriptionHash = slices.Clone(c.DescriptionHash)
	c.Links = c.Links.Clone()
	return c
}

type User struct {
	Session         uint32
	Name            string
	UserID          uint32
	ChannelID       uint32
	Mute            bool
	Deaf            bool
	Suppress        bool
	SelfMute        bool
	SelfDeaf        bool
	PrioritySpeaker bool
	Recording       bool
	Comment         string
	CommentHash     []byte
	TextureHash     []byte
	Hash            string
	Listening       util.Set[uint32]
}

func (u User) clone() User {
	u.CommentHash = slices.Clone(u.CommentHash)
	u.TextureHash = slices.Clone(u.TextureHash)
	u.Listening = u.Listening.Clone()
	return u
}

type Session struct {
	channels     map[uint32]*Channel
	users        map[uint32]*User
	children     map[uint32]util.Set[uint32]
	channelUsers map[uint32]util.Set[uint32]

	self         uint32
	synced       bool
	welcomeText  string
	maxBandwidth uint32

	audio *AudioBuffers
}

// New returns an empty session. User buffers are registered in audio as
// users appear; a nil audio gets a default registry.
func New(audio *AudioBuffers) *Session {
	if audio == nil {
		audio = NewAudioBuffers(DefaultBufferCapacity, DefaultJitterThreshold)
	}
	return &Session{
		channels:     make(map[uint32]*Channel),
		users:        make(map[uint32]*User),
		children:     make(map[uint32]util.Set[uint32]),
		channelUsers: make(map[uint32]util.Set[uint32]),
		audio:        audio,
	}
}

func (s *Session) Audio() *AudioBuffers {
	return s.audio
}

func addIndex(index map[uint32]util.Set[uint32], key, value uint32) {
	set, ok := index[key]
	if !ok {
		set = make(util.Set[uint32])
		index[key] = set
	}
	set.Add(value)
}

func removeIndex(index map[uint32]util.Set[uint32], key, value uint32) {
	set, ok := index[key]
	if !ok {
		return
	}
	set.Remove(value)
	if len(set) == 0 {
		delete(index, key)
	}
}

// ApplyChannelState creates or updates a channel. Only fields present in m
// are changed.
func (s *Session) ApplyChannelState(m *mumbleproto.ChannelState) []event.Event {
	if m.ChannelID == nil {
		return nil
	}
	id := *m.ChannelID

	ch, existed := s.channels[id]
	if !existed {
		ch = &Channel{ID: id, Links: make(util.Set[uint32])}
		s.channels[id] = ch
	}

	if m.Parent != nil && *m.Parent != id {
		if ch.HasParent {
			removeIndex(s.children, ch.ParentID, id)
		}
		ch.ParentID = *m.Parent
		ch.HasParent = true
		addIndex(s.children, ch.ParentID, id)
	}

	if m.Name != nil {
		ch.Name = *m.Name
	}
	if m.Description != nil {
		ch.Description = *m.Description
	}
	if m.DescriptionHash != nil {
		ch.DescriptionHash = slices.Clone(m.DescriptionHash)
	}
	if m.Temporary != nil {
		ch.Temporary = *m.Temporary
	}
	if m.Position != nil {
		ch.Position = *m.Position
	}
	if m.MaxUsers != nil {
		ch.MaxUsers = *m.MaxUsers
	}
	if m.IsEnterRestricted != nil {
		ch.IsEnterRestricted = *m.IsEnterRestricted
	}
	if m.CanEnter != nil {
		ch.CanEnter = *m.CanEnter
	}

	if len(m.Links) > 0 {
		ch.Links = util.SetOf(m.Links...)
	}
	ch.Links.Add(m.LinksAdd...)
	ch.Links.Remove(m.LinksRemove...)

	if !s.synced {
		return nil
	}
	if existed {
		return []event.Event{event.ChannelChanged{ChannelID: id}}
	}
	return []event.Event{event.ChannelAdded{ChannelID: id}}
}

// RemoveChannel deletes a channel and scrubs it from every index. Its
// children keep their parent id until they are moved or removed.
func (s *Session) RemoveChannel(id uint32) []event.Event {
	ch, ok := s.channels[id]
	if !ok {
		return nil
	}
	if ch.HasParent {
		removeIndex(s.children, ch.ParentID, id)
	}
	delete(s.children, id)
	delete(s.channels, id)
	for _, other := range s.channels {
		other.Links.Remove(id)
	}

	if !s.synced {
		return nil
	}
	return []event.Event{event.ChannelRemoved{ChannelID: id}}
}

// ApplyUserState creates or updates a user. Only fields present in m are
// changed.
func (s *Session) ApplyUserState(m *mumbleproto.UserState) []event.Event {
	if m.Session == nil {
		return nil
	}
	session := *m.Session

	u, existed := s.users[session]
	if !existed {
		u = &User{Session: session, ChannelID: RootChannel, Listening: make(util.Set[uint32])}
		s.users[session] = u
		addIndex(s.channelUsers, RootChannel, session)
		s.audio.Add(session)
	}

	var events []event.Event

	if m.ChannelID != nil && *m.ChannelID != u.ChannelID {
		from := u.ChannelID
		removeIndex(s.channelUsers, from, session)
		u.ChannelID = *m.ChannelID
		addIndex(s.channelUsers, u.ChannelID, session)
		if existed && s.synced {
			events = append(events, event.UserChangedChannel{Session: session, From: from, To: u.ChannelID})
		}
	}

	if m.Name != nil {
		u.Name = *m.Name
	}
	if m.UserID != nil {
		u.UserID = *m.UserID
	}
	if m.Mute != nil {
		u.Mute = *m.Mute
	}
	if m.Deaf != nil {
		u.Deaf = *m.Deaf
	}
	if m.Suppress != nil {
		u.Suppress = *m.Suppress
	}
	if m.SelfMute != nil {
		u.SelfMute = *m.SelfMute
	}
	if m.SelfDeaf != nil {
		u.SelfDeaf = *m.SelfDeaf
	}
	if m.PrioritySpeaker != nil {
		u.PrioritySpeaker = *m.PrioritySpeaker
	}
	if m.Recording != nil {
		u.Recording = *m.Recording
	}
	if m.Comment != nil {
		u.Comment = *m.Comment
	}
	if m.CommentHash != nil {
		u.CommentHash = slices.Clone(m.CommentHash)
	}
	if m.TextureHash != nil {
		u.TextureHash = slices.Clone(m.TextureHash)
	}
	if m.Hash != nil {
		u.Hash = *m.Hash
	}
	u.Listening.Add(m.ListeningChannelAdd...)
	u.Listening.Remove(m.ListeningChannelRemove...)

	if !s.synced {
		return nil
	}
	if existed {
		return append(events, event.UserChanged{Session: session})
	}
	return append(events, event.UserJoined{Session: session})
}

// RemoveUser deletes a user, its index entries and its audio buffer.
func (s *Session) RemoveUser(m *mumbleproto.UserRemove) []event.Event {
	if m.Session == nil {
		return nil
	}
	session := *m.Session
	u, ok := s.users[session]
	if !ok {
		return nil
	}
	removeIndex(s.channelUsers, u.ChannelID, session)
	delete(s.users, session)
	s.audio.Remove(session)

	if !s.synced {
		return nil
	}
	left := event.UserLeft{Session: session}
	if m.Actor != nil {
		left.Actor = *m.Actor
	}
	if m.Reason != nil {
		left.Reason = *m.Reason
	}
	if m.Ban != nil {
		left.Ban = *m.Ban
	}
	return []event.Event{left}
}

// ApplyServerSync marks the end of the initial state burst.
func (s *Session) ApplyServerSync(m *mumbleproto.ServerSync) []event.Event {
	if m.Session != nil {
		s.self = *m.Session
	}
	if m.WelcomeText != nil {
		s.welcomeText = *m.WelcomeText
	}
	if m.MaxBandwidth != nil {
		s.maxBandwidth = *m.MaxBandwidth
	}
	s.synced = true
	return []event.Event{event.Synced{
		SelfSession:  s.self,
		WelcomeText:  s.welcomeText,
		MaxBandwidth: s.maxBandwidth,
	}}
}

func (s *Session) Channel(id uint32) (Channel, bool) {
	ch, ok := s.channels[id]
	if !ok {
		return Channel{}, false
	}
	return ch.clone(), true
}

func (s *Session) User(session uint32) (User, bool) {
	u, ok := s.users[session]
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// Children returns the ids of channels whose parent is id, ascending.
func (s *Session) Children(id uint32) []uint32 {
	return util.SortedKeys(s.children[id])
}

// UsersIn returns the sessions in channel id, ascending.
func (s *Session) UsersIn(id uint32) []uint32 {
	return util.SortedKeys(s.channelUsers[id])
}

// Self returns the local user once ServerSync has named it.
func (s *Session) Self() (User, bool) {
	if !s.synced {
		return User{}, false
	}
	return s.User(s.self)
}

func (s *Session) Synced() bool {
	return s.synced
}
