// Package event defines everything a connection reports to the outside
// world and the bus that delivers it.
package event

import (
	"github.com/glizzus/murmur/internal/cryptstate"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/ping"
)

// Event is implemented only by the types in this package.
type Event interface {
	isEvent()
}

// Connected fires once the TLS handshake has completed.
type Connected struct{}

// Disconnected fires exactly once per connection.
type Disconnected struct {
	Reason string
	Err    error
}

type ServerVersion struct {
	Version   mumbleproto.SemVer
	Release   string
	OS        string
	OSVersion string
}

type Rejected struct {
	Type   mumbleproto.RejectType
	Reason string
}

// Synced fires when the initial state burst is complete.
type Synced struct {
	SelfSession  uint32
	WelcomeText  string
	MaxBandwidth uint32
}

type ServerConfig struct {
	MaxBandwidth     uint32
	WelcomeText      string
	AllowHTML        bool
	MessageLength    uint32
	MaxUsers         uint32
	RecordingAllowed bool
}

// Stats is published after every ping round.
type Stats struct {
	TCP       ping.Stats
	UDP       ping.Stats
	Crypt     cryptstate.Stats
	Tunneling bool
}

// ModeChanged fires when voice moves between UDP and the TCP tunnel.
type ModeChanged struct {
	Tunneling bool
}

type TextMessage struct {
	Actor    uint32
	Sessions []uint32
	Channels []uint32
	Trees    []uint32
	Message  string
}

type PermissionDenied struct {
	DenyType   mumbleproto.DenyType
	Permission uint32
	ChannelID  uint32
	Session    uint32
	Reason     string
	Name       string
}

type ChannelAdded struct {
	ChannelID uint32
}

type ChannelChanged struct {
	ChannelID uint32
}

type ChannelRemoved struct {
	ChannelID uint32
}

type UserJoined struct {
	Session uint32
}

type UserChanged struct {
	Session uint32
}

// UserChangedChannel fires when a user moves after sync. The session
// indices already reflect the move.
type UserChangedChannel struct {
	Session uint32
	From    uint32
	To      uint32
}

type UserLeft struct {
	Session uint32
	Actor   uint32
	Reason  string
	Ban     bool
}

// UserTalking follows the first audio packet of a burst and its
// terminator.
type UserTalking struct {
	Session uint32
	Talking bool
}

func (Connected) isEvent()          {}
func (Disconnected) isEvent()       {}
func (ServerVersion) isEvent()      {}
func (Rejected) isEvent()           {}
func (Synced) isEvent()             {}
func (ServerConfig) isEvent()       {}
func (Stats) isEvent()              {}
func (ModeChanged) isEvent()        {}
func (TextMessage) isEvent()        {}
func (PermissionDenied) isEvent()   {}
func (ChannelAdded) isEvent()       {}
func (ChannelChanged) isEvent()     {}
func (ChannelRemoved) isEvent()     {}
func (UserJoined) isEvent()         {}
func (UserChanged) isEvent()        {}
func (UserChangedChannel) isEvent() {}
func (UserLeft) isEvent()           {}
func (UserTalking) isEvent()        {}
