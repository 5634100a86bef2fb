// Package mumbleproto defines the control channel messages and their
// framing.
//
// Every control frame is a 2-byte big-endian message type, a 4-byte
// big-endian payload length and a protobuf encoded payload. Messages are
// hand-mapped onto protowire so that optional fields keep their presence:
// a nil pointer means the field was absent on the wire, which the session
// state relies on for sparse updates.
package mumbleproto

import "fmt"

type MessageType uint16

const (
	TypeVersion MessageType = iota
	TypeUDPTunnel
	TypeAuthenticate
	TypePing
	TypeReject
	TypeServerSync
	TypeChannelRemove
	TypeChannelState
	TypeUserRemove
	TypeUserState
	TypeBanList
	TypeTextMessage
	TypePermissionDenied
	TypeACL
	TypeQueryUsers
	TypeCryptSetup
	TypeContextActionModify
	TypeContextAction
	TypeUserList
	TypeVoiceTarget
	TypePermissionQuery
	TypeCodecVersion
	TypeUserStats
	TypeRequestBlob
	TypeServerConfig
	TypeSuggestConfig
	TypePluginDataTransmission
)

var typeNames = [...]string{
	"Version",
	"UDPTunnel",
	"Authenticate",
	"Ping",
	"Reject",
	"ServerSync",
	"ChannelRemove",
	"ChannelState",
	"UserRemove",
	"UserState",
	"BanList",
	"TextMessage",
	"PermissionDenied",
	"ACL",
	"QueryUsers",
	"CryptSetup",
	"ContextActionModify",
	"ContextAction",
	"UserList",
	"VoiceTarget",
	"PermissionQuery",
	"CodecVersion",
	"UserStats",
	"RequestBlob",
	"ServerConfig",
	"SuggestConfig",
	"PluginDataTransmission",
}

// Known reports whether t is part of the protocol.
func (t MessageType) Known() bool {
	return int(t) < len(typeNames)
}

func (t MessageType) String() string {
	if t.Known() {
		return typeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}

// Message is implemented by every control message.
type Message interface {
	Type() MessageType
	// AppendMarshal appends the protobuf encoding to b.
	AppendMarshal(b []byte) []byte
	Unmarshal(b []byte) error
}

// Marshal returns the protobuf encoding of m.
func Marshal(m Message) []byte {
	return m.AppendMarshal(nil)
}

// New returns an empty message for t.
func New(t MessageType) (Message, error) {
	switch t {
	case TypeVersion:
		return &Version{}, nil
	case TypeUDPTunnel:
		return &UDPTunnel{}, nil
	case TypeAuthenticate:
		return &Authenticate{}, nil
	case TypePing:
		return &Ping{}, nil
	case TypeReject:
		return &Reject{}, nil
	case TypeServerSync:
		return &ServerSync{}, nil
	case TypeChannelRemove:
		return &ChannelRemove{}, nil
	case TypeChannelState:
		return &ChannelState{}, nil
	case TypeUserRemove:
		return &UserRemove{}, nil
	case TypeUserState:
		return &UserState{}, nil
	case TypeTextMessage:
		return &TextMessage{}, nil
	case TypePermissionDenied:
		return &PermissionDenied{}, nil
	case TypeQueryUsers:
		return &QueryUsers{}, nil
	case TypeCryptSetup:
		return &CryptSetup{}, nil
	case TypeContextAction:
		return &ContextAction{}, nil
	case TypeVoiceTarget:
		return &VoiceTarget{}, nil
	case TypePermissionQuery:
		return &PermissionQuery{}, nil
	case TypeCodecVersion:
		return &CodecVersion{}, nil
	case TypeRequestBlob:
		return &RequestBlob{}, nil
	case TypeServerConfig:
		return &ServerConfig{}, nil
	case TypeSuggestConfig:
		return &SuggestConfig{}, nil
	case TypePluginDataTransmission:
		return &PluginDataTransmission{}, nil
	case TypeBanList, TypeACL, TypeContextActionModify, TypeUserList, TypeUserStats:
		return &Raw{MessageType: t}, nil
	}
	return nil, &UnknownTypeError{Type: t}
}

// Decode parses payload as a message of type t.
func Decode(t MessageType, payload []byte) (Message, error) {
	m, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := m.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return m, nil
}

// UnknownTypeError is returned for type ids outside the protocol.
type UnknownTypeError struct {
	Type MessageType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %d", uint16(e.Type))
}

var _ error = (*UnknownTypeError)(nil)

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}
