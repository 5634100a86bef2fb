// Package udpproto encodes and decodes voice datagrams.
//
// Two wire dialects exist. Servers older than 1.5.0 speak the legacy
// varint framed format; newer ones speak a one byte kind followed by a
// protobuf message. The dialect is chosen once per connection from the
// server's Version message and then used for every packet in both
// directions, including packets tunneled over the control channel.
package udpproto

import (
	"errors"
	"fmt"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

// MaxPacketSize is the largest datagram either side sends.
const MaxPacketSize = 1024

// Target ids carried in outgoing audio.
const (
	TargetNormal   uint32 = 0
	TargetLoopback uint32 = 31
)

var (
	ErrEmpty            = errors.New("empty packet")
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// KindError is returned for an unrecognized packet kind.
type KindError struct {
	Kind byte
}

func (e *KindError) Error() string {
	return fmt.Sprintf("unknown packet kind %d", e.Kind)
}

var _ error = (*KindError)(nil)

// Role says which end of the connection is encoding. Legacy audio carries
// the sender session only on server to client packets.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// Packet is either *Audio or *Ping.
type Packet interface {
	isPacket()
}

// Audio is one Opus frame from or to a speaker.
type Audio struct {
	// Target is the whisper target on outgoing audio and the context the
	// server delivered it under on incoming audio.
	Target           uint32
	Session          uint32
	Sequence         uint64
	Payload          []byte
	Terminator       bool
	Positional       []float32
	VolumeAdjustment float32
}

// Ping echoes a timestamp. The extended fields are only filled in by
// protobuf dialect servers answering an unconnected ping.
type Ping struct {
	Timestamp           uint64
	RequestExtended     bool
	ServerVersion       uint64
	UserCount           uint32
	MaxUserCount        uint32
	MaxBandwidthPerUser uint32
}

func (*Audio) isPacket() {}
func (*Ping) isPacket()  {}

// Dialect is one of the two wire formats.
type Dialect interface {
	Name() string
	AppendPacket(dst []byte, p Packet) []byte
	Decode(b []byte) (Packet, error)
}

// Select returns the dialect to use against a server reporting version.
func Select(server mumbleproto.SemVer, role Role) Dialect {
	if server.Less(mumbleproto.ProtobufUDPVersion) {
		return Legacy{Role: role}
	}
	return Protobuf{Role: role}
}

// Encode is AppendPacket into a fresh slice.
func Encode(d Dialect, p Packet) []byte {
	return d.AppendPacket(make([]byte, 0, 64), p)
}
