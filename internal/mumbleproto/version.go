package mumbleproto

import "fmt"

// SemVer is a major.minor.patch protocol version.
type SemVer struct {
	Major, Minor, Patch uint16
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// V1 packs v into the legacy 32-bit layout (8 bits per minor and patch).
func (v SemVer) V1() uint32 {
	return uint32(v.Major)<<16 | uint32(v.Minor&0xFF)<<8 | uint32(v.Patch&0xFF)
}

// V2 packs v into the 64-bit layout with 16 bits per part.
func (v SemVer) V2() uint64 {
	return uint64(v.Major)<<48 | uint64(v.Minor)<<32 | uint64(v.Patch)<<16
}

// Less reports whether v precedes o.
func (v SemVer) Less(o SemVer) bool {
	return v.V2() < o.V2()
}

func FromV1(v uint32) SemVer {
	return SemVer{Major: uint16(v >> 16), Minor: uint16(v>>8) & 0xFF, Patch: uint16(v) & 0xFF}
}

func FromV2(v uint64) SemVer {
	return SemVer{Major: uint16(v >> 48), Minor: uint16(v >> 32), Patch: uint16(v >> 16)}
}

// ProtobufUDPVersion is the first release that speaks protobuf framed UDP
// voice packets.
var ProtobufUDPVersion = SemVer{Major: 1, Minor: 5, Patch: 0}

// ClientVersion is the version this client reports.
var ClientVersion = SemVer{Major: 1, Minor: 5, Patch: 0}

// SemVer extracts the peer version, preferring the 64-bit field.
func (m *Version) SemVer() SemVer {
	switch {
	case m.VersionV2 != nil:
		return FromV2(*m.VersionV2)
	case m.VersionV1 != nil:
		return FromV1(*m.VersionV1)
	}
	return SemVer{}
}
