package udpproto

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/glizzus/murmur/internal/varint"
)

// Legacy header kinds, stored in the top three bits of the first byte.
const (
	legacyCeltAlpha = 0
	legacyPing      = 1
	legacySpeex     = 2
	legacyCeltBeta  = 3
	legacyOpus      = 4
)

const (
	legacyTargetMask = 0x1F
	opusTerminator   = 0x2000
	opusLengthMask   = 0x1FFF
)

// Legacy is the varint framed format spoken by servers before 1.5.0.
type Legacy struct {
	Role Role
}

func (Legacy) Name() string { return "legacy" }

func (d Legacy) AppendPacket(dst []byte, p Packet) []byte {
	switch p := p.(type) {
	case *Ping:
		dst = append(dst, legacyPing<<5)
		return varint.AppendEncode(dst, int64(p.Timestamp))
	case *Audio:
		dst = append(dst, legacyOpus<<5|byte(p.Target&legacyTargetMask))
		if d.Role == RoleServer {
			dst = varint.AppendEncode(dst, int64(p.Session))
		}
		dst = varint.AppendEncode(dst, int64(p.Sequence))

		header := int64(len(p.Payload) & opusLengthMask)
		if p.Terminator {
			header |= opusTerminator
		}
		dst = varint.AppendEncode(dst, header)
		dst = append(dst, p.Payload...)

		if len(p.Positional) >= 3 {
			for _, f := range p.Positional[:3] {
				dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(f))
			}
		}
		return dst
	}
	return dst
}

func (d Legacy) Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	r := varint.NewReader(b[1:])
	kind := b[0] >> 5

	switch kind {
	case legacyPing:
		ts, err := r.ReadVarint()
		if err != nil {
			return nil, fmt.Errorf("ping timestamp: %w", err)
		}
		return &Ping{Timestamp: uint64(ts)}, nil

	case legacyOpus:
		a := &Audio{Target: uint32(b[0] & legacyTargetMask)}
		if d.Role == RoleClient {
			session, err := r.ReadVarint()
			if err != nil {
				return nil, fmt.Errorf("audio session: %w", err)
			}
			a.Session = uint32(session)
		}
		seq, err := r.ReadVarint()
		if err != nil {
			return nil, fmt.Errorf("audio sequence: %w", err)
		}
		a.Sequence = uint64(seq)

		header, err := r.ReadVarint()
		if err != nil {
			return nil, fmt.Errorf("opus header: %w", err)
		}
		a.Terminator = header&opusTerminator != 0
		payload, err := r.ReadBytes(int(header & opusLengthMask))
		if err != nil {
			return nil, fmt.Errorf("opus payload: %w", err)
		}
		a.Payload = payload

		if rest := r.Remaining(); len(rest) >= 12 {
			a.Positional = make([]float32, 3)
			for i := range a.Positional {
				a.Positional[i] = math.Float32frombits(binary.BigEndian.Uint32(rest[i*4:]))
			}
		}
		return a, nil

	case legacyCeltAlpha, legacySpeex, legacyCeltBeta:
		return nil, fmt.Errorf("legacy kind %d: %w", kind, ErrUnsupportedCodec)
	}
	return nil, &KindError{Kind: kind}
}
