package udpproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	kindAudio = 0
	kindPing  = 1
)

// Protobuf is the format spoken by servers from 1.5.0 on. Fields follow
// proto3 rules: zero values are omitted.
type Protobuf struct {
	Role Role
}

func (Protobuf) Name() string { return "protobuf" }

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (d Protobuf) AppendPacket(dst []byte, p Packet) []byte {
	switch p := p.(type) {
	case *Ping:
		dst = append(dst, kindPing)
		dst = appendVarintField(dst, 1, p.Timestamp)
		if p.RequestExtended {
			dst = appendVarintField(dst, 2, 1)
		}
		dst = appendVarintField(dst, 3, p.ServerVersion)
		dst = appendVarintField(dst, 4, uint64(p.UserCount))
		dst = appendVarintField(dst, 5, uint64(p.MaxUserCount))
		dst = appendVarintField(dst, 6, uint64(p.MaxBandwidthPerUser))
		return dst

	case *Audio:
		dst = append(dst, kindAudio)
		// target and context are a oneof, so the chosen one is always written.
		header := protowire.Number(1)
		if d.Role == RoleServer {
			header = 2
		}
		dst = protowire.AppendTag(dst, header, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(p.Target))

		dst = appendVarintField(dst, 3, uint64(p.Session))
		dst = appendVarintField(dst, 4, p.Sequence)
		if len(p.Payload) > 0 {
			dst = protowire.AppendTag(dst, 5, protowire.BytesType)
			dst = protowire.AppendBytes(dst, p.Payload)
		}
		if len(p.Positional) > 0 {
			packed := make([]byte, 0, 4*len(p.Positional))
			for _, f := range p.Positional {
				packed = protowire.AppendFixed32(packed, math.Float32bits(f))
			}
			dst = protowire.AppendTag(dst, 6, protowire.BytesType)
			dst = protowire.AppendBytes(dst, packed)
		}
		if p.VolumeAdjustment != 0 {
			dst = protowire.AppendTag(dst, 7, protowire.Fixed32Type)
			dst = protowire.AppendFixed32(dst, math.Float32bits(p.VolumeAdjustment))
		}
		if p.Terminator {
			dst = appendVarintField(dst, 16, 1)
		}
		return dst
	}
	return dst
}

func (Protobuf) Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	switch b[0] {
	case kindAudio:
		a := &Audio{}
		if err := decodeAudio(b[1:], a); err != nil {
			return nil, fmt.Errorf("audio: %w", err)
		}
		return a, nil
	case kindPing:
		p := &Ping{}
		if err := decodePing(b[1:], p); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		return p, nil
	}
	return nil, &KindError{Kind: b[0]}
}

func decodeAudio(b []byte, a *Audio) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && (num <= 4 || num == 16):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case 1, 2:
				a.Target = uint32(v)
			case 3:
				a.Session = uint32(v)
			case 4:
				a.Sequence = v
			case 16:
				a.Terminator = protowire.DecodeBool(v)
			}

		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			a.Payload = v

		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			for len(v) >= 4 {
				f, _ := protowire.ConsumeFixed32(v)
				a.Positional = append(a.Positional, math.Float32frombits(f))
				v = v[4:]
			}

		case (num == 6 || num == 7) && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if num == 6 {
				a.Positional = append(a.Positional, math.Float32frombits(v))
			} else {
				a.VolumeAdjustment = math.Float32frombits(v)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func decodePing(b []byte, p *Ping) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			p.Timestamp = v
		case 2:
			p.RequestExtended = protowire.DecodeBool(v)
		case 3:
			p.ServerVersion = v
		case 4:
			p.UserCount = uint32(v)
		case 5:
			p.MaxUserCount = uint32(v)
		case 6:
			p.MaxBandwidthPerUser = uint32(v)
		}
	}
	return nil
}
