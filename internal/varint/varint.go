// Package varint implements the self-describing variable-length integer
// encoding used by the legacy (pre-protobuf) UDP packet format.
//
// The leading byte selects the width:
//
//	0xxxxxxx                 7-bit positive
//	10xxxxxx + 1 byte        14-bit positive
//	110xxxxx + 2 bytes       21-bit positive
//	1110xxxx + 3 bytes       28-bit positive
//	111100__ + 4 bytes       32-bit positive
//	111101__ + 8 bytes       64-bit
//	111110__ + varint        negative of the following varint
//	111111xx                 inverted 2-bit number (-1 .. -4)
package varint

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTruncated     = errors.New("varint: truncated input")
	ErrInvalidPrefix = errors.New("varint: invalid prefix")
)

// MaxLen is the longest possible encoding.
const MaxLen = 10

// Encode returns the encoding of v.
func Encode(v int64) []byte {
	return AppendEncode(make([]byte, 0, MaxLen), v)
}

// AppendEncode appends the encoding of v to dst.
func AppendEncode(dst []byte, v int64) []byte {
	i := uint64(v)
	if v < 0 && ^i < 0x100000000 {
		i = ^i
		if i <= 0x3 {
			return append(dst, 0xFC|byte(i))
		}
		dst = append(dst, 0xF8)
	}

	switch {
	case i < 0x80:
		return append(dst, byte(i))
	case i < 0x4000:
		return append(dst, byte(i>>8)|0x80, byte(i))
	case i < 0x200000:
		return append(dst, byte(i>>16)|0xC0, byte(i>>8), byte(i))
	case i < 0x10000000:
		return append(dst, byte(i>>24)|0xE0, byte(i>>16), byte(i>>8), byte(i))
	case i < 0x100000000:
		dst = append(dst, 0xF0)
		return binary.BigEndian.AppendUint32(dst, uint32(i))
	default:
		dst = append(dst, 0xF4)
		return binary.BigEndian.AppendUint64(dst, i)
	}
}

// Decode reads one varint from the start of b. It returns the value and
// the number of bytes consumed.
func Decode(b []byte) (int64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	v := b[0]

	need := func(n int) error {
		if len(b) < n {
			return ErrTruncated
		}
		return nil
	}

	switch {
	case v&0x80 == 0x00:
		return int64(v & 0x7F), 1, nil
	case v&0xC0 == 0x80:
		if err := need(2); err != nil {
			return 0, 0, err
		}
		return int64(v&0x3F)<<8 | int64(b[1]), 2, nil
	case v&0xF0 == 0xF0:
		switch v & 0xFC {
		case 0xF0:
			if err := need(5); err != nil {
				return 0, 0, err
			}
			return int64(binary.BigEndian.Uint32(b[1:5])), 5, nil
		case 0xF4:
			if err := need(9); err != nil {
				return 0, 0, err
			}
			return int64(binary.BigEndian.Uint64(b[1:9])), 9, nil
		case 0xF8:
			inner, n, err := Decode(b[1:])
			if err != nil {
				return 0, 0, err
			}
			return ^inner, n + 1, nil
		case 0xFC:
			return ^int64(v & 0x03), 1, nil
		default:
			return 0, 0, ErrInvalidPrefix
		}
	case v&0xF0 == 0xE0:
		if err := need(4); err != nil {
			return 0, 0, err
		}
		return int64(v&0x0F)<<24 | int64(b[1])<<16 | int64(b[2])<<8 | int64(b[3]), 4, nil
	case v&0xE0 == 0xC0:
		if err := need(3); err != nil {
			return 0, 0, err
		}
		return int64(v&0x1F)<<16 | int64(b[1])<<8 | int64(b[2]), 3, nil
	}
	return 0, 0, ErrInvalidPrefix
}
