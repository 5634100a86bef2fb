package mumbleproto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

type encoder []byte

func (e *encoder) tag(num protowire.Number, typ protowire.Type) {
	*e = protowire.AppendTag(*e, num, typ)
}

func (e *encoder) uint32(num protowire.Number, v *uint32) {
	if v == nil {
		return
	}
	e.tag(num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, uint64(*v))
}

func (e *encoder) uint64(num protowire.Number, v *uint64) {
	if v == nil {
		return
	}
	e.tag(num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, *v)
}

func (e *encoder) int32(num protowire.Number, v *int32) {
	if v == nil {
		return
	}
	e.tag(num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, uint64(int64(*v)))
}

func (e *encoder) bool(num protowire.Number, v *bool) {
	if v == nil {
		return
	}
	e.tag(num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, protowire.EncodeBool(*v))
}

func (e *encoder) float(num protowire.Number, v *float32) {
	if v == nil {
		return
	}
	e.tag(num, protowire.Fixed32Type)
	*e = protowire.AppendFixed32(*e, math.Float32bits(*v))
}

func (e *encoder) string(num protowire.Number, v *string) {
	if v == nil {
		return
	}
	e.tag(num, protowire.BytesType)
	*e = protowire.AppendString(*e, *v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if v == nil {
		return
	}
	e.tag(num, protowire.BytesType)
	*e = protowire.AppendBytes(*e, v)
}

func (e *encoder) uint32s(num protowire.Number, vs []uint32) {
	for _, v := range vs {
		e.tag(num, protowire.VarintType)
		*e = protowire.AppendVarint(*e, uint64(v))
	}
}

func (e *encoder) int32s(num protowire.Number, vs []int32) {
	for _, v := range vs {
		e.tag(num, protowire.VarintType)
		*e = protowire.AppendVarint(*e, uint64(int64(v)))
	}
}

func (e *encoder) strings(num protowire.Number, vs []string) {
	for _, v := range vs {
		e.tag(num, protowire.BytesType)
		*e = protowire.AppendString(*e, v)
	}
}

// field is one decoded key/value pair.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	data   []byte
}

func (f field) uint32() *uint32 {
	v := uint32(f.varint)
	return &v
}

func (f field) uint64() *uint64 {
	v := f.varint
	return &v
}

func (f field) int32() *int32 {
	v := int32(f.varint)
	return &v
}

func (f field) bool() *bool {
	v := protowire.DecodeBool(f.varint)
	return &v
}

func (f field) float() *float32 {
	v := math.Float32frombits(uint32(f.fixed))
	return &v
}

func (f field) string() *string {
	v := string(f.data)
	return &v
}

func (f field) bytes() []byte {
	return append([]byte{}, f.data...)
}

// appendUint32s accepts both packed and unpacked encodings.
func (f field) appendUint32s(dst []uint32) ([]uint32, error) {
	if f.typ != protowire.BytesType {
		return append(dst, uint32(f.varint)), nil
	}
	b := f.data
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		dst = append(dst, uint32(v))
		b = b[n:]
	}
	return dst, nil
}

func (f field) appendInt32s(dst []int32) ([]int32, error) {
	us, err := f.appendUint32s(nil)
	for _, u := range us {
		dst = append(dst, int32(u))
	}
	return dst, err
}

// walk calls visit for every field in b. Unknown fields are passed to
// visit as well and are expected to be ignored.
func walk(b []byte, visit func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.fixed = uint64(v)
		case protowire.Fixed64Type:
			f.fixed, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}
