package mumbleproto_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		t    mumbleproto.MessageType
		want string
	}{
		{mumbleproto.TypeVersion, "Version"},
		{mumbleproto.TypeCryptSetup, "CryptSetup"},
		{mumbleproto.TypePluginDataTransmission, "PluginDataTransmission"},
		{27, "MessageType(27)"},
	}
	for _, tc := range tests {
		if got := tc.t.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", uint16(tc.t), got, tc.want)
		}
	}
	require.Equal(t, mumbleproto.MessageType(15), mumbleproto.TypeCryptSetup)
	require.Equal(t, mumbleproto.MessageType(26), mumbleproto.TypePluginDataTransmission)
}

func TestSparseFieldsKeepPresence(t *testing.T) {
	in := &mumbleproto.UserState{
		Session:  mumbleproto.Ptr(uint32(7)),
		SelfMute: mumbleproto.Ptr(false),
	}
	got, err := mumbleproto.Decode(mumbleproto.TypeUserState, mumbleproto.Marshal(in))
	require.NoError(t, err)

	us := got.(*mumbleproto.UserState)
	require.NotNil(t, us.SelfMute, "explicit false must survive encoding")
	require.False(t, *us.SelfMute)
	require.Nil(t, us.ChannelID)
	require.Nil(t, us.Name)
	if diff := cmp.Diff(in, us); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatedFieldsAcceptPackedEncoding(t *testing.T) {
	var packed []byte
	for _, v := range []uint64{3, 4, 500} {
		packed = protowire.AppendVarint(packed, v)
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 9)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	var cs mumbleproto.ChannelState
	require.NoError(t, cs.Unmarshal(b))
	require.Equal(t, uint32(9), *cs.ChannelID)
	require.Equal(t, []uint32{3, 4, 500}, cs.Links)
	require.Equal(t, []uint32{1}, cs.LinksAdd)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	var sync mumbleproto.ServerSync
	require.NoError(t, sync.Unmarshal(b))
	require.Equal(t, uint32(42), *sync.Session)
}

func TestNegativeInt32(t *testing.T) {
	in := &mumbleproto.ChannelState{ChannelID: mumbleproto.Ptr(uint32(0)), Position: mumbleproto.Ptr(int32(-5))}
	var out mumbleproto.ChannelState
	require.NoError(t, out.Unmarshal(mumbleproto.Marshal(in)))
	require.Equal(t, int32(-5), *out.Position)
}

func TestVoiceTargetNested(t *testing.T) {
	in := &mumbleproto.VoiceTarget{
		ID: mumbleproto.Ptr(uint32(3)),
		Targets: []mumbleproto.VoiceTargetEntry{
			{Sessions: []uint32{1, 2}},
			{ChannelID: mumbleproto.Ptr(uint32(5)), Children: mumbleproto.Ptr(true)},
		},
	}
	got, err := mumbleproto.Decode(mumbleproto.TypeVoiceTarget, mumbleproto.Marshal(in))
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("voice target mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := mumbleproto.Decode(200, nil)
	var unknown *mumbleproto.UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, mumbleproto.MessageType(200), unknown.Type)
}

func TestDecodeOpaqueTypes(t *testing.T) {
	m, err := mumbleproto.Decode(mumbleproto.TypeACL, []byte{1, 2, 3})
	require.NoError(t, err)
	raw, ok := m.(*mumbleproto.Raw)
	require.True(t, ok)
	require.Equal(t, mumbleproto.TypeACL, raw.Type())
	require.Equal(t, []byte{1, 2, 3}, mumbleproto.Marshal(raw))
}

func TestDecodeMalformed(t *testing.T) {
	// Tag for a bytes field whose length runs past the end.
	b := protowire.AppendTag(nil, 3, protowire.BytesType)
	b = append(b, 10, 'x')
	_, err := mumbleproto.Decode(mumbleproto.TypeServerSync, b)
	require.Error(t, err)
}

func TestEncodeMessageHeader(t *testing.T) {
	frame := mumbleproto.EncodeMessage(&mumbleproto.ChannelRemove{ChannelID: mumbleproto.Ptr(uint32(1))})
	require.Equal(t, []byte{0, 6, 0, 0, 0, 2, 0x08, 0x01}, frame)
}

func TestParseFrameWaitsForMoreInput(t *testing.T) {
	full := mumbleproto.AppendFrame(nil, mumbleproto.TypeTextMessage, []byte("hello"))
	for cut := 0; cut < len(full); cut++ {
		_, n, err := mumbleproto.ParseFrame(full[:cut])
		require.NoError(t, err)
		require.Zero(t, n, "cut at %d consumed input", cut)
	}

	two := append(bytes.Clone(full), mumbleproto.AppendFrame(nil, mumbleproto.TypePing, nil)...)
	f, n, err := mumbleproto.ParseFrame(two)
	require.NoError(t, err)
	require.Equal(t, len(full), n)
	require.Equal(t, mumbleproto.TypeTextMessage, f.Type)
	require.Equal(t, "hello", string(f.Payload))

	f, n, err = mumbleproto.ParseFrame(two[n:])
	require.NoError(t, err)
	require.Equal(t, mumbleproto.HeaderSize, n)
	require.Equal(t, mumbleproto.TypePing, f.Type)
	require.Empty(t, f.Payload)
}

func TestOversizedFrameIsFatal(t *testing.T) {
	header := []byte{0, 1, 0x7F, 0xFF, 0xFF, 0xFF}
	_, _, err := mumbleproto.ParseFrame(header)
	var protoErr *mumbleproto.ProtocolError
	require.ErrorAs(t, err, &protoErr)

	_, err = mumbleproto.NewFrameReader(bytes.NewReader(header)).ReadFrame()
	require.ErrorAs(t, err, &protoErr)
}

// oneByteReader forces every frame to arrive split across reads.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestFrameReaderSplitInput(t *testing.T) {
	var stream []byte
	stream = append(stream, mumbleproto.EncodeMessage(&mumbleproto.Version{Release: mumbleproto.Ptr("x")})...)
	stream = append(stream, mumbleproto.EncodeMessage(&mumbleproto.Ping{Timestamp: mumbleproto.Ptr(uint64(77))})...)

	fr := mumbleproto.NewFrameReader(oneByteReader{bytes.NewReader(stream)})

	f, err := fr.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, mumbleproto.TypeVersion, f.Type)

	f, err = fr.ReadFrame()
	require.NoError(t, err)
	m, err := mumbleproto.Decode(f.Type, f.Payload)
	require.NoError(t, err)
	require.Equal(t, uint64(77), *m.(*mumbleproto.Ping).Timestamp)

	_, err = fr.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestFrameReaderTruncated(t *testing.T) {
	frame := mumbleproto.AppendFrame(nil, mumbleproto.TypeTextMessage, []byte("truncated"))
	_, err := mumbleproto.NewFrameReader(bytes.NewReader(frame[:8])).ReadFrame()
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}

func TestVersionPacking(t *testing.T) {
	v := mumbleproto.SemVer{Major: 1, Minor: 5, Patch: 634}
	require.Equal(t, uint64(1)<<48|uint64(5)<<32|uint64(634)<<16, v.V2())
	require.Equal(t, v, mumbleproto.FromV2(v.V2()))

	old := mumbleproto.SemVer{Major: 1, Minor: 4, Patch: 287}
	require.Equal(t, uint32(0x01041F), old.V1())
	require.Equal(t, mumbleproto.SemVer{Major: 1, Minor: 4, Patch: 31}, mumbleproto.FromV1(old.V1()))

	require.True(t, old.Less(mumbleproto.ProtobufUDPVersion))
	require.False(t, v.Less(mumbleproto.ProtobufUDPVersion))

	msg := &mumbleproto.Version{VersionV1: mumbleproto.Ptr(uint32(0x010400)), VersionV2: mumbleproto.Ptr(v.V2())}
	require.Equal(t, v, msg.SemVer())
	msg.VersionV2 = nil
	require.Equal(t, mumbleproto.SemVer{Major: 1, Minor: 4}, msg.SemVer())
}
