package opus_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonas747/ogg"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/audio"
	"github.com/glizzus/murmur/internal/opus"
)

func TestFrameWriterReader(t *testing.T) {
	frames := [][]byte{{0xFC}, bytes.Repeat([]byte{7}, 300), {}}

	var buf bytes.Buffer
	w := opus.NewFrameWriter(&buf)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f))
	}
	require.Equal(t, []byte{1, 0, 0xFC}, buf.Bytes()[:3])

	r := opus.NewFrameReader(&buf)
	var got [][]byte
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, f)
	}
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameReaderTruncated(t *testing.T) {
	r := opus.NewFrameReader(bytes.NewReader([]byte{4, 0, 1, 2}))
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameWriterTooLarge(t *testing.T) {
	w := opus.NewFrameWriter(io.Discard)
	require.Error(t, w.WriteFrame(make([]byte, 1<<16)))
}

func TestOggFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := ogg.NewEncoder(1, &buf)
	require.NoError(t, enc.EncodeBOS(0, [][]byte{[]byte("OpusHead")}))
	require.NoError(t, enc.Encode(0, [][]byte{[]byte("OpusTags")}))
	require.NoError(t, enc.Encode(960, [][]byte{{1, 2, 3}}))
	require.NoError(t, enc.EncodeEOS(1920, [][]byte{{4, 5}}))

	src := opus.NewOggFrames(&buf)
	var got [][]byte
	for {
		f, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, f)
	}
	if diff := cmp.Diff([][]byte{{1, 2, 3}, {4, 5}}, got); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

type sliceSource struct {
	frames [][]byte
	err    error
}

func (s *sliceSource) ReadFrame() ([]byte, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

// instantLoop ticks as fast as possible while counting requested sleeps.
func instantLoop(sleeps *int) opus.StreamOption {
	return opus.WithStreamLoop(audio.Loop{
		Interval: audio.FrameDuration,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			*sleeps++
			return ctx.Err()
		},
	})
}

type sent struct {
	Frame []byte
	Last  bool
}

func TestStream(t *testing.T) {
	tc := []struct {
		name   string
		frames [][]byte
		want   []sent
	}{
		{
			name:   "empty source sends nothing",
			frames: nil,
			want:   nil,
		},
		{
			name:   "single frame is also the last",
			frames: [][]byte{{1}},
			want:   []sent{{Frame: []byte{1}, Last: true}},
		},
		{
			name:   "only the final frame is marked last",
			frames: [][]byte{{1}, {2}, {3}},
			want: []sent{
				{Frame: []byte{1}},
				{Frame: []byte{2}},
				{Frame: []byte{3}, Last: true},
			},
		},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			var got []sent
			sleeps := 0
			err := opus.Stream(t.Context(), &sliceSource{frames: testCase.frames}, func(frame []byte, last bool) error {
				got = append(got, sent{Frame: frame, Last: last})
				return nil
			}, instantLoop(&sleeps))
			require.NoError(t, err)
			if diff := cmp.Diff(testCase.want, got); diff != "" {
				t.Errorf("sent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("send failure stops the stream", func(t *testing.T) {
		calls := 0
		sleeps := 0
		err := opus.Stream(t.Context(), &sliceSource{frames: [][]byte{{1}, {2}, {3}}}, func([]byte, bool) error {
			calls++
			return boom
		}, instantLoop(&sleeps))
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("read failure stops the stream", func(t *testing.T) {
		sleeps := 0
		err := opus.Stream(t.Context(), &sliceSource{frames: [][]byte{{1}}, err: boom}, func([]byte, bool) error {
			return nil
		}, instantLoop(&sleeps))
		require.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		sleeps := 0
		err := opus.Stream(ctx, &sliceSource{frames: [][]byte{{1}, {2}}}, func([]byte, bool) error {
			return nil
		}, instantLoop(&sleeps))
		require.ErrorIs(t, err, context.Canceled)
	})
}
