package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jonas747/ogg"
)

// FrameSource yields Opus frames one at a time and returns io.EOF after the
// last one.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// FrameReader reads length-prefixed Opus frames from an io.Reader.
type FrameReader struct {
	r io.Reader
}

var _ FrameSource = (*FrameReader)(nil)

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads and returns the next raw Opus frame.
// Returns io.EOF when there are no more frames, and io.ErrUnexpectedEOF when
// the input stops inside a frame.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// FrameWriter writes frames in the format FrameReader reads.
type FrameWriter struct {
	w io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

func (f *FrameWriter) WriteFrame(frame []byte) error {
	if len(frame) > math.MaxUint16 {
		return fmt.Errorf("opus frame of %d bytes exceeds length prefix", len(frame))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := f.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := f.w.Write(frame)
	return err
}

// oggHeaderPackets is the OpusHead and OpusTags pair that opens every Ogg
// Opus stream.
const oggHeaderPackets = 2

// OggFrames reads Opus packets out of an Ogg container.
type OggFrames struct {
	dec     *ogg.PacketDecoder
	skipped bool
}

var _ FrameSource = (*OggFrames)(nil)

func NewOggFrames(r io.Reader) *OggFrames {
	return &OggFrames{dec: ogg.NewPacketDecoder(ogg.NewDecoder(r))}
}

func (o *OggFrames) ReadFrame() ([]byte, error) {
	if !o.skipped {
		for range oggHeaderPackets {
			if _, _, err := o.dec.Decode(); err != nil {
				return nil, o.wrap(err)
			}
		}
		o.skipped = true
	}
	packet, _, err := o.dec.Decode()
	if err != nil {
		return nil, o.wrap(err)
	}
	return packet, nil
}

// wrap folds a truncated trailing page into a clean end of stream.
func (o *OggFrames) wrap(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("read ogg packet: %w", err)
}
