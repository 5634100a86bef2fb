package mumbleproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize = 6
	// MaxFrameSize bounds a single payload. Larger length prefixes are a
	// protocol violation and end the connection.
	MaxFrameSize = 8 << 20
)

// ProtocolError reports a malformed control stream.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

var _ error = (*ProtocolError)(nil)

// Frame is one control message as it appears on the wire.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// AppendFrame appends the header and payload for a frame to dst.
func AppendFrame(dst []byte, t MessageType, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(t))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// EncodeMessage returns the full frame for m.
func EncodeMessage(m Message) []byte {
	b := make([]byte, HeaderSize, HeaderSize+64)
	b = m.AppendMarshal(b)
	binary.BigEndian.PutUint16(b[0:2], uint16(m.Type()))
	binary.BigEndian.PutUint32(b[2:6], uint32(len(b)-HeaderSize))
	return b
}

// ParseFrame parses one frame from the front of buf. It returns the number
// of bytes consumed, or 0 when buf does not yet hold a complete frame.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, nil
	}
	t := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	size := binary.BigEndian.Uint32(buf[2:6])
	if size > MaxFrameSize {
		return Frame{}, 0, &ProtocolError{Msg: fmt.Sprintf("frame of %d bytes exceeds limit", size)}
	}
	end := HeaderSize + int(size)
	if len(buf) < end {
		return Frame{}, 0, nil
	}
	return Frame{Type: t, Payload: buf[HeaderSize:end]}, end, nil
}

// FrameReader reads frames from a stream.
type FrameReader struct {
	r      io.Reader
	header [HeaderSize]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame blocks until a full frame has been read. A clean end of stream
// between frames returns io.EOF; a stream cut mid-frame returns
// io.ErrUnexpectedEOF.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		return Frame{}, err
	}
	t := MessageType(binary.BigEndian.Uint16(fr.header[0:2]))
	size := binary.BigEndian.Uint32(fr.header[2:6])
	if size > MaxFrameSize {
		return Frame{}, &ProtocolError{Msg: fmt.Sprintf("frame of %d bytes exceeds limit", size)}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	return Frame{Type: t, Payload: payload}, nil
}
