package opus

import (
	"fmt"

	"github.com/hraban/opus"

	"github.com/glizzus/murmur/internal/audio"
)

// MaxPacketSize bounds one encoded frame; it fits in a voice datagram
// with room for headers.
const MaxPacketSize = 1000

// DefaultBitrate is used when no bitrate is configured.
const DefaultBitrate = 40000

type Decoder interface {
	// Decode writes the samples for one packet into pcm and returns how
	// many were written.
	Decode(data []byte, pcm []int16) (int, error)
	// DecodePLC fills pcm with concealment audio for a lost packet.
	DecodePLC(pcm []int16) error
}

type Encoder interface {
	// Encode compresses one frame of pcm into data and returns the encoded
	// length.
	Encode(pcm []int16, data []byte) (int, error)
}

var (
	_ Decoder = (*opus.Decoder)(nil)
	_ Encoder = (*opus.Encoder)(nil)
)

func NewDecoder() (Decoder, error) {
	dec, err := opus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return dec, nil
}

// NewEncoder returns a VoIP tuned encoder. A non-positive bitrate selects
// DefaultBitrate.
func NewEncoder(bitrate int) (Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("set opus bitrate %d: %w", bitrate, err)
	}
	return enc, nil
}
