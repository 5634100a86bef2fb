// Package audio runs the fixed-rate render and capture loops.
//
// All audio is 48 kHz mono signed 16-bit PCM handled in 20 ms frames.
// Devices are swapped through a pending slot that the loop commits
// between ticks, so a device never changes in the middle of a write.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	SampleRate    = 48000
	Channels      = 1
	FrameDuration = 20 * time.Millisecond
	FrameSize     = SampleRate / 1000 * int(FrameDuration/time.Millisecond)
)

// SamplesFor returns the number of samples in d.
func SamplesFor(d time.Duration) int {
	return int(int64(SampleRate) * int64(d) / int64(time.Second))
}

// Mix adds src into dst sample by sample, clamping to the int16 range.
func Mix(dst, src []int16) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		sum := int32(dst[i]) + int32(src[i])
		switch {
		case sum > math.MaxInt16:
			sum = math.MaxInt16
		case sum < math.MinInt16:
			sum = math.MinInt16
		}
		dst[i] = int16(sum)
	}
}

// PCMToBytes appends samples to dst as little endian bytes.
func PCMToBytes(dst []byte, pcm []int16) []byte {
	for _, s := range pcm {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// BytesToPCM decodes little endian samples. A trailing odd byte is
// ignored.
func BytesToPCM(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return pcm
}

// ApplyVolume scales pcm in place, clamping to the int16 range.
func ApplyVolume(pcm []int16, volume float64) {
	if volume == 1 {
		return
	}
	for i, s := range pcm {
		v := math.Round(float64(s) * volume)
		pcm[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
}
