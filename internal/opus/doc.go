// Package opus encodes, decodes and streams Opus voice frames.
//
// Live audio goes through Encoder and Decoder, thin wrappers over libopus
// at 48 kHz mono. Files are played by first transcoding them with FFmpeg
// into a minimal stored format: concatenated length-prefixed frames
// ([uint16 LE length][opus bytes]) with no headers or metadata. Stream
// paces any FrameSource out at one frame per 20 ms tick.
package opus
