package opus

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
)

// Encode takes any audio as an io.Reader, runs FFmpeg to transcode it to
// mono voice Opus at the given bitrate, and returns an io.ReadCloser that
// produces length-prefixed Opus frames. The caller should read until EOF
// and must close the result to clean up the FFmpeg process.
func Encode(ctx context.Context, r io.Reader, bitrate int) (io.ReadCloser, error) {
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	ffmpeg := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "1",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "voip",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	)

	ffmpeg.Stdin = r

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	go func() {
		defer ffmpeg.Wait()
		pw.CloseWithError(copyFrames(NewFrameWriter(pw), NewOggFrames(stdout)))
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg}, nil
}

// copyFrames drains src into dst. A nil return closes the pipe with io.EOF.
func copyFrames(dst *FrameWriter, src FrameSource) error {
	for {
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dst.WriteFrame(frame); err != nil {
			return err
		}
	}
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process is cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	return err
}
