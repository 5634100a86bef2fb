package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glizzus/murmur/internal/opus"
	"github.com/glizzus/murmur/internal/state"
	"github.com/glizzus/murmur/internal/util"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrAmbiguousChannel = errors.New("more than one channel has that name")
	ErrNotInChannel     = errors.New("local user is not in the session")
)

// Client is the part of client.Client these helpers drive.
type Client interface {
	Snapshot(ctx context.Context) (state.Snapshot, error)
	JoinChannel(id uint32) error
	SendAudio(frame []byte, terminator bool) error
}

// MaxAttendedChannel returns the channel with the most users in it. Ties
// go to the lowest channel id. It returns false if nobody is connected.
func MaxAttendedChannel(snap state.Snapshot) (state.Channel, bool) {
	counts := make(map[uint32]int)
	for _, u := range snap.Users {
		if _, ok := snap.Channels[u.ChannelID]; ok {
			counts[u.ChannelID]++
		}
	}

	var best state.Channel
	maxAttended := 0
	for _, id := range util.SortedKeys(counts) {
		if counts[id] > maxAttended {
			best = snap.Channels[id]
			maxAttended = counts[id]
		}
	}
	return best, maxAttended > 0
}

// FindChannel looks a channel up by its exact name.
func FindChannel(snap state.Snapshot, name string) (state.Channel, error) {
	ch, err := util.GetOne(snap.ChannelByName(name))
	switch {
	case errors.Is(err, util.ErrNoElement):
		return state.Channel{}, fmt.Errorf("%q: %w", name, ErrChannelNotFound)
	case errors.Is(err, util.ErrMultipleElements):
		return state.Channel{}, fmt.Errorf("%q: %w", name, ErrAmbiguousChannel)
	}
	return ch, nil
}

// JoinChannelByName moves the local user into the channel called name.
func JoinChannelByName(ctx context.Context, c Client, name string) (state.Channel, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return state.Channel{}, err
	}
	ch, err := FindChannel(snap, name)
	if err != nil {
		return state.Channel{}, err
	}
	if err := c.JoinChannel(ch.ID); err != nil {
		return state.Channel{}, fmt.Errorf("unable to join channel %q: %w", name, err)
	}
	return ch, nil
}

type ChannelFunc func(ctx context.Context, channel state.Channel) error

// WithChannel joins channelID, runs callback, and moves the local user back
// to the channel it started in.
func WithChannel(ctx context.Context, c Client, channelID uint32, callback ChannelFunc) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	self, ok := snap.Users[snap.Self]
	if !snap.Synced || !ok {
		return ErrNotInChannel
	}
	ch, ok := snap.Channels[channelID]
	if !ok {
		return fmt.Errorf("channel %d: %w", channelID, ErrChannelNotFound)
	}

	if self.ChannelID != channelID {
		if err := c.JoinChannel(channelID); err != nil {
			return fmt.Errorf("unable to join channel %q: %w", ch.Name, err)
		}
		defer func() {
			if err := c.JoinChannel(self.ChannelID); err != nil {
				slog.Error("Failed to return to channel", "channelID", self.ChannelID, slog.Any("error", err))
			}
		}()
	}

	if err := callback(ctx, ch); err != nil {
		return fmt.Errorf("error executing callback: %w", err)
	}
	return nil
}

// OpenFrames returns the Opus frames of the file at path. Ogg Opus files
// are read directly; anything else goes through FFmpeg.
func OpenFrames(ctx context.Context, path string, bitrate int) (opus.FrameSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg":
		return opus.NewOggFrames(f), f, nil
	}

	encoded, err := opus.Encode(ctx, f, bitrate)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("unable to encode %s: %w", path, err)
	}
	return opus.NewFrameReader(encoded), closers{encoded, f}, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// PlayFile streams the file at path to the current voice target in real
// time.
func PlayFile(ctx context.Context, c Client, path string, bitrate int, opts ...opus.StreamOption) error {
	src, closer, err := OpenFrames(ctx, path, bitrate)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := opus.Stream(ctx, src, c.SendAudio, opts...); err != nil {
		return fmt.Errorf("unable to play %s: %w", path, err)
	}
	return nil
}
