package client

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/glizzus/murmur/internal/audio"
	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/opus"
	"github.com/glizzus/murmur/internal/udpproto"
)

const (
	// maxFrameSamples is the longest Opus frame, 120 ms.
	maxFrameSamples = audio.SampleRate * 120 / 1000
	// maxConcealedFrames bounds how many lost frames are filled in with
	// concealment audio before a gap is treated as a new burst.
	maxConcealedFrames = 5
)

type speaker struct {
	decoder opus.Decoder
	lastSeq uint64
	haveSeq bool
	talking bool
	pcm     []int16
}

// voiceReceiver turns incoming voice packets into samples in each
// speaker's jitter buffer. Packets arrive both on the UDP goroutine and,
// when tunneled, on the owner goroutine.
type voiceReceiver struct {
	c *Client

	mu       sync.Mutex
	speakers map[uint32]*speaker
}

func newVoiceReceiver(c *Client) *voiceReceiver {
	return &voiceReceiver{c: c, speakers: make(map[uint32]*speaker)}
}

// receiveUDP decrypts a datagram and handles it.
func (v *voiceReceiver) receiveUDP(packet []byte) error {
	plain, err := v.c.crypt.Decrypt(packet)
	if err != nil {
		if v.c.metrics != nil {
			v.c.metrics.PacketsDropped.WithLabelValues("decrypt").Inc()
		}
		return err
	}
	if v.c.metrics != nil {
		v.c.metrics.PacketsReceived.WithLabelValues("udp", "voice").Inc()
	}
	return v.handle(plain, true)
}

func (v *voiceReceiver) handle(plain []byte, overUDP bool) error {
	p, err := v.c.currentDialect().Decode(plain)
	if err != nil {
		if v.c.metrics != nil {
			v.c.metrics.PacketsDropped.WithLabelValues("decode").Inc()
		}
		return err
	}

	switch p := p.(type) {
	case *udpproto.Ping:
		if !overUDP {
			return nil
		}
		if v.c.tracker.OnUDPPong(p.Timestamp) {
			v.c.publish(event.ModeChanged{Tunneling: v.c.tracker.Tunneling()})
		}
		return nil
	case *udpproto.Audio:
		return v.audio(p)
	}
	return nil
}

func (v *voiceReceiver) audio(a *udpproto.Audio) error {
	buf, ok := v.c.audio.Get(a.Session)
	if !ok {
		return fmt.Errorf("audio from unknown session %d", a.Session)
	}

	v.mu.Lock()
	s, err := v.speaker(a.Session)
	if err != nil {
		v.mu.Unlock()
		return err
	}

	if s.haveSeq && a.Sequence > s.lastSeq+1 {
		missing := a.Sequence - s.lastSeq - 1
		if missing <= maxConcealedFrames {
			for range missing {
				frame := s.pcm[:audio.FrameSize]
				if err := s.decoder.DecodePLC(frame); err == nil {
					buf.Write(frame)
				}
			}
		}
	}
	if !s.haveSeq || a.Sequence > s.lastSeq {
		s.lastSeq = a.Sequence
		s.haveSeq = true
	}

	var decodeErr error
	if len(a.Payload) > 0 {
		n, err := s.decoder.Decode(a.Payload, s.pcm)
		if err != nil {
			decodeErr = fmt.Errorf("decode audio from session %d: %w", a.Session, err)
		} else {
			buf.Write(s.pcm[:n])
		}
	}

	var talking *event.UserTalking
	switch {
	case a.Terminator && s.talking:
		s.talking = false
		s.haveSeq = false
		talking = &event.UserTalking{Session: a.Session, Talking: false}
	case !a.Terminator && !s.talking:
		s.talking = true
		talking = &event.UserTalking{Session: a.Session, Talking: true}
	}
	v.mu.Unlock()

	if talking != nil {
		v.c.publish(*talking)
	}
	return decodeErr
}

// speaker returns the decoding state for session, creating it on first
// use. v.mu must be held.
func (v *voiceReceiver) speaker(session uint32) (*speaker, error) {
	if s, ok := v.speakers[session]; ok {
		return s, nil
	}
	dec, err := v.c.newDecoder()
	if err != nil {
		return nil, err
	}
	s := &speaker{decoder: dec, pcm: make([]int16, maxFrameSamples)}
	v.speakers[session] = s
	return s, nil
}

func (v *voiceReceiver) forget(session uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.speakers, session)
}

// SendAudio transmits one Opus frame to the current voice target. Set
// terminator on the last frame of a burst.
func (c *Client) SendAudio(frame []byte, terminator bool) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	seq, _ := c.sequence.Next()
	plain := udpproto.Encode(c.currentDialect(), &udpproto.Audio{
		Target:     udpproto.TargetNormal,
		Sequence:   seq,
		Payload:    frame,
		Terminator: terminator,
	})
	return c.sendVoice(conn, plain, "audio")
}

// sendVoice sends a voice-shaped packet over UDP, or through the control
// channel while tunneling.
func (c *Client) sendVoice(conn *connection, plain []byte, kind string) error {
	media := conn.getMedia()
	if media == nil || c.tracker.Tunneling() || !c.crypt.Keyed() {
		if err := conn.control.SendMessage(conn.ctx, &mumbleproto.UDPTunnel{Packet: plain}); err != nil {
			return fmt.Errorf("tunnel %s: %w", kind, err)
		}
		c.countSent("tcp", kind)
		return nil
	}

	packet, err := c.crypt.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", kind, err)
	}
	if err := media.Write(packet); err != nil {
		return err
	}
	c.countSent("udp", kind)
	return nil
}

func (c *Client) countSent(transport, kind string) {
	if c.metrics != nil {
		c.metrics.PacketsSent.WithLabelValues(transport, kind).Inc()
	}
}

// sendUDPPing always goes over UDP; its purpose is to probe that path.
func (c *Client) sendUDPPing(conn *connection) {
	media := conn.getMedia()
	if media == nil {
		return
	}
	plain := udpproto.Encode(c.currentDialect(), &udpproto.Ping{Timestamp: c.tracker.Timestamp()})
	packet, err := c.crypt.Encrypt(plain)
	if err != nil {
		conn.logger.Debug("Skipping UDP ping", slog.Any("error", err))
		return
	}
	if err := media.Write(packet); err != nil {
		conn.logger.Debug("Failed to send UDP ping", slog.Any("error", err))
		return
	}
	c.countSent("udp", "ping")
}
