package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/handler"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/transport"
	"github.com/glizzus/murmur/internal/udpproto"
)

func (c *Client) routes() *handler.Router {
	r := handler.NewRouter(c.logger)
	handler.On(r, mumbleproto.TypeVersion, c.onVersion)
	handler.On(r, mumbleproto.TypeReject, c.onReject)
	handler.On(r, mumbleproto.TypeServerSync, c.onServerSync)
	handler.On(r, mumbleproto.TypeCryptSetup, c.onCryptSetup)
	handler.On(r, mumbleproto.TypeChannelState, c.onChannelState)
	handler.On(r, mumbleproto.TypeChannelRemove, c.onChannelRemove)
	handler.On(r, mumbleproto.TypeUserState, c.onUserState)
	handler.On(r, mumbleproto.TypeUserRemove, c.onUserRemove)
	handler.On(r, mumbleproto.TypeTextMessage, c.onTextMessage)
	handler.On(r, mumbleproto.TypePermissionDenied, c.onPermissionDenied)
	handler.On(r, mumbleproto.TypeServerConfig, c.onServerConfig)
	handler.On(r, mumbleproto.TypeCodecVersion, c.onCodecVersion)
	handler.On(r, mumbleproto.TypePing, handler.PingHandler(c.tracker))
	handler.On(r, mumbleproto.TypeUDPTunnel, c.onUDPTunnel)
	return r
}

func (c *Client) onVersion(m *mumbleproto.Version) error {
	v := m.SemVer()
	d := udpproto.Select(v, udpproto.RoleClient)
	c.setDialect(d)

	ev := event.ServerVersion{Version: v}
	if m.Release != nil {
		ev.Release = *m.Release
	}
	if m.OS != nil {
		ev.OS = *m.OS
	}
	if m.OSVersion != nil {
		ev.OSVersion = *m.OSVersion
	}
	c.logger.Info("Server version", "version", v.String(), "release", ev.Release, "dialect", d.Name())
	c.publish(ev)
	return nil
}

func (c *Client) onReject(m *mumbleproto.Reject) error {
	rej := &RejectError{}
	if m.RejectType != nil {
		rej.Type = *m.RejectType
	}
	if m.Reason != nil {
		rej.Reason = *m.Reason
	}
	c.publish(event.Rejected{Type: rej.Type, Reason: rej.Reason})
	if conn := c.current(); conn != nil {
		conn.stop("rejected by server", rej)
	}
	return nil
}

func (c *Client) onServerSync(m *mumbleproto.ServerSync) error {
	events := c.session.ApplyServerSync(m)
	if m.Session != nil {
		c.self.Store(*m.Session)
	}
	c.synced.Store(true)
	c.publish(events...)
	return nil
}

// onCryptSetup handles the three forms of the message: a full key, a
// server initiated resync carrying only its nonce, and an empty request
// for our nonce.
func (c *Client) onCryptSetup(m *mumbleproto.CryptSetup) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	switch {
	case len(m.Key) > 0:
		if err := c.crypt.SetKey(m.Key, m.ClientNonce, m.ServerNonce); err != nil {
			return fmt.Errorf("install voice key: %w", err)
		}
		conn.logger.Debug("Voice key installed")
		if !c.cfg.ForceTCP {
			c.startMedia(conn)
		}
	case len(m.ServerNonce) > 0:
		if err := c.crypt.SetDecryptIV(m.ServerNonce); err != nil {
			return fmt.Errorf("resync decrypt nonce: %w", err)
		}
		conn.logger.Debug("Voice nonce resynced")
	default:
		reply := &mumbleproto.CryptSetup{ClientNonce: c.crypt.EncryptIV()}
		if err := conn.control.SendMessage(conn.ctx, reply); err != nil {
			return fmt.Errorf("send client nonce: %w", err)
		}
	}
	return nil
}

// startMedia opens the UDP socket once per connection and sends a first
// ping so the server learns our address.
func (c *Client) startMedia(conn *connection) {
	if conn.getMedia() != nil {
		return
	}
	addr := c.cfg.Addr
	if remote := conn.control.RemoteAddr(); remote != nil {
		if tcp, ok := remote.(*net.TCPAddr); ok {
			addr = tcp.String()
		}
	}

	media, err := transport.DialMedia(conn.ctx, addr, transport.MediaOptions{
		OnPacket: c.voice.receiveUDP,
		Logger:   conn.logger,
	})
	if err != nil {
		conn.logger.Warn("Failed to open UDP, tunneling voice", slog.Any("error", err))
		return
	}

	conn.mu.Lock()
	if conn.closing {
		conn.mu.Unlock()
		media.Close()
		return
	}
	conn.media = media
	conn.mu.Unlock()

	conn.goTask(func() error {
		err := media.Run(conn.ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	c.sendUDPPing(conn)
}

func (c *Client) onChannelState(m *mumbleproto.ChannelState) error {
	c.publish(c.session.ApplyChannelState(m)...)
	return nil
}

func (c *Client) onChannelRemove(m *mumbleproto.ChannelRemove) error {
	if m.ChannelID == nil {
		return fmt.Errorf("channel remove without channel id")
	}
	c.publish(c.session.RemoveChannel(*m.ChannelID)...)
	return nil
}

func (c *Client) onUserState(m *mumbleproto.UserState) error {
	c.publish(c.session.ApplyUserState(m)...)
	return nil
}

func (c *Client) onUserRemove(m *mumbleproto.UserRemove) error {
	if m.Session != nil {
		c.voice.forget(*m.Session)
	}
	c.publish(c.session.RemoveUser(m)...)
	return nil
}

func (c *Client) onTextMessage(m *mumbleproto.TextMessage) error {
	ev := event.TextMessage{
		Sessions: m.Sessions,
		Channels: m.ChannelIDs,
		Trees:    m.TreeIDs,
	}
	if m.Actor != nil {
		ev.Actor = *m.Actor
	}
	if m.Message != nil {
		ev.Message = *m.Message
	}
	c.publish(ev)
	return nil
}

func (c *Client) onPermissionDenied(m *mumbleproto.PermissionDenied) error {
	ev := event.PermissionDenied{}
	if m.DenyType != nil {
		ev.DenyType = *m.DenyType
	}
	if m.Permission != nil {
		ev.Permission = *m.Permission
	}
	if m.ChannelID != nil {
		ev.ChannelID = *m.ChannelID
	}
	if m.Session != nil {
		ev.Session = *m.Session
	}
	if m.Reason != nil {
		ev.Reason = *m.Reason
	}
	if m.Name != nil {
		ev.Name = *m.Name
	}
	c.publish(ev)
	return nil
}

func (c *Client) onServerConfig(m *mumbleproto.ServerConfig) error {
	ev := event.ServerConfig{}
	if m.MaxBandwidth != nil {
		ev.MaxBandwidth = *m.MaxBandwidth
	}
	if m.WelcomeText != nil {
		ev.WelcomeText = *m.WelcomeText
	}
	if m.AllowHTML != nil {
		ev.AllowHTML = *m.AllowHTML
	}
	if m.MessageLength != nil {
		ev.MessageLength = *m.MessageLength
	}
	if m.MaxUsers != nil {
		ev.MaxUsers = *m.MaxUsers
	}
	if m.RecordingAllowed != nil {
		ev.RecordingAllowed = *m.RecordingAllowed
	}
	c.publish(ev)
	return nil
}

func (c *Client) onCodecVersion(m *mumbleproto.CodecVersion) error {
	if m.Opus != nil && !*m.Opus {
		c.logger.Warn("Server did not enable Opus; incoming voice may be dropped")
	}
	return nil
}

// onUDPTunnel decodes voice carried over the control channel. It arrives
// in plaintext.
func (c *Client) onUDPTunnel(m *mumbleproto.UDPTunnel) error {
	if c.metrics != nil {
		c.metrics.PacketsReceived.WithLabelValues("tcp", "voice").Inc()
	}
	return c.voice.handle(m.Packet, false)
}
