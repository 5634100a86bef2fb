package client

import (
	"context"
	"fmt"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

// ClientTypeBot marks the login as automated; ordinary users send
// mumbleproto.ClientTypeRegular.
const ClientTypeBot int32 = 1

// Authenticate logs in. An empty password is not sent.
func (c *Client) Authenticate(username, password string, clientType int32, tokens ...string) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	m := &mumbleproto.Authenticate{
		Username:   mumbleproto.Ptr(username),
		Tokens:     tokens,
		Opus:       mumbleproto.Ptr(true),
		ClientType: mumbleproto.Ptr(clientType),
	}
	if password != "" {
		m.Password = mumbleproto.Ptr(password)
	}
	if err := conn.control.SendMessage(conn.ctx, m); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	return nil
}

// Send queues any control message.
func (c *Client) Send(ctx context.Context, m mumbleproto.Message) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.control.SendMessage(ctx, m)
}

// Flush waits until every queued control message has been written.
func (c *Client) Flush(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.control.Flush(ctx)
}

// JoinChannel moves the local user into channel id.
func (c *Client) JoinChannel(id uint32) error {
	self, ok := c.SelfSession()
	if !ok {
		return fmt.Errorf("join channel %d: %w", id, ErrNotSynced)
	}
	return c.Send(c.connContext(), &mumbleproto.UserState{
		Session:   mumbleproto.Ptr(self),
		ChannelID: mumbleproto.Ptr(id),
	})
}

// SendText posts a message to channel.
func (c *Client) SendText(channel uint32, text string) error {
	return c.Send(c.connContext(), &mumbleproto.TextMessage{
		ChannelIDs: []uint32{channel},
		Message:    mumbleproto.Ptr(text),
	})
}

func (c *Client) connContext() context.Context {
	if conn := c.current(); conn != nil {
		return conn.ctx
	}
	return context.Background()
}
