// Package ws hands upgraded connections to a WebSocket session.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
)

// Session serves a single WebSocket connection. The connection is closed after it returns, or when
// the context is done.
type Session func(ctx context.Context, conn *websocket.Conn) error

// Option configures the protocol.
type Option func(*Protocol)

// WithSubprotocols sets the subprotocols the server supports, in order of preference.
func WithSubprotocols(protos ...string) Option {
	return func(p *Protocol) { p.upgrader.Subprotocols = protos }
}

// WithCheckOrigin replaces the same-origin check that is applied by default.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(p *Protocol) { p.upgrader.CheckOrigin = fn }
}

// WithBufferSizes sets the read and write buffer sizes of the connection.
func WithBufferSizes(read, write int) Option {
	return func(p *Protocol) {
		p.upgrader.ReadBufferSize = read
		p.upgrader.WriteBufferSize = write
	}
}

// WithCompression enables permessage-deflate negotiation.
func WithCompression() Option {
	return func(p *Protocol) { p.upgrader.EnableCompression = true }
}

// WithHandshakeTimeout limits how long the handshake may take.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(p *Protocol) { p.upgrader.HandshakeTimeout = d }
}

// WithReadLimit sets the maximum size of a message read from the peer.
func WithReadLimit(n int64) Option {
	return func(p *Protocol) { p.readLimit = n }
}

// Protocol implements [bdispatch.Protocol] for the "websocket" token.
type Protocol struct {
	upgrader  websocket.Upgrader
	session   Session
	readLimit int64
}

var _ bdispatch.Protocol = (*Protocol)(nil)

// New creates the protocol that serves every accepted connection with 'session'.
func New(session Session, opts ...Option) *Protocol {
	p := &Protocol{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Token implements [bdispatch.Protocol].
func (p *Protocol) Token() string { return "websocket" }

// Handoff implements [bdispatch.Protocol]. The headers that were set before the upgrade are sent
// along with the handshake response.
func (p *Protocol) Handoff(ctx context.Context, w http.ResponseWriter, r *http.Request, header http.Header) error {
	hdr := header.Clone()
	for _, k := range []string{"Content-Type", "Content-Length", "Connection", "Upgrade"} {
		hdr.Del(k)
	}

	conn, err := p.upgrader.Upgrade(w, r, hdr)
	if err != nil {
		return errors.Wrap(err, "websocket handshake")
	}

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if p.readLimit > 0 {
		conn.SetReadLimit(p.readLimit)
	}

	if err := p.session(ctx, conn); err != nil && !isClosed(err) {
		return errors.Wrap(err, "websocket session")
	}

	return nil
}

// Accept is a handler that accepts the upgrade for every request it serves.
func (p *Protocol) Accept() bdispatch.Handler {
	return bdispatch.Handle1(bdispatch.UpgradeRequest(),
		func(_ context.Context, _ bdispatch.ResponseWriter, u *bdispatch.Upgrade) error {
			u.Accept(p)
			return nil
		})
}

// Echo writes every message it reads back to the peer.
func Echo(_ context.Context, conn *websocket.Conn) error {
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := conn.WriteMessage(typ, msg); err != nil {
			return err
		}
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
