package bdispatch

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Protocol takes over a connection after the dispatcher accepted an upgrade. Once Handoff is called the
// connection is no longer treated as HTTP.
type Protocol interface {
	// Token is the protocol name the client must request in its Upgrade header.
	Token() string
	// Handoff completes the handshake and serves the connection until it is done. The header holds
	// what middleware and the handler set on the response before it was discarded.
	Handoff(ctx context.Context, w http.ResponseWriter, r *http.Request, header http.Header) error
}

// NegotiateUpgrade returns the first protocol requested in the Upgrade header if the request is a valid
// upgrade request: a GET with "upgrade" among the Connection tokens.
func NegotiateUpgrade(r *http.Request) (string, bool) {
	if r.Method != http.MethodGet || !headerHasToken(r.Header, "Connection", "upgrade") {
		return "", false
	}

	for _, v := range r.Header.Values("Upgrade") {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok, true
			}
		}
	}

	return "", false
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), token) {
				return true
			}
		}
	}

	return false
}

// Upgrade is the handle a handler uses to accept a protocol upgrade, see [UpgradeRequest].
type Upgrade struct {
	in *Input

	// Requested is the protocol the client asked for, empty when the request is no upgrade request.
	Requested string
}

// Accept asks the dispatcher to hand the connection to 'p' after the handler returned.
func (u *Upgrade) Accept(p Protocol) { u.in.Upgrade(p) }

// UpgradeRequest extracts the upgrade handle. It never fails: whether the client negotiated the
// accepted protocol is checked when the response is finalized.
func UpgradeRequest() Extractor[*Upgrade] {
	return NewExtractor("upgrade", func(_ context.Context, in *Input) (*Upgrade, error) {
		tok, _ := NegotiateUpgrade(in.Request)
		return &Upgrade{in: in, Requested: tok}, nil
	})
}

// RawProtocol hijacks the connection, writes the 101 response and passes the raw stream to Serve.
type RawProtocol struct {
	Name  string
	Serve func(ctx context.Context, conn net.Conn, rw *bufio.ReadWriter) error
}

// Token implements [Protocol].
func (p RawProtocol) Token() string { return p.Name }

// Handoff implements [Protocol].
func (p RawProtocol) Handoff(ctx context.Context, w http.ResponseWriter, _ *http.Request, header http.Header) error {
	conn, rw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		return errors.Wrap(err, "hijack connection")
	}

	defer conn.Close()

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return errors.Wrap(err, "clear deadline")
	}

	hdr := header.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}

	hdr.Del("Content-Length")
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Upgrade", p.Name)

	if _, err := rw.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return errors.Wrap(err, "write status line")
	}

	if err := hdr.Write(rw); err != nil {
		return errors.Wrap(err, "write headers")
	}

	if _, err := rw.WriteString("\r\n"); err != nil {
		return errors.Wrap(err, "write headers")
	}

	if err := rw.Flush(); err != nil {
		return errors.Wrap(err, "flush handshake")
	}

	return p.Serve(ctx, conn, rw)
}
