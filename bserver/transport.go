package bserver

import (
	"crypto/tls"
	"io/fs"
	"net"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/netutil"
)

// Transport owns the listening socket of the server.
type Transport struct {
	network  string
	addr     string
	maxConns int
	tlsCfg   *tls.Config

	mu sync.Mutex
	ln net.Listener
}

// NewTransport creates a transport from the environment. A nil TLS config serves plain connections.
func NewTransport(env Environment, tlsCfg *tls.Config) *Transport {
	e := env.base()

	return &Transport{
		network:  e.Network,
		addr:     e.Addr,
		maxConns: e.MaxConns,
		tlsCfg:   tlsCfg,
	}
}

// Listen opens the listener. Stale unix sockets are removed first. Accepted connections are limited
// to MaxConns and wrapped in TLS when configured.
func (t *Transport) Listen() (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln != nil {
		return nil, errors.New("transport is already listening")
	}

	if t.network == "unix" {
		if err := os.Remove(t.addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "failed to remove stale socket %q", t.addr)
		}
	}

	ln, err := net.Listen(t.network, t.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s %q", t.network, t.addr)
	}

	if t.maxConns > 0 {
		ln = netutil.LimitListener(ln, t.maxConns)
	}

	if t.tlsCfg != nil {
		ln = tls.NewListener(ln, t.tlsCfg)
	}

	t.ln = ln

	return ln, nil
}

// Addr returns the address the transport listens on, nil before [Transport.Listen] succeeded.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln == nil {
		return nil
	}

	return t.ln.Addr()
}

// TLS reports whether connections are served over TLS.
func (t *Transport) TLS() bool { return t.tlsCfg != nil }
