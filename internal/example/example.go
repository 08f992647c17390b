// Package example wires a small item API the way an application outside the module would.
package example

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/middleware"
	"github.com/advdv/bdispatch/ws"
)

// TokenHeader carries the bearer token checked by [Auth].
const TokenHeader = "Authorization"

var subjectKey = bdispatch.NewKey[string]("subject")

// Auth rejects requests without one of the bearer tokens, which map to the subject they identify.
// Rejected requests never reach the handler. The subject of accepted requests is available through
// [Subject].
func Auth(tokens map[string]string) bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
			subject, ok := authenticate(tokens, in.Request.Header.Get(TokenHeader))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return nil
			}

			bdispatch.SetLocal(in, subjectKey, subject)

			return next.ServeBHTTP(ctx, w, in)
		})
	}
}

func authenticate(tokens map[string]string, header string) (subject string, ok bool) {
	got, found := strings.CutPrefix(header, "Bearer ")
	if !found || got == "" {
		return "", false
	}

	for token, subj := range tokens {
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
			subject, ok = subj, true
		}
	}

	return subject, ok
}

// Subject extracts the subject set by [Auth].
func Subject() bdispatch.Extractor[string] { return bdispatch.Local(subjectKey) }

// Item is returned by the item endpoint.
type Item struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Request string `json:"request_id,omitempty"`
}

// GetItem serves a single item.
func GetItem() bdispatch.Handler {
	return bdispatch.Handle2(bdispatch.ParamString("id"), Subject(),
		func(ctx context.Context, w bdispatch.ResponseWriter, id, owner string) error {
			w.Header().Set("Content-Type", "application/json")
			return json.NewEncoder(w).Encode(Item{ID: id, Owner: owner, Request: middleware.RequestIDFrom(ctx)})
		})
}

// Routes registers the API below /api, guarded by [Auth], and a websocket echo endpoint.
func Routes(b *bdispatch.Builder, tokens map[string]string) {
	b.Group("/api", func(api *bdispatch.Scope) {
		api.Use(Auth(tokens))
		api.Get("/items/:id", GetItem(), bdispatch.Name("get-item"))
	})

	b.Get("/ws/echo", ws.New(ws.Echo).Accept(), bdispatch.Name("ws-echo"))
}
