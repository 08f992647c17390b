package middleware

import (
	"context"

	"github.com/advdv/bdispatch"
	"github.com/google/uuid"
)

// RequestIDHeader is the header that carries the request id.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// maxRequestIDLen bounds ids that are accepted from clients.
const maxRequestIDLen = 128

// RequestID assigns every request an id. A valid id sent by the client is kept, otherwise a random
// UUID is generated. The id is echoed in the response, set on the request header for observers and
// available through [RequestIDFrom].
func RequestID() bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
			id := in.Request.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}

			in.Request.Header.Set(RequestIDHeader, id)
			w.Header().Set(RequestIDHeader, id)

			return next.ServeBHTTP(context.WithValue(ctx, ctxKeyRequestID, id), w, in)
		})
	}
}

// RequestIDFrom returns the id assigned by [RequestID], or an empty string.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := range len(id) {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}

	return true
}
