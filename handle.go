package bdispatch

import (
	"context"
	"net/http"
)

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows
// middleware and error handlers to reset the writer and formulate a completely new response.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error
}

// Handler serves a matched request. The input carries the matched route, its path parameters and the
// take-once request body. Returning an error hands the request to the nearest scope's error handler.
type Handler interface {
	ServeBHTTP(ctx context.Context, w ResponseWriter, in *Input) error
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(context.Context, ResponseWriter, *Input) error

// ServeBHTTP implements the [Handler] interface.
func (f HandlerFunc) ServeBHTTP(ctx context.Context, w ResponseWriter, in *Input) error {
	return f(ctx, w, in)
}

// FromStd converts a standard library handler. The handler sees the request with the context that was
// passed down the middleware chain and writes into the buffered response.
func FromStd(h http.Handler) Handler {
	return HandlerFunc(func(ctx context.Context, w ResponseWriter, in *Input) error {
		h.ServeHTTP(w, in.Request.WithContext(ctx))
		return nil
	})
}
