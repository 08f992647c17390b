package bdispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorHandler turns a failed request into a response. The writer has been reset before it is called.
type ErrorHandler interface {
	ServeError(ctx context.Context, w ResponseWriter, r *http.Request, err error)
}

// ErrorHandlerFunc allow casting a function to implement [ErrorHandler].
type ErrorHandlerFunc func(ctx context.Context, w ResponseWriter, r *http.Request, err error)

// ServeError implements [ErrorHandler].
func (f ErrorHandlerFunc) ServeError(ctx context.Context, w ResponseWriter, r *http.Request, err error) {
	f(ctx, w, r, err)
}

// DefaultErrorHandler writes the status code of the error as plain text. Errors without a code become
// a 500 and are logged, their message is never sent to the client.
func DefaultErrorHandler(logs Logger) ErrorHandler {
	return ErrorHandlerFunc(func(_ context.Context, w ResponseWriter, _ *http.Request, err error) {
		code := CodeOf(err)
		if code == CodeUnknown || http.StatusText(int(code)) == "" {
			code = CodeInternalServerError
		}

		msg := err.Error()
		if code >= CodeInternalServerError {
			logs.LogUnhandledServeError(err)
			msg = http.StatusText(int(code))
		}

		hdr := w.Header()
		hdr.Set("Content-Type", "text/plain; charset=utf-8")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("Cache-Control", "no-cache")

		var mna *MethodNotAllowedError
		if errors.As(err, &mna) {
			hdr.Set("Allow", strings.Join(mna.Allowed, ", "))
		}

		w.WriteHeader(int(code))
		fmt.Fprintln(w, msg)
	})
}
