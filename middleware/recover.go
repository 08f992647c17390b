package middleware

import (
	"context"
	"net/http"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Recover turns a panic below it into an error with 'code', so the scope's error handler can respond
// with something other than the dispatcher's 500. The panic is logged with its stack.
func Recover(logs *zap.Logger, code bdispatch.Code) bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) (err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}

				if v == http.ErrAbortHandler { //nolint:errorlint,goerr113
					panic(v)
				}

				logs.Error("recovered from panic",
					zap.Any("panic", v),
					zap.String("route", in.Route().Pattern),
					zap.StackSkip("stack", 2))

				err = bdispatch.NewError(code, errors.Newf("recovered: %v", v))
			}()

			return next.ServeBHTTP(ctx, w, in)
		})
	}
}
