package middleware

import (
	"net/http"

	"github.com/advdv/bdispatch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLog returns an observer that writes one log entry per request. Server errors are logged at the
// error level, client errors at warn and everything else at info.
func AccessLog(logs *zap.Logger) bdispatch.Observer {
	logs = logs.Named("access")

	return func(r *http.Request, res bdispatch.Result) {
		lvl := zapcore.InfoLevel
		switch {
		case res.Status >= http.StatusInternalServerError:
			lvl = zapcore.ErrorLevel
		case res.Status >= http.StatusBadRequest:
			lvl = zapcore.WarnLevel
		}

		ce := logs.Check(lvl, "request")
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", res.Status),
			zap.Stringer("outcome", res.Outcome),
			zap.Duration("duration", res.Duration),
		}

		if res.Route.Index >= 0 {
			fields = append(fields, zap.String("route", res.Route.Pattern))
		}

		if id := r.Header.Get(RequestIDHeader); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		if res.Protocol != "" {
			fields = append(fields, zap.String("protocol", res.Protocol))
		}

		if res.Err != nil {
			fields = append(fields, zap.Error(res.Err))
		}

		ce.Write(fields...)
	}
}
