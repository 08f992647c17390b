package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/advdv/bdispatch"
	"github.com/samber/lo"
)

// CORSConfig configures [CORS].
type CORSConfig struct {
	// AllowedOrigins lists the origins that may make requests, "*" allows any origin.
	AllowedOrigins []string
	// AllowedMethods defaults to GET, HEAD and POST.
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// AllowCredentials may not be combined with a "*" origin; the request origin is echoed instead.
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS answers preflight requests and adds the cross-origin headers to every response for an allowed
// origin. It must be used on the root scope so that it sees preflight requests for paths that only
// declare other methods.
func CORS(cfg CORSConfig) bdispatch.Middleware {
	anyOrigin := lo.Contains(cfg.AllowedOrigins, "*")
	methods := lo.Ternary(len(cfg.AllowedMethods) == 0,
		[]string{http.MethodGet, http.MethodHead, http.MethodPost}, cfg.AllowedMethods)
	methods = lo.Map(methods, func(m string, _ int) string { return strings.ToUpper(m) })
	headers := lo.Map(cfg.AllowedHeaders, func(h string, _ int) string { return http.CanonicalHeaderKey(h) })

	allowed := func(origin string) bool {
		return anyOrigin || lo.Contains(cfg.AllowedOrigins, origin)
	}

	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
			r := in.Request
			origin := r.Header.Get("Origin")
			hdr := w.Header()
			hdr.Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" || !allowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return nil
				}

				return next.ServeBHTTP(ctx, w, in)
			}

			if anyOrigin && !cfg.AllowCredentials {
				hdr.Set("Access-Control-Allow-Origin", "*")
			} else {
				hdr.Set("Access-Control-Allow-Origin", origin)
			}

			if cfg.AllowCredentials {
				hdr.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				if len(cfg.ExposedHeaders) > 0 {
					hdr.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
				}

				return next.ServeBHTTP(ctx, w, in)
			}

			hdr.Add("Vary", "Access-Control-Request-Method")
			hdr.Add("Vary", "Access-Control-Request-Headers")

			reqMethod := strings.ToUpper(r.Header.Get("Access-Control-Request-Method"))
			if !lo.Contains(methods, reqMethod) {
				w.WriteHeader(http.StatusForbidden)
				return nil
			}

			reqHeaders := lo.Compact(lo.Map(strings.Split(r.Header.Get("Access-Control-Request-Headers"), ","),
				func(h string, _ int) string { return http.CanonicalHeaderKey(strings.TrimSpace(h)) }))
			for _, h := range reqHeaders {
				if !lo.Contains(headers, h) {
					w.WriteHeader(http.StatusForbidden)
					return nil
				}
			}

			hdr.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			if len(reqHeaders) > 0 {
				hdr.Set("Access-Control-Allow-Headers", strings.Join(reqHeaders, ", "))
			}

			if cfg.MaxAge > 0 {
				hdr.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
			}

			w.WriteHeader(http.StatusNoContent)

			return nil
		})
	}
}
