// Package bserver provides a batteries-included HTTP server around the bdispatch router.
//
// # Overview
//
// bserver handles the boilerplate of running a dispatcher in production: environment parsing,
// structured logging, OpenTelemetry tracing, Prometheus metrics, TLS and graceful shutdown. A
// complete application can be created in a single call:
//
//	bserver.NewApp[Env](func(b *bdispatch.Builder, h *Handlers) {
//	    b.Get("/items", h.ListItems())
//	    b.Get("/items/:id", h.GetItem(), bdispatch.Name("get-item"))
//	},
//	    bserver.WithFx(fx.Provide(NewHandlers)),
//	).Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    bserver.BaseEnvironment
//	    MainTableName string `env:"MAIN_TABLE_NAME,required"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable                 | Required | Default   | Description                                      |
//	|--------------------------|----------|-----------|--------------------------------------------------|
//	| BD_SERVICE_NAME          | Yes      | -         | Service name for logging and tracing             |
//	| BD_ADDR                  | No       | :8080     | Listen address, a socket path for unix           |
//	| BD_NETWORK               | No       | tcp       | tcp, tcp4, tcp6 or unix                          |
//	| BD_HEALTH_PATH           | No       | /health   | Health check endpoint, not traced                |
//	| BD_METRICS_PATH          | No       | /metrics  | Prometheus endpoint, not traced                  |
//	| BD_LOG_LEVEL             | No       | info      | Log level (debug, info, warn, error)             |
//	| BD_OTEL_EXPORTER         | No       | stdout    | Trace exporter: "stdout", "xrayudp" or "none"    |
//	| BD_TLS_CERT_FILE         | No       | -         | PEM certificate, requires BD_TLS_KEY_FILE        |
//	| BD_TLS_KEY_FILE          | No       | -         | PEM key                                          |
//	| BD_TLS_SECRET_ID         | No       | -         | Secrets Manager secret holding cert and key      |
//	| BD_TLS_SECRET_CERT_PATH  | No       | cert      | gjson path of the certificate in the secret      |
//	| BD_TLS_SECRET_KEY_PATH   | No       | key       | gjson path of the key in the secret              |
//	| BD_MAX_CONNS             | No       | 0         | Limit on open connections, 0 for no limit        |
//	| BD_H2C                   | No       | false     | Serve HTTP/2 without TLS                         |
//	| BD_READ_HEADER_TIMEOUT   | No       | 5s        | http.Server ReadHeaderTimeout                    |
//	| BD_READ_TIMEOUT          | No       | 30s       | http.Server ReadTimeout                          |
//	| BD_WRITE_TIMEOUT         | No       | 30s       | http.Server WriteTimeout                         |
//	| BD_IDLE_TIMEOUT          | No       | 120s      | http.Server IdleTimeout                          |
//	| BD_SHUTDOWN_TIMEOUT      | No       | 15s       | Bound on graceful shutdown                       |
//	| BD_BODY_LIMIT            | No       | 10485760  | Request body limit for extractors, -1 disables   |
//	| BD_BUFFER_LIMIT          | No       | -1        | Response buffer limit, -1 disables               |
//
// # Runtime
//
// [Runtime] provides access to app-scoped dependencies and should be injected into handler
// constructors via fx:
//
//   - [Runtime.Env] returns the typed environment configuration
//   - [Runtime.Reverse] generates paths for named routes
//   - [Runtime.Secret] retrieves secrets from AWS Secrets Manager
//   - [Runtime.NewRequest] starts a traced outbound request
//
// # Context
//
// Handlers receive a standard context.Context. Use the package-level functions to access
// request-scoped values:
//
//   - [Log] - trace-correlated zap logger carrying the route and request id
//   - [Span] - current OpenTelemetry span for custom instrumentation
//
// # Observability
//
// Every dispatched request is reported to an access log and to Prometheus counters and histograms
// labelled by route pattern. The dispatcher's state transitions are recorded as events on the
// request span.
package bserver
