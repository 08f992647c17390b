package bserver

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/middleware"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const tlsLoadTimeout = 10 * time.Second

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler   bdispatch.Handler
	DispatchOptions []bdispatch.Option
}

// NewRegistry creates the Prometheus registry that is served on the metrics path.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// NewMetrics registers the dispatcher metrics with the registry.
func NewMetrics(reg *prometheus.Registry) *middleware.Metrics {
	return middleware.NewMetrics(middleware.MetricsConfig{Registerer: reg})
}

// BuilderParams holds the dependencies for creating the route builder.
type BuilderParams struct {
	fx.In

	Env      Environment
	Logger   *zap.Logger
	Metrics  *middleware.Metrics
	Registry *prometheus.Registry
	Config   ServerConfig
}

// NewBuilder creates the route builder that the routing function registers on. Every request is
// assigned a request id and a request logger, and reported to the access log and the metrics.
func NewBuilder(p BuilderParams) *bdispatch.Builder {
	env := p.Env.base()

	opts := []bdispatch.Option{
		bdispatch.WithLogger(NewDispatchLogger(p.Logger)),
		bdispatch.WithBodyLimit(env.BodyLimit),
		bdispatch.WithBufferLimit(env.BufferLimit),
		bdispatch.WithObserver(middleware.AccessLog(p.Logger), p.Metrics.Observe),
	}

	b := bdispatch.NewBuilder(append(opts, p.Config.DispatchOptions...)...)
	b.Use(middleware.RequestID(), withRequestLogger(p.Logger))

	health := p.Config.HealthHandler
	if health == nil {
		health = bdispatch.HandlerFunc(defaultHealthHandler)
	}

	b.Get(env.HealthPath, health, bdispatch.Name("health"))

	if env.MetricsPath != "" {
		b.Get(env.MetricsPath, bdispatch.FromStd(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{
			Registry: p.Registry,
		})), bdispatch.Name("metrics"))
	}

	return b
}

// appRef is filled once the routes are compiled, so app-scoped dependencies created before that can
// still reverse routes at request time.
type appRef struct{ atomic.Pointer[bdispatch.App] }

// provideApp compiles the routes registered by the routing function.
func provideApp(b *bdispatch.Builder, ref *appRef) (*bdispatch.App, error) {
	app, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build routes")
	}

	ref.Store(app)

	return app, nil
}

// provideTLSConfig loads the TLS material, nil when the server serves plain connections.
func provideTLSConfig(env Environment, secrets SecretReader) (*tls.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tlsLoadTimeout)
	defer cancel()

	return LoadTLSConfig(ctx, env, secrets)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	App        *bdispatch.App
	Transport  *Transport
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// Server serves the compiled routes on the transport.
type Server struct {
	srv       *http.Server
	transport *Transport
	logs      *zap.Logger
	shutdown  time.Duration
	done      chan struct{}
}

// NewServer creates an HTTP server with tracing, the protocol configuration and the timeouts of the
// environment.
func NewServer(p ServerParams) (*Server, error) {
	env := p.Env.base()

	var handler http.Handler = p.App
	handler = withTracing(p.TracerProv, p.Propagator, env.ServiceName, env.HealthPath, env.MetricsPath)(handler)

	h2s := &http2.Server{IdleTimeout: env.IdleTimeout}
	if env.H2C {
		handler = h2c.NewHandler(handler, h2s)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: env.ReadHeaderTimeout,
		ReadTimeout:       env.ReadTimeout,
		WriteTimeout:      env.WriteTimeout,
		IdleTimeout:       env.IdleTimeout,
		ErrorLog:          zap.NewStdLog(p.Logger.Named("http")),
	}

	if p.Transport.TLS() {
		if err := http2.ConfigureServer(srv, h2s); err != nil {
			return nil, errors.Wrap(err, "failed to configure http2")
		}
	}

	return &Server{
		srv:       srv,
		transport: p.Transport,
		logs:      p.Logger,
		shutdown:  env.ShutdownTimeout,
		done:      make(chan struct{}),
	}, nil
}

// Addr returns the address the server listens on, nil before it started.
func (s *Server) Addr() net.Addr { return s.transport.Addr() }

func (s *Server) start(context.Context) error {
	ln, err := s.transport.Listen()
	if err != nil {
		return err
	}

	s.logs.Info("starting server",
		zap.Stringer("addr", ln.Addr()),
		zap.Bool("tls", s.transport.TLS()))

	go func() {
		defer close(s.done)

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logs.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) stop(ctx context.Context) error {
	s.logs.Info("stopping server")

	ctx, cancel := context.WithTimeout(ctx, s.shutdown)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down gracefully")
	}

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	return nil
}

// startServerHook registers lifecycle hooks for the HTTP server.
func startServerHook(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{OnStart: s.start, OnStop: s.stop})
}

func defaultHealthHandler(_ context.Context, w bdispatch.ResponseWriter, _ *bdispatch.Input) error {
	w.WriteHeader(http.StatusOK)
	return nil
}
