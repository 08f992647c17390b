package bserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/advdv/bdispatch"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h bdispatch.Handler) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithDispatchOptions passes options to the route builder, after the ones derived from the environment.
func WithDispatchOptions(opts ...bdispatch.Option) Option {
	return func(c *AppConfig) {
		c.DispatchOptions = append(c.DispatchOptions, opts...)
	}
}

type runtimeProviderParams[E Environment] struct {
	fx.In

	Env          E
	App          *appRef
	SecretReader SecretReader
	Transport    http.RoundTripper
}

// provideSecretReader defers loading the AWS configuration until the first secret is read.
func provideSecretReader(tp trace.TracerProvider, prop propagation.TextMapPropagator) SecretReader {
	return lazySecretReader{load: sync.OnceValues(func() (SecretReader, error) {
		cfg, err := provideAWSConfig(tp, prop)
		if err != nil {
			return nil, err
		}

		return NewAWSSecretReader(cfg)
	})}
}

// FxOptions returns the options that make up the DI graph of [NewApp]. The routing function is invoked
// with its dependencies before the routes are compiled and the server starts.
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 22+len(cfg.FxOptions))
	baseOpts = append(baseOpts,
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(provideAWSConfig),
		fx.Provide(provideSecretReader),
		fx.Provide(NewHTTPTransport),
		fx.Provide(NewHTTPClient),
		fx.Provide(NewRegistry),
		fx.Provide(NewMetrics),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewBuilder),
		fx.Provide(func() *appRef { return &appRef{} }),
		fx.Provide(provideApp),
		fx.Provide(provideTLSConfig),
		fx.Provide(NewTransport),
		fx.Provide(NewServer),
		fx.Provide(func(p runtimeProviderParams[E]) *Runtime[E] {
			return NewRuntime(p.Env, p.App, RuntimeParams{SecretReader: p.SecretReader, Transport: p.Transport})
		}),
		fx.Invoke(routing),
		fx.Invoke(startServerHook),
	)

	return append(baseOpts, cfg.FxOptions...)
}

// NewApp creates a batteries-included app with dependency injection.
//
// The routing function can request any types that are provided via fx options.
// At minimum, it should accept *bdispatch.Builder for routing.
//
// Example:
//
//	bserver.NewApp[Env](func(b *bdispatch.Builder, h *Handlers) {
//	    b.Get("/items", h.ListItems())
//	    b.Get("/items/:id", h.GetItem(), bdispatch.Name("get-item"))
//	},
//	    bserver.WithFx(fx.Provide(NewHandlers)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](routing, opts...)...),
	}
}

// Err returns the error that occurred while constructing the app, if any.
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and stops it once the context is done.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
