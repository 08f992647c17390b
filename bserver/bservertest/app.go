// Package bservertest provides test helpers for bserver applications.
//
// It constructs the identical DI graph as [bserver.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	bservertest.SetBaseEnv(t)
//	app := bservertest.New[TestEnv](t, routing)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
//
//	resp, err := http.Get(app.URL("/items/1"))
package bservertest

import (
	"testing"

	"github.com/advdv/bdispatch/bserver"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing bserver applications.
type App struct {
	*fxtest.App

	tb  testing.TB
	srv *bserver.Server
}

// New creates a test app with the same DI graph as [bserver.NewApp].
func New[E bserver.Environment](t testing.TB, routing any, opts ...bserver.Option) *App {
	app := &App{tb: t}
	opts = append(opts, bserver.WithFx(fx.Populate(&app.srv)))
	app.App = fxtest.New(t, bserver.FxOptions[E](routing, opts...)...)

	return app
}

// URL returns the address of the started server joined with path.
func (a *App) URL(path string) string {
	a.tb.Helper()

	if a.srv == nil || a.srv.Addr() == nil {
		a.tb.Fatalf("bservertest: server is not listening; call RequireStart first")
	}

	return "http://" + a.srv.Addr().String() + path
}
