package bdispatch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/stretchr/testify/require"
)

func text(s string) bdispatch.Handler {
	return bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, _ *bdispatch.Input) error {
		fmt.Fprint(w, s)
		return nil
	})
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec, req := httptest.NewRecorder(), httptest.NewRequest(method, target, nil)
	h.ServeHTTP(rec, req)

	return rec
}

func TestBuildConflicts(t *testing.T) {
	t.Run("routes without conflicts build", func(t *testing.T) {
		b := bdispatch.NewBuilder(bdispatch.WithLogger(bdispatch.NewTestLogger(t)))
		b.Get("/users/:id", text("a"))
		b.Get("/users/me", text("b"))
		b.Post("/users/:id", text("c"))
		b.Get("/users/:id/*rest", text("d"))
		b.Get("/files/*rest", text("e"))

		_, err := b.Build()
		require.NoError(t, err)
	})

	build := func() error {
		b := bdispatch.NewBuilder()
		b.Get("/users/:id", text("a"))
		b.Group("/users", func(s *bdispatch.Scope) {
			s.Handle("GET,PUT /:name", text("b"))
		})
		b.Get("/static/*a", text("c"))
		b.Any("/static/*b", text("d"))
		b.Put("/users/:uid", text("e"))
		b.Post("/users/:id", text("f"))

		_, err := b.Build()

		return err
	}

	t.Run("reports every conflicting pair", func(t *testing.T) {
		err := build()
		require.ErrorIs(t, err, bdispatch.ErrBuildConflict)

		var cerr *bdispatch.ConflictError
		require.ErrorAs(t, err, &cerr)
		require.Len(t, cerr.Pairs, 3)

		require.Equal(t, "GET /users/:id", cerr.Pairs[0].First.String())
		require.Equal(t, "GET,PUT /users/:name", cerr.Pairs[0].Second.String())
		require.Equal(t, "GET,PUT /users/:name", cerr.Pairs[1].First.String())
		require.Equal(t, "PUT /users/:uid", cerr.Pairs[1].Second.String())
		require.Equal(t, "GET /static/*a", cerr.Pairs[2].First.String())
		require.Equal(t, "* /static/*b", cerr.Pairs[2].Second.String())
	})

	t.Run("is deterministic", func(t *testing.T) {
		first := build().Error()
		for range 20 {
			require.Equal(t, first, build().Error())
		}
	})

	t.Run("collects registration errors", func(t *testing.T) {
		b := bdispatch.NewBuilder()
		b.Get("no-slash", text("a"))
		b.Get("/a", text("b"), bdispatch.Name("dup"))
		b.Get("/b", text("c"), bdispatch.Name("dup"))
		b.Get("/c", nil)

		_, err := b.Build()
		require.ErrorIs(t, err, bdispatch.ErrInvalidPattern)
		require.ErrorContains(t, err, `pattern with name "dup" already exists`)
		require.ErrorContains(t, err, "nil handler")
	})
}

func TestMatch(t *testing.T) {
	b := bdispatch.NewBuilder()
	b.Get("/users/:id", text("param"))
	b.Get("/users/me", text("literal"))
	b.Get("/users/:id/files/*path", text("files"))
	b.Handle("PURGE /cache", text("purge"))

	app, err := b.Build()
	require.NoError(t, err)

	t.Run("literal wins over parameter", func(t *testing.T) {
		m, err := app.Match(http.MethodGet, "/users/me")
		require.NoError(t, err)
		require.Equal(t, "/users/me", m.Route.Pattern)
		require.Equal(t, 0, m.Params.Len())
	})

	t.Run("binds parameters", func(t *testing.T) {
		m, err := app.Match(http.MethodGet, "/users/42/files/a/b")
		require.NoError(t, err)
		require.Equal(t, "/users/:id/files/*path", m.Route.Pattern)

		id, _ := m.Params.Get("id")
		require.Equal(t, "42", id)

		rest, ok := m.Params.Wildcard()
		require.True(t, ok)
		require.Equal(t, "a/b", rest)
	})

	t.Run("is deterministic", func(t *testing.T) {
		first, err := app.Match(http.MethodGet, "/users/9")
		require.NoError(t, err)

		for range 50 {
			m, err := app.Match(http.MethodGet, "/users/9")
			require.NoError(t, err)
			require.Equal(t, first, m)
		}
	})

	t.Run("routes open method tokens", func(t *testing.T) {
		m, err := app.Match("PURGE", "/cache")
		require.NoError(t, err)
		require.Equal(t, []string{"PURGE"}, m.Route.Methods)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := app.Match(http.MethodGet, "/nope")
		require.ErrorIs(t, err, bdispatch.ErrRouteNotFound)
	})

	t.Run("method not allowed lists allowed methods", func(t *testing.T) {
		_, err := app.Match(http.MethodDelete, "/users/me")

		var mna *bdispatch.MethodNotAllowedError
		require.ErrorAs(t, err, &mna)
		require.Equal(t, []string{"GET", "HEAD", "OPTIONS"}, mna.Allowed)
	})

	t.Run("head falls back to get", func(t *testing.T) {
		m, err := app.Match(http.MethodHead, "/users/me")
		require.NoError(t, err)
		require.Equal(t, "/users/me", m.Route.Pattern)
	})
}

func TestServeErrors(t *testing.T) {
	b := bdispatch.NewBuilder(bdispatch.WithLogger(bdispatch.NewTestLogger(t)))
	b.Get("/items", text("items"))
	b.Post("/items", text("created"))

	app, err := b.Build()
	require.NoError(t, err)

	t.Run("unmatched path", func(t *testing.T) {
		rec := serve(t, app, http.MethodGet, "/other")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(t, app, http.MethodDelete, "/items")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		require.Equal(t, "GET, HEAD, OPTIONS, POST", rec.Header().Get("Allow"))
	})

	t.Run("options fallback", func(t *testing.T) {
		rec := serve(t, app, http.MethodOptions, "/items")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "GET, HEAD, OPTIONS, POST", rec.Header().Get("Allow"))
	})

	t.Run("head fallback", func(t *testing.T) {
		rec := serve(t, app, http.MethodHead, "/items")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDisabledFallbacks(t *testing.T) {
	b := bdispatch.NewBuilder(
		bdispatch.WithHeadFallback(false),
		bdispatch.WithOptionsFallback(false),
		bdispatch.WithLogger(bdispatch.NewTestLogger(t)))
	b.Get("/items", text("items"))

	app, err := b.Build()
	require.NoError(t, err)

	rec := serve(t, app, http.MethodHead, "/items")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "GET", rec.Header().Get("Allow"))

	rec = serve(t, app, http.MethodOptions, "/items")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScopesAndPrefix(t *testing.T) {
	b := bdispatch.NewBuilder(bdispatch.WithPrefix("/v1"))
	b.Get("/", text("root"))
	b.Group("/api", func(s *bdispatch.Scope) {
		s.Get("/", text("api"))
		s.Group("/users/:uid", func(s *bdispatch.Scope) {
			s.Get("/posts/:pid", bdispatch.HandlerFunc(
				func(_ context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
					uid, _ := in.Param("uid")
					pid, _ := in.Param("pid")
					fmt.Fprintf(w, "%s/%s", uid, pid)

					return nil
				}))
		})
	})

	app, err := b.Build()
	require.NoError(t, err)

	require.Equal(t, "root", serve(t, app, http.MethodGet, "/v1").Body.String())
	require.Equal(t, "api", serve(t, app, http.MethodGet, "/v1/api").Body.String())
	require.Equal(t, "3/4", serve(t, app, http.MethodGet, "/v1/api/users/3/posts/4").Body.String())
	require.Equal(t, http.StatusNotFound, serve(t, app, http.MethodGet, "/api").Code)

	require.Equal(t, []string{"/v1", "/v1/api", "/v1/api/users/:uid/posts/:pid"}, []string{
		app.Routes()[0].Pattern, app.Routes()[1].Pattern, app.Routes()[2].Pattern,
	})
	t.Run("trailing slash scope prefix", func(t *testing.T) {
		b := bdispatch.NewBuilder()
		b.Group("/docs/", func(s *bdispatch.Scope) {
			s.Get("/", text("index"))
			s.Get("/intro", text("intro"))
		})
		b.Get("/docs", text("bare"))

		app, err := b.Build()
		require.NoError(t, err)

		require.Equal(t, "index", serve(t, app, http.MethodGet, "/docs/").Body.String())
		require.Equal(t, "bare", serve(t, app, http.MethodGet, "/docs").Body.String())
		require.Equal(t, "intro", serve(t, app, http.MethodGet, "/docs/intro").Body.String())
	})
}

func TestAppIsImmutableAfterBuild(t *testing.T) {
	key := bdispatch.NewKey[string]("greeting")

	b := bdispatch.NewBuilder()
	bdispatch.Provide(b.Scope, key, "hello")
	b.Get("/", bdispatch.Handle1(bdispatch.Shared(key),
		func(_ context.Context, w bdispatch.ResponseWriter, v string) error {
			fmt.Fprint(w, v)
			return nil
		}))

	app, err := b.Build()
	require.NoError(t, err)

	bdispatch.Provide(b.Scope, key, "changed")
	b.Get("/later", text("later"))

	require.Equal(t, "hello", serve(t, app, http.MethodGet, "/").Body.String())
	require.Equal(t, http.StatusNotFound, serve(t, app, http.MethodGet, "/later").Code)
	require.Len(t, app.Routes(), 1)
}

func TestInvalidScopePrefix(t *testing.T) {
	b := bdispatch.NewBuilder()
	b.Sub("api").Get("/x", text("x"))

	_, err := b.Build()
	require.ErrorIs(t, err, bdispatch.ErrInvalidPattern)
}
