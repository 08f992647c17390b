package bdispatch_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/stretchr/testify/require"
)

func pathHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "path:%s", r.URL.Path)
	})
}

func mounted(t *testing.T, fn func(b *bdispatch.Builder)) *bdispatch.App {
	t.Helper()

	b := bdispatch.NewBuilder(bdispatch.WithLogger(bdispatch.NewTestLogger(t)))
	fn(b)

	app, err := b.Build()
	require.NoError(t, err)

	return app
}

func TestMountStripsPrefix(t *testing.T) {
	app := mounted(t, func(b *bdispatch.Builder) { b.Mount("/api", pathHandler()) })

	for target, expect := range map[string]string{
		"/api/users":         "path:/users",
		"/api":               "path:/",
		"/api/":              "path:/",
		"/api/v1/users/123":  "path:/v1/users/123",
		"/api/a%2Fb/encoded": "path:/a/b/encoded",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serve(t, app, http.MethodGet, target)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, expect, rec.Body.String())
		})
	}

	t.Run("outside the prefix", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, serve(t, app, http.MethodGet, "/apix").Code)
	})
}

func TestMountMiddlewareSeesOriginalPath(t *testing.T) {
	app := mounted(t, func(b *bdispatch.Builder) {
		b.Use(func(next bdispatch.Handler) bdispatch.Handler {
			return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
				ctx = context.WithValue(ctx, ctxKey("mw_path"), in.Request.URL.Path)
				return next.ServeBHTTP(ctx, w, in)
			})
		})

		b.Mount("/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mwPath, _ := r.Context().Value(ctxKey("mw_path")).(string)
			fmt.Fprintf(w, "mw:%s,handler:%s", mwPath, r.URL.Path)
		}))
	})

	rec := serve(t, app, http.MethodGet, "/api/users")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "mw:/api/users,handler:/users", rec.Body.String())
}

func TestMountHandlerOwnsErrorResponse(t *testing.T) {
	app := mounted(t, func(b *bdispatch.Builder) {
		b.Mount("/static", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "custom not found", http.StatusNotFound)
		}))
	})

	rec := serve(t, app, http.MethodGet, "/static/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "custom not found\n", rec.Body.String())
}

func TestMountCoexistsWithRoutes(t *testing.T) {
	app := mounted(t, func(b *bdispatch.Builder) {
		b.Get("/health", text("ok"))
		b.Group("/v2", func(s *bdispatch.Scope) {
			s.Mount("/files", pathHandler())
		})
		b.Mount("/static", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "static:%s", r.URL.Path)
		}))
	})

	t.Run("route", func(t *testing.T) {
		require.Equal(t, "ok", serve(t, app, http.MethodGet, "/health").Body.String())
	})

	t.Run("mount in a scope", func(t *testing.T) {
		require.Equal(t, "path:/a.txt", serve(t, app, http.MethodPost, "/v2/files/a.txt").Body.String())
	})

	t.Run("root mount", func(t *testing.T) {
		require.Equal(t, "static:/img.png", serve(t, app, http.MethodGet, "/static/img.png").Body.String())
	})
}

func TestMountConflictsWithRoute(t *testing.T) {
	b := bdispatch.NewBuilder()
	b.Mount("/api", pathHandler())
	b.Get("/api/*rest", text("x"))

	_, err := b.Build()
	require.ErrorIs(t, err, bdispatch.ErrBuildConflict)
}
