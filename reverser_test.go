package bdispatch_test

import (
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverser(t *testing.T) {
	rev := bdispatch.NewReverser()

	t.Run("should allow naming patterns", func(t *testing.T) {
		s := rev.Named("homepage", "/")
		assert.Equal(t, "/", s)

		s, err := rev.NamedPattern("blog_post", "/blog/:id/")
		require.NoError(t, err)
		assert.Equal(t, "/blog/:id/", s)

		rev.Named("asset", "/assets/:version/*path")
	})

	t.Run("should reverse named patterns", func(t *testing.T) {
		res, err := rev.Reverse("homepage")
		require.NoError(t, err)
		assert.Equal(t, "/", res)

		res, err = rev.Reverse("blog_post", "hello world")
		require.NoError(t, err)
		assert.Equal(t, "/blog/hello%20world/", res)
	})

	t.Run("should keep slashes of wildcard values", func(t *testing.T) {
		res, err := rev.Reverse("asset", "v1", "css/site main.css")
		require.NoError(t, err)
		assert.Equal(t, "/assets/v1/css/site%20main.css", res)
	})

	t.Run("should error if pattern already exists", func(t *testing.T) {
		_, err := rev.NamedPattern("homepage", "/")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("should panic for Named error", func(t *testing.T) {
		assert.PanicsWithValue(t,
			"bdispatch: failed to parse pattern: \"\": must start with '/': invalid route pattern", func() {
				rev.Named("bogus", "")
			})
	})

	t.Run("should error if reversing unknown name", func(t *testing.T) {
		_, err := rev.Reverse("bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no pattern named: \"bogus\"")
	})

	t.Run("should error if url building fails", func(t *testing.T) {
		_, err := rev.Reverse("blog_post")
		require.ErrorContains(t, err, "want 1 value(s), got 0")

		_, err = rev.Reverse("blog_post", "")
		require.ErrorContains(t, err, `empty value for "id"`)
	})
}

func TestAppReverse(t *testing.T) {
	b := bdispatch.NewBuilder(bdispatch.WithPrefix("/v1"))
	b.Group("/users/:uid", func(s *bdispatch.Scope) {
		s.Get("/posts/:pid", text("post"), bdispatch.Name("user-post"))
	})

	app, err := b.Build()
	require.NoError(t, err)

	url, err := app.Reverse("user-post", "42", "101")
	require.NoError(t, err)
	require.Equal(t, "/v1/users/42/posts/101", url)
}
