package bserver

import (
	"context"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into handler constructors via fx instead of pulling from context.
//
// Example:
//
//	type Handlers struct {
//	    rt *bserver.Runtime[Env]
//	}
//
//	func NewHandlers(rt *bserver.Runtime[Env]) *Handlers {
//	    return &Handlers{rt: rt}
//	}
//
//	func (h *Handlers) CreateItem(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
//	    loc, _ := h.rt.Reverse("get-item", id)
//	    w.Header().Set("Location", loc)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env          E
	app          *appRef
	secretReader SecretReader
	transport    http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	SecretReader SecretReader
	Transport    http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, app *appRef, params RuntimeParams) *Runtime[E] {
	if app == nil {
		app = &appRef{}
	}

	return &Runtime[E]{
		env:          env,
		app:          app,
		secretReader: params.SecretReader,
		transport:    params.Transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Reverse returns the path for a named route with the given parameter values. It fails until the
// routes have been compiled, which happens before the server starts.
func (r *Runtime[E]) Reverse(name string, vals ...string) (string, error) {
	app := r.app.Load()
	if app == nil {
		return "", errors.New("bserver: routes are not built yet")
	}

	return app.Reverse(name, vals...)
}

// Secret retrieves a secret value from AWS Secrets Manager.
//
// If jsonPath is provided, the secret is parsed as JSON and the path is extracted using gjson syntax
// (e.g., "database.password", "api.keys.0"). Secrets are cached but fetched per call to support
// rotation without redeployment.
func (r *Runtime[E]) Secret(ctx context.Context, secretID string, jsonPath ...string) (string, error) {
	if r.secretReader == nil {
		return "", errors.New("bserver: secret reader not configured")
	}

	var path string
	switch len(jsonPath) {
	case 0:
	case 1:
		path = jsonPath[0]
	default:
		return "", errors.Newf("bserver: at most one jsonPath argument, got %d", len(jsonPath))
	}

	return secretFromReader(ctx, r.secretReader, secretID, path)
}

// NewRequest starts an outbound request that is traced and propagates the trace context.
func (r *Runtime[E]) NewRequest() *requests.Builder {
	t := r.transport
	if t == nil {
		t = http.DefaultTransport
	}

	return newRequestBuilder(t)
}
