package bdispatch

import (
	"io"
	"net/http"
	"sync"
)

// Params holds the values captured by the matched route's parameters and wildcard, in path order.
type Params struct {
	names    []string
	values   []string
	wildcard bool
}

// Get returns the value captured for the named parameter.
func (p Params) Get(name string) (string, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}

	return "", false
}

// Len returns the number of captured values.
func (p Params) Len() int { return len(p.values) }

// At returns the i-th captured name and value.
func (p Params) At(i int) (name, value string) { return p.names[i], p.values[i] }

// Wildcard returns the value captured by the trailing wildcard, if the route has one.
func (p Params) Wildcard() (string, bool) {
	if !p.wildcard || len(p.values) < 1 {
		return "", false
	}

	return p.values[len(p.values)-1], true
}

// Key identifies a typed value that is shared by a scope or stored on a request.
type Key[T any] struct{ name string }

// NewKey creates a new key. Keys are compared by identity, the name is only used in errors.
func NewKey[T any](name string) *Key[T] { return &Key[T]{name: name} }

func (k *Key[T]) String() string { return k.name }

// Input is the per-request context handed to middleware, extractors and handlers. It is only valid
// until the dispatcher has finalized the response or handed the connection off.
type Input struct {
	// Request is the decoded request. Its context is the one the dispatcher started with; use the
	// context passed to the handler for values set by middleware.
	Request *http.Request

	app       *App
	route     *routeData
	scope     int
	params    Params
	bodyTaken bool
	locals    map[any]any
	upgrade   Protocol
	notify    func(State)

	extracting string
}

var inputPool = sync.Pool{New: func() any { return new(Input) }}

func acquireInput(app *App, r *http.Request) *Input {
	in, _ := inputPool.Get().(*Input)
	in.Request, in.app = r, app

	return in
}

func releaseInput(in *Input) {
	clear(in.locals)
	locals := in.locals
	*in = Input{locals: locals}
	inputPool.Put(in)
}

// NewInput creates an input outside of the dispatcher, which is mostly useful in tests of handlers and
// extractors. The params are name and value pairs.
func NewInput(r *http.Request, params ...string) *Input {
	in := &Input{Request: r, scope: -1}
	for i := 0; i+1 < len(params); i += 2 {
		in.params.names = append(in.params.names, params[i])
		in.params.values = append(in.params.values, params[i+1])
	}

	return in
}

// Params returns the captured path parameters.
func (in *Input) Params() Params { return in.params }

// Param returns a single captured path parameter.
func (in *Input) Param(name string) (string, bool) { return in.params.Get(name) }

// Route describes the matched route. It is the zero value for synthesized responses.
func (in *Input) Route() RouteInfo {
	if in.route == nil {
		return RouteInfo{Index: -1}
	}

	return in.route.info
}

// TakeBody hands out the request body. The body can be taken once per request, later calls fail with
// an extraction error wrapping [ErrBodyConsumed].
func (in *Input) TakeBody() (io.ReadCloser, error) {
	if in.bodyTaken {
		return nil, NewExtractionError(ExtractUsage, ErrBodyConsumed)
	}

	in.bodyTaken = true

	body := in.Request.Body
	if body == nil {
		body = http.NoBody
	}

	if in.app != nil && in.app.opts.bodyLimit >= 0 {
		body = http.MaxBytesReader(nil, body, in.app.opts.bodyLimit)
	}

	return body, nil
}

// Upgrade asks the dispatcher to hand the connection to 'p' once the handler chain has returned
// successfully. The request must negotiate the protocol's token, otherwise the request fails with
// [ErrUpgradeRejected].
func (in *Input) Upgrade(p Protocol) { in.upgrade = p }

// SetLocal stores a value for later extractors and the handler of this request.
func SetLocal[T any](in *Input, k *Key[T], v T) {
	if in.locals == nil {
		in.locals = map[any]any{}
	}

	in.locals[k] = v
}

// GetLocal returns a value stored with [SetLocal].
func GetLocal[T any](in *Input, k *Key[T]) (v T, ok bool) {
	raw, ok := in.locals[k]
	if !ok {
		return v, false
	}

	v, ok = raw.(T)

	return v, ok
}

// Lookup resolves a value provided with [Provide] on the matched route's scope or its nearest ancestor.
func Lookup[T any](in *Input, k *Key[T]) (v T, ok bool) {
	if in.app == nil {
		return v, false
	}

	for idx := in.scope; idx >= 0; idx = in.app.scopes[idx].parent {
		if raw, exists := in.app.scopes[idx].shared[k]; exists {
			v, ok = raw.(T)
			return v, ok
		}
	}

	return v, false
}

func (in *Input) transition(s State) {
	if in.notify != nil {
		in.notify(s)
	}
}
