package bdispatch

import (
	"context"
	"log"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Option configures the [Builder].
type Option func(*options)

type options struct {
	logs            Logger
	bufLimit        int
	bodyLimit       int64
	headFallback    bool
	optionsFallback bool
	prefix          string
	observers       []Observer
}

// WithLogger sets the logger that is informed about unhandled errors. Defaults to the standard logger.
func WithLogger(l Logger) Option { return func(o *options) { o.logs = l } }

// WithBufferLimit limits the size of buffered responses. A negative value, the default, disables it.
func WithBufferLimit(n int) Option { return func(o *options) { o.bufLimit = n } }

// WithBodyLimit limits how many bytes body extractors read. A negative value, the default, disables it.
func WithBodyLimit(n int64) Option { return func(o *options) { o.bodyLimit = n } }

// WithHeadFallback configures whether HEAD requests are served by GET routes when no route accepts
// HEAD explicitly. Enabled by default.
func WithHeadFallback(enabled bool) Option { return func(o *options) { o.headFallback = enabled } }

// WithOptionsFallback configures whether OPTIONS requests on a known path are answered with the allowed
// methods when no route accepts OPTIONS explicitly. Enabled by default.
func WithOptionsFallback(enabled bool) Option {
	return func(o *options) { o.optionsFallback = enabled }
}

// WithPrefix sets a prefix for every route of the app.
func WithPrefix(prefix string) Option { return func(o *options) { o.prefix = prefix } }

// WithObserver registers observers that are called with the result of every dispatched request.
func WithObserver(obs ...Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs...) }
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	// Methods the route accepts, nil when it accepts any method.
	Methods []string
	Pattern string
	Name    string
	// Index is the registration order of the route.
	Index int
}

func (ri RouteInfo) String() string {
	methods := "*"
	if ri.Methods != nil {
		methods = strings.Join(ri.Methods, ",")
	}

	return methods + " " + ri.Pattern
}

// RouteOption configures a single route.
type RouteOption func(*routeData)

// Name names the route so it can be reversed into a path with [App.Reverse].
func Name(name string) RouteOption { return func(r *routeData) { r.info.Name = name } }

// WithMiddleware adds middleware that only wraps this route. It runs inside all scope middleware.
func WithMiddleware(mw ...Middleware) RouteOption {
	return func(r *routeData) { r.middleware = append(r.middleware, mw...) }
}

type routeData struct {
	info       RouteInfo
	methods    methodSet
	pat        pattern
	handler    Handler
	middleware []Middleware
	scope      int
	chain      Handler
}

type scopeData struct {
	parent       int
	prefix       string
	middleware   []Middleware
	errorHandler ErrorHandler
	shared       map[any]any
	children     []int
}

// Builder collects scopes and routes and compiles them into an [App]. Registration errors are collected
// and reported together by [Builder.Build].
type Builder struct {
	*Scope

	opts   options
	scopes []scopeData
	routes []routeData
	errs   []error
}

// NewBuilder creates a builder. Its embedded root scope receives the app-wide middleware and routes.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{opts: options{
		logs:            NewStdLogger(log.Default()),
		bufLimit:        -1,
		bodyLimit:       -1,
		headFallback:    true,
		optionsFallback: true,
	}}

	for _, o := range opts {
		o(&b.opts)
	}

	if b.opts.prefix != "" && !validPrefix(b.opts.prefix) {
		b.errs = append(b.errs, errors.Wrapf(ErrInvalidPattern, "app prefix %q", b.opts.prefix))
	}

	b.scopes = append(b.scopes, scopeData{parent: -1, prefix: strings.TrimSuffix(b.opts.prefix, "/")})
	b.Scope = &Scope{b: b, idx: 0}

	return b
}

// Scope is a node of the scope tree. Routes registered on it are prefixed with its path and wrapped by
// the middleware of the scope and all of its ancestors.
type Scope struct {
	b   *Builder
	idx int
}

// Use appends middleware to the scope. The order of Use and route registration does not matter: every
// route of the scope is wrapped by all of its middleware.
func (s *Scope) Use(mw ...Middleware) *Scope {
	s.data().middleware = append(s.data().middleware, mw...)
	return s
}

// ErrorHandler sets the handler for failures of routes in this scope and descendant scopes that do not
// set their own. It also answers unmatched paths below the scope prefix and methods the scope's routes
// do not accept.
func (s *Scope) ErrorHandler(h ErrorHandler) *Scope {
	s.data().errorHandler = h
	return s
}

// Prefix returns the full path prefix of the scope.
func (s *Scope) Prefix() string { return s.data().prefix }

// Group creates a child scope with the given prefix and passes it to fn.
func (s *Scope) Group(prefix string, fn func(*Scope)) *Scope {
	child := s.Sub(prefix)
	if fn != nil {
		fn(child)
	}

	return child
}

// Sub creates and returns a child scope with the given prefix.
func (s *Scope) Sub(prefix string) *Scope {
	if !validPrefix(prefix) {
		s.b.errs = append(s.b.errs, errors.Wrapf(ErrInvalidPattern, "scope prefix %q", prefix))
	}

	idx := len(s.b.scopes)
	s.b.scopes = append(s.b.scopes, scopeData{
		parent: s.idx,
		prefix: joinPath(s.data().prefix, prefix),
	})
	s.data().children = append(s.data().children, idx)

	return &Scope{b: s.b, idx: idx}
}

// Provide makes 'v' available to extractors of routes in the scope and its descendants. A descendant
// can provide its own value for the same key.
func Provide[T any](s *Scope, k *Key[T], v T) {
	d := s.data()
	if d.shared == nil {
		d.shared = map[any]any{}
	}

	d.shared[k] = v
}

// Handle registers a handler. The pattern is a path, optionally preceded by a comma separated list of
// methods: "GET /items/:id", "GET,POST /items" or "/files/*path" for any method.
func (s *Scope) Handle(pattern string, h Handler, opts ...RouteOption) {
	methods, path := splitMethodPattern(pattern)
	s.handle(methods, path, h, opts...)
}

// HandleFunc registers a handler function, see [Scope.Handle].
func (s *Scope) HandleFunc(pattern string, h HandlerFunc, opts ...RouteOption) {
	s.Handle(pattern, h, opts...)
}

// Get registers a handler for GET requests.
func (s *Scope) Get(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{methods: []string{http.MethodGet}}, path, h, opts...)
}

// Post registers a handler for POST requests.
func (s *Scope) Post(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{methods: []string{http.MethodPost}}, path, h, opts...)
}

// Put registers a handler for PUT requests.
func (s *Scope) Put(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{methods: []string{http.MethodPut}}, path, h, opts...)
}

// Patch registers a handler for PATCH requests.
func (s *Scope) Patch(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{methods: []string{http.MethodPatch}}, path, h, opts...)
}

// Delete registers a handler for DELETE requests.
func (s *Scope) Delete(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{methods: []string{http.MethodDelete}}, path, h, opts...)
}

// Any registers a handler for every method.
func (s *Scope) Any(path string, h Handler, opts ...RouteOption) {
	s.handle(methodSet{any: true}, path, h, opts...)
}

// Mount serves a standard library handler for every path below 'prefix'. The handler receives the
// request with the prefix stripped from the path. Scope middleware sees the original path.
func (s *Scope) Mount(prefix string, h http.Handler, opts ...RouteOption) {
	prefix = strings.TrimSuffix(prefix, "/")
	stripped := stripPrefix(h)

	s.handle(methodSet{any: true}, lo.Ternary(prefix == "", "/", prefix), stripped, opts...)
	s.handle(methodSet{any: true}, prefix+"/*"+mountWildcard, stripped)
}

func (s *Scope) handle(methods methodSet, path string, h Handler, opts ...RouteOption) {
	full := joinPath(s.data().prefix, path)

	pat, err := parsePattern(full)
	if err != nil {
		s.b.errs = append(s.b.errs, err)
		return
	}

	if h == nil {
		s.b.errs = append(s.b.errs, errors.Newf("route %q: nil handler", full))
		return
	}

	if ep, ok := h.(*Endpoint); ok && ep.Err() != nil {
		s.b.errs = append(s.b.errs, errors.Wrapf(ep.Err(), "route %q", full))
		return
	}

	rd := routeData{
		info: RouteInfo{
			Pattern: full,
			Index:   len(s.b.routes),
		},
		methods: methods,
		pat:     pat,
		handler: h,
		scope:   s.idx,
	}

	if !methods.any {
		rd.info.Methods = methods.methods
	}

	for _, o := range opts {
		o(&rd)
	}

	s.b.routes = append(s.b.routes, rd)
}

func (s *Scope) data() *scopeData { return &s.b.scopes[s.idx] }

// Build compiles the registered routes into an immutable [App]. It fails with every registration error
// and, when routes cannot be ordered unambiguously, with a [*ConflictError].
func (b *Builder) Build() (*App, error) {
	errs := append([]error{}, b.errs...)

	rev := NewReverser()
	for _, rd := range b.routes {
		if rd.info.Name == "" {
			continue
		}

		if _, err := rev.NamedPattern(rd.info.Name, rd.info.Pattern); err != nil {
			errs = append(errs, errors.Wrapf(err, "route %s", rd.info))
		}
	}

	if cerr := detectConflicts(b.routes); cerr != nil {
		errs = append(errs, cerr)
	}

	switch len(errs) {
	case 0:
	case 1:
		return nil, errs[0]
	default:
		return nil, errors.Join(errs...)
	}

	app := &App{
		opts:     b.opts,
		scopes:   make([]scopeData, len(b.scopes)),
		routes:   make([]routeData, len(b.routes)),
		tree:     newNode(),
		reverser: rev,
	}

	app.opts.observers = slices.Clone(b.opts.observers)

	for i, sd := range b.scopes {
		sd.middleware = slices.Clone(sd.middleware)
		sd.children = slices.Clone(sd.children)
		sd.shared = maps.Clone(sd.shared)
		app.scopes[i] = sd
	}

	for i, rd := range b.routes {
		rd.middleware = slices.Clone(rd.middleware)
		app.routes[i] = rd
	}

	for i := range app.routes {
		rd := &app.routes[i]
		rd.chain = Chain(withStates(rd.handler), app.middlewareFor(rd)...)
		app.tree.insert(rd.pat, i)
	}

	return app, nil
}

// splitMethodPattern splits "GET,POST /path" into its method set and path.
func splitMethodPattern(pattern string) (methodSet, string) {
	before, after, found := strings.Cut(strings.TrimSpace(pattern), " ")
	if !found {
		return methodSet{any: true}, before
	}

	methods := lo.Uniq(lo.Compact(lo.Map(strings.Split(before, ","), func(m string, _ int) string {
		return strings.TrimSpace(m)
	})))

	if len(methods) < 1 || lo.Contains(methods, "*") {
		return methodSet{any: true}, strings.TrimSpace(after)
	}

	return methodSet{methods: methods}, strings.TrimSpace(after)
}

func validPrefix(prefix string) bool {
	return prefix == "" || strings.HasPrefix(prefix, "/")
}

const mountWildcard = "mounted"

func stripPrefix(h http.Handler) Handler {
	return HandlerFunc(func(ctx context.Context, w ResponseWriter, in *Input) error {
		rest, _ := in.Params().Wildcard()

		r2 := in.Request.WithContext(ctx)
		r2.URL = new(url.URL)
		*r2.URL = *in.Request.URL
		r2.URL.Path = "/" + rest
		r2.URL.RawPath = ""

		h.ServeHTTP(w, r2)

		return nil
	})
}
