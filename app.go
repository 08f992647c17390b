package bdispatch

import (
	"net/http"
	"slices"

	"github.com/samber/lo"
)

// App is the compiled, immutable route table and scope tree. It is safe for concurrent use and
// implements [http.Handler].
type App struct {
	opts     options
	scopes   []scopeData
	routes   []routeData
	tree     *node
	reverser *Reverser
}

// Match describes the route selected for a request.
type Match struct {
	Route  RouteInfo
	Params Params
}

// Match selects the route for the method and path. It fails with [ErrRouteNotFound] when no pattern
// matches the path and with a [*MethodNotAllowedError] when patterns match but none accepts the method.
func (a *App) Match(method, path string) (Match, error) {
	idx, params, err := a.match(method, path)
	if err != nil {
		return Match{}, err
	}

	return Match{Route: a.routes[idx].info, Params: params}, nil
}

// Routes lists the compiled routes in registration order.
func (a *App) Routes() []RouteInfo {
	return lo.Map(a.routes, func(rd routeData, _ int) RouteInfo { return rd.info })
}

// Reverse returns the path of the named route with the parameter values substituted in order.
func (a *App) Reverse(name string, vals ...string) (string, error) {
	return a.reverser.Reverse(name, vals...)
}

// ServeHTTP implements [http.Handler] by dispatching the request.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Dispatch(w, r)
}

// match selects the route for the method and path. On a method mismatch the returned index is the
// first route that matched the path, next to the *MethodNotAllowedError.
func (a *App) match(method, path string) (int, Params, error) {
	segs := splitPath(path)

	idx, vals, hit, allowed := find(a.tree, a.routes, method, segs)
	if idx < 0 && method == http.MethodHead && a.opts.headFallback {
		gidx, gvals, ghit, _ := find(a.tree, a.routes, http.MethodGet, segs)
		if gidx >= 0 {
			idx, vals = gidx, gvals
		}

		if hit < 0 {
			hit = ghit
		}
	}

	if idx >= 0 {
		rd := &a.routes[idx]
		last := len(rd.pat.segs) - 1

		return idx, Params{
			names:    rd.pat.paramNames(),
			values:   vals,
			wildcard: last >= 0 && rd.pat.segs[last].kind == segmentWildcard,
		}, nil
	}

	if hit < 0 {
		return -1, Params{}, ErrRouteNotFound
	}

	return hit, Params{}, &MethodNotAllowedError{Method: method, Allowed: a.allowedMethods(allowed)}
}

func (a *App) allowedMethods(allowed []string) []string {
	if a.opts.headFallback && slices.Contains(allowed, http.MethodGet) {
		allowed = append(allowed, http.MethodHead)
	}

	if a.opts.optionsFallback {
		allowed = append(allowed, http.MethodOptions)
	}

	allowed = lo.Uniq(allowed)
	slices.Sort(allowed)

	return allowed
}

// middlewareFor returns the middleware of every scope from the root down to the route's scope, followed
// by the route's own middleware.
func (a *App) middlewareFor(rd *routeData) []Middleware {
	var path []int
	for idx := rd.scope; idx >= 0; idx = a.scopes[idx].parent {
		path = append(path, idx)
	}

	var mws []Middleware
	for i := len(path) - 1; i >= 0; i-- {
		mws = append(mws, a.scopes[path[i]].middleware...)
	}

	return append(mws, rd.middleware...)
}

// scopeForPath returns the deepest scope whose prefix matches the path. Siblings are tried in
// registration order and the root scope matches every path.
func (a *App) scopeForPath(path string) int {
	segs := splitPath(path)

	cur := 0
	for {
		next := -1
		for _, child := range a.scopes[cur].children {
			if prefixMatches(a.scopes[child].prefix, segs) {
				next = child
				break
			}
		}

		if next < 0 {
			return cur
		}

		cur = next
	}
}

// errorHandlerFor returns the error handler of the scope or its nearest ancestor that has one.
func (a *App) errorHandlerFor(scope int) ErrorHandler {
	for idx := scope; idx >= 0; idx = a.scopes[idx].parent {
		if eh := a.scopes[idx].errorHandler; eh != nil {
			return eh
		}
	}

	return DefaultErrorHandler(a.opts.logs)
}
