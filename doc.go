// Package bdispatch is the request-dispatch core of an HTTP server: a scoped route table, typed
// extractors, onion-ordered middleware and a per-request state machine with protocol upgrade handoff.
//
// # Overview
//
// Routes are registered on a [Builder] and compiled into an immutable [App] that implements
// http.Handler. Compilation fails when two routes with overlapping methods could match the same
// request without a defined winner, so an ambiguous route table never serves traffic.
//
// A minimal example:
//
//	b := bdispatch.NewBuilder()
//	b.Get("/items/:id", bdispatch.Handle1(bdispatch.ParamInt("id"),
//	    func(ctx context.Context, w bdispatch.ResponseWriter, id int64) error {
//	        item, err := db.GetItem(ctx, id)
//	        if err != nil {
//	            return bdispatch.NewError(bdispatch.CodeNotFound, err)
//	        }
//	        return json.NewEncoder(w).Encode(item)
//	    }), bdispatch.Name("get-item"))
//
//	app, err := b.Build()
//
// # Patterns
//
// A pattern is a path whose segments are literals, named parameters (":id") matching exactly one
// non-empty segment, or a trailing wildcard ("*rest") matching the remainder of the path. When several
// patterns match a path, literals win over parameters and parameters win over wildcards, segment by
// segment from left to right. Methods are open tokens: "PURGE /cache" routes just like "GET /cache".
//
// HEAD requests are served by GET routes and OPTIONS requests are answered with the allowed methods
// unless a route handles them explicitly. See [WithHeadFallback] and [WithOptionsFallback].
//
// # Scopes
//
// Scopes nest under a path prefix. A route's middleware is that of every ancestor scope, outermost
// first, followed by its own:
//
//	b.Use(logging)
//	b.Group("/api", func(s *bdispatch.Scope) {
//	    s.Use(auth)
//	    s.Get("/items/:id", getItem)
//	})
//
// A request for "/api/items/1" runs logging, then auth, then getItem. Scopes can also carry an
// [ErrorHandler] and typed shared values, see [Provide] and [Shared].
//
// # Extractors
//
// Endpoints built with [Handle1] to [Handle4] declare typed [Extractor] values. They run in declaration
// order and the first failure stops the pipeline with an [*ExtractionError] before the handler runs.
// At most one extractor per route may read the body, and the body can only be taken once per request.
//
// # Buffered Response Writer
//
// Middleware, handlers and error handlers write to a [ResponseWriter] that buffers output. On failure
// the buffer is reset and the nearest scope's error handler formulates a completely new response.
//
// # Dispatching
//
// [App.Dispatch] walks every request through a fixed set of states, see [State]. Failures end in an
// error response, panics included, and the [Result] records the path the request took. Observers
// registered with [WithObserver] receive every result.
//
// # Upgrades
//
// A handler accepts a protocol upgrade with [Input.Upgrade] or the [UpgradeRequest] extractor. After the
// middleware chain has unwound, the dispatcher checks that the request negotiated the protocol, discards
// the buffered response and hands the connection to the [Protocol].
package bdispatch
