// Package middleware provides ready-made middleware and observers for bdispatch apps.
//
// Middleware registered with [bdispatch.Scope.Use] wraps every route below the scope. Observers,
// such as the ones returned by [AccessLog] and [Metrics.Observe], are registered on the builder with
// [bdispatch.WithObserver] and see the result of every request, including the ones that matched no
// route.
package middleware
