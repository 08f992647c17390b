package bdispatch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is a step of the per-request state machine.
type State int

const (
	StateReceived State = iota
	StateMatching
	StateNotFound
	StateMethodNotAllowed
	StateMatched
	StateChainBuilt
	StateExtracting
	StateExtractFailed
	StateExtracted
	StateHandling
	StateHandlerFailed
	StateResponded
	StateFinalizing
	StateDone
	StateUpgraded
)

var stateNames = [...]string{
	StateReceived:         "received",
	StateMatching:         "matching",
	StateNotFound:         "not_found",
	StateMethodNotAllowed: "method_not_allowed",
	StateMatched:          "matched",
	StateChainBuilt:       "chain_built",
	StateExtracting:       "extracting",
	StateExtractFailed:    "extract_failed",
	StateExtracted:        "extracted",
	StateHandling:         "handling",
	StateHandlerFailed:    "handler_failed",
	StateResponded:        "responded",
	StateFinalizing:       "finalizing",
	StateDone:             "done",
	StateUpgraded:         "upgraded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Result describes how a request was dispatched.
type Result struct {
	// State is the terminal state, either [StateDone] or [StateUpgraded].
	State State
	// Outcome is the state the request was in before it was finalized, such as [StateResponded] or
	// [StateNotFound].
	Outcome State
	// Trail lists every state the request passed through.
	Trail []State
	// Route is the matched route, its Index is -1 when no route matched.
	Route    RouteInfo
	Status   int
	Err      error
	Protocol string
	Duration time.Duration
}

// Observer is called with the result of every dispatched request.
type Observer func(r *http.Request, res Result)

type dispatch struct {
	app  *App
	span trace.Span
	res  Result
	w    *ResponseBuffer

	// kept holds the headers that were set when the handler started.
	kept http.Header
}

func (d *dispatch) to(s State) {
	d.res.Trail = append(d.res.Trail, s)
	d.span.AddEvent("bdispatch." + s.String())

	if s == StateExtracting && d.w != nil {
		d.kept = d.w.Header().Clone()
	}

	switch s {
	case StateNotFound, StateMethodNotAllowed, StateExtractFailed, StateHandlerFailed, StateResponded:
		d.res.Outcome = s
	case StateDone, StateUpgraded:
		d.res.State = s
	}
}

func (d *dispatch) last() State {
	return d.res.Trail[len(d.res.Trail)-1]
}

// Dispatch serves the request and returns how it was handled. Every failure is turned into a response
// by an error handler; it never panics on behalf of a handler.
func (a *App) Dispatch(w http.ResponseWriter, r *http.Request) Result {
	start := time.Now()
	d := &dispatch{
		app:  a,
		span: trace.SpanFromContext(r.Context()),
		res:  Result{Route: RouteInfo{Index: -1}, Trail: make([]State, 0, 12)},
	}

	d.to(StateReceived)

	bw := newBufferResponse(w, a.opts.bufLimit)
	defer bw.Free()

	d.w = bw

	in := acquireInput(a, r)
	defer releaseInput(in)

	in.notify = d.to

	d.run(bw, in)
	d.finalize(w, bw, in)

	d.res.Duration = time.Since(start)
	for _, obs := range a.opts.observers {
		obs(r, d.res)
	}

	return d.res
}

func (d *dispatch) run(w *ResponseBuffer, in *Input) {
	d.to(StateMatching)

	path := in.Request.URL.Path
	if path == "" {
		path = "/"
	}

	idx, params, err := d.app.match(in.Request.Method, path)
	if err != nil {
		var mna *MethodNotAllowedError
		if errors.As(err, &mna) {
			if in.Request.Method == http.MethodOptions && d.app.opts.optionsFallback {
				d.to(StateMatched)
				d.serve(w, in, Chain(withStates(allowHandler(mna.Allowed)), d.app.scopes[0].middleware...))

				return
			}

			d.to(StateMethodNotAllowed)
			d.fail(w, in, d.app.routes[idx].scope, err)

			return
		}

		d.to(StateNotFound)
		d.fail(w, in, d.app.scopeForPath(path), err)

		return
	}

	rd := &d.app.routes[idx]
	in.route, in.scope, in.params = rd, rd.scope, params
	d.res.Route = rd.info

	d.span.SetAttributes(attribute.String("http.route", rd.info.Pattern))
	d.to(StateMatched)
	d.serve(w, in, rd.chain)
}

func (d *dispatch) serve(w *ResponseBuffer, in *Input, chain Handler) {
	d.to(StateChainBuilt)

	err := d.invoke(w, in, chain)
	if err == nil {
		d.to(StateResponded)
		return
	}

	if d.last() == StateExtracting {
		d.to(StateExtractFailed)
	} else {
		d.to(StateHandlerFailed)

		var herr *HandlerError
		if !errors.As(err, &herr) {
			err = &HandlerError{Route: in.Route().Pattern, Cause: err}
		}
	}

	d.fail(w, in, in.scope, err)
}

// invoke runs the chain and turns a panic into an error.
func (d *dispatch) invoke(w *ResponseBuffer, in *Input, h Handler) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}

		if v == http.ErrAbortHandler { //nolint:errorlint,goerr113
			panic(v)
		}

		perr := errors.Newf("panic: %v", v)
		d.app.opts.logs.LogPanic(v, perr)

		if d.last() == StateExtracting {
			err = &ExtractionError{Kind: ExtractUsage, Extractor: in.extracting, Cause: perr}
			return
		}

		err = &HandlerError{Route: in.Route().Pattern, Panicked: true, Cause: perr}
	}()

	return h.ServeBHTTP(in.Request.Context(), w, in)
}

// fail replaces the response with the one of the error handler that is responsible for the scope.
// Headers that middleware set before the handler started survive unless the error handler sets them.
func (d *dispatch) fail(w *ResponseBuffer, in *Input, scope int, err error) {
	d.res.Err = err
	d.span.RecordError(err)

	if w.Flushed() {
		d.app.opts.logs.LogUnhandledServeError(errors.Wrap(err, "response was already flushed"))
		return
	}

	kept := d.kept
	if kept == nil {
		kept = w.Header().Clone()
	}

	w.Reset()
	d.app.errorHandlerFor(scope).ServeError(in.Request.Context(), w, in.Request, err)

	hdr := w.Header()
	for k, v := range kept {
		if _, set := hdr[k]; set || representationHeaders[k] {
			continue
		}

		hdr[k] = v
	}
}

// representationHeaders describe the discarded body and never carry over to an error response.
var representationHeaders = map[string]bool{
	"Content-Type":        true,
	"Content-Length":      true,
	"Content-Encoding":    true,
	"Content-Range":       true,
	"Content-Disposition": true,
	"Content-Language":    true,
	"Etag":                true,
	"Last-Modified":       true,
	"Transfer-Encoding":   true,
}

func (d *dispatch) finalize(w http.ResponseWriter, bw *ResponseBuffer, in *Input) {
	d.to(StateFinalizing)

	if in.upgrade != nil && d.res.Err == nil && d.upgrade(w, bw, in) {
		return
	}

	if err := bw.FlushBuffer(); err != nil {
		d.app.opts.logs.LogImplicitFlushError(err)
	}

	d.res.Status = bw.Status()
	d.to(StateDone)
}

// upgrade hands the connection off when the request negotiated the protocol the handler accepted. It
// reports false when the request was turned into an error response instead.
func (d *dispatch) upgrade(w http.ResponseWriter, bw *ResponseBuffer, in *Input) bool {
	proto := in.upgrade

	token, ok := NegotiateUpgrade(in.Request)
	if !ok || !strings.EqualFold(token, proto.Token()) {
		d.res.Outcome = StateHandlerFailed
		d.fail(bw, in, in.scope, errors.Wrapf(ErrUpgradeRejected, "accepted %q, requested %q", proto.Token(), token))

		return false
	}

	if bw.Flushed() {
		d.res.Outcome = StateHandlerFailed
		d.fail(bw, in, in.scope, errors.Wrap(ErrUpgradeRejected, "response was already flushed"))

		return false
	}

	header := bw.Header().Clone()
	bw.Reset()

	d.res.Protocol = proto.Token()
	d.res.Status = http.StatusSwitchingProtocols

	if err := proto.Handoff(in.Request.Context(), w, in.Request, header); err != nil {
		d.res.Err = err
		d.app.opts.logs.LogUpgradeError(proto.Token(), err)
	}

	d.to(StateUpgraded)

	return true
}

// withStates wraps handlers that are not an [*Endpoint] so they pass through the same extraction and
// handling states as an endpoint without extractors.
func withStates(h Handler) Handler {
	if _, ok := h.(*Endpoint); ok {
		return h
	}

	return HandlerFunc(func(ctx context.Context, w ResponseWriter, in *Input) error {
		in.transition(StateExtracting)
		handling(in)

		return h.ServeBHTTP(ctx, w, in)
	})
}

func allowHandler(allowed []string) Handler {
	return HandlerFunc(func(_ context.Context, w ResponseWriter, _ *Input) error {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		w.WriteHeader(http.StatusNoContent)

		return nil
	})
}
