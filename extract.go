package bdispatch

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Extractor produces a typed value from the request, or fails and stops the pipeline.
type Extractor[T any] struct {
	name string
	body bool
	fn   func(ctx context.Context, in *Input) (T, error)
}

// NewExtractor creates an extractor that does not read the request body.
func NewExtractor[T any](name string, fn func(ctx context.Context, in *Input) (T, error)) Extractor[T] {
	return Extractor[T]{name: name, fn: fn}
}

// NewBodyExtractor creates an extractor that reads the request body. A route can have at most one.
func NewBodyExtractor[T any](name string, fn func(ctx context.Context, in *Input) (T, error)) Extractor[T] {
	return Extractor[T]{name: name, body: true, fn: fn}
}

// Name describes the extractor in errors.
func (e Extractor[T]) Name() string { return e.name }

// ConsumesBody reports whether the extractor reads the request body.
func (e Extractor[T]) ConsumesBody() bool { return e.body }

// Extract runs the extractor. A done context fails without running it. Errors always carry an
// [*ExtractionError], which names this extractor unless an inner extractor already named it.
func (e Extractor[T]) Extract(ctx context.Context, in *Input) (v T, err error) {
	if err := ctx.Err(); err != nil {
		return v, &ExtractionError{Kind: ExtractCanceled, Extractor: e.name, Cause: err}
	}

	in.extracting = e.name

	v, err = e.fn(ctx, in)
	if err == nil {
		return v, nil
	}

	var xerr *ExtractionError
	if errors.As(err, &xerr) {
		if xerr.Extractor == "" {
			xerr.Extractor = e.name
		}

		return v, err
	}

	return v, &ExtractionError{Kind: ExtractMalformed, Extractor: e.name, Cause: err}
}

type extractorInfo interface {
	Name() string
	ConsumesBody() bool
}

// Endpoint is a handler with an ordered list of extractors. The extractors run strictly in declaration
// order and the handler only runs when all of them succeeded.
type Endpoint struct {
	extractors []extractorInfo
	serve      func(ctx context.Context, w ResponseWriter, in *Input) error
	err        error
}

func newEndpoint(serve func(context.Context, ResponseWriter, *Input) error, xs ...extractorInfo) *Endpoint {
	ep := &Endpoint{extractors: xs, serve: serve}

	var body []string
	for _, x := range xs {
		if x.ConsumesBody() {
			body = append(body, x.Name())
		}
	}

	if len(body) > 1 {
		ep.err = errors.Newf("endpoint declares %d body extractors %v, at most one is allowed", len(body), body)
	}

	return ep
}

// Extractors returns the names of the extractors in declaration order.
func (ep *Endpoint) Extractors() []string {
	names := make([]string, len(ep.extractors))
	for i, x := range ep.extractors {
		names[i] = x.Name()
	}

	return names
}

// Err returns the error that makes the endpoint invalid, if any.
func (ep *Endpoint) Err() error { return ep.err }

// ServeBHTTP implements [Handler].
func (ep *Endpoint) ServeBHTTP(ctx context.Context, w ResponseWriter, in *Input) error {
	if ep.err != nil {
		return ep.err
	}

	in.transition(StateExtracting)

	return ep.serve(ctx, w, in)
}

func (ep *Endpoint) String() string { return fmt.Sprintf("endpoint%v", ep.Extractors()) }

func handling(in *Input) {
	in.transition(StateExtracted)
	in.transition(StateHandling)
}

// Handle0 creates an endpoint without extractors.
func Handle0(fn func(ctx context.Context, w ResponseWriter) error) *Endpoint {
	return newEndpoint(func(ctx context.Context, w ResponseWriter, in *Input) error {
		handling(in)
		return fn(ctx, w)
	})
}

// Handle1 creates an endpoint with one extractor.
func Handle1[A any](
	ea Extractor[A],
	fn func(ctx context.Context, w ResponseWriter, a A) error,
) *Endpoint {
	return newEndpoint(func(ctx context.Context, w ResponseWriter, in *Input) error {
		a, err := ea.Extract(ctx, in)
		if err != nil {
			return err
		}

		handling(in)

		return fn(ctx, w, a)
	}, ea)
}

// Handle2 creates an endpoint with two extractors.
func Handle2[A, B any](
	ea Extractor[A], eb Extractor[B],
	fn func(ctx context.Context, w ResponseWriter, a A, b B) error,
) *Endpoint {
	return newEndpoint(func(ctx context.Context, w ResponseWriter, in *Input) error {
		a, err := ea.Extract(ctx, in)
		if err != nil {
			return err
		}

		b, err := eb.Extract(ctx, in)
		if err != nil {
			return err
		}

		handling(in)

		return fn(ctx, w, a, b)
	}, ea, eb)
}

// Handle3 creates an endpoint with three extractors.
func Handle3[A, B, C any](
	ea Extractor[A], eb Extractor[B], ec Extractor[C],
	fn func(ctx context.Context, w ResponseWriter, a A, b B, c C) error,
) *Endpoint {
	return newEndpoint(func(ctx context.Context, w ResponseWriter, in *Input) error {
		a, err := ea.Extract(ctx, in)
		if err != nil {
			return err
		}

		b, err := eb.Extract(ctx, in)
		if err != nil {
			return err
		}

		c, err := ec.Extract(ctx, in)
		if err != nil {
			return err
		}

		handling(in)

		return fn(ctx, w, a, b, c)
	}, ea, eb, ec)
}

// Handle4 creates an endpoint with four extractors.
func Handle4[A, B, C, D any](
	ea Extractor[A], eb Extractor[B], ec Extractor[C], ed Extractor[D],
	fn func(ctx context.Context, w ResponseWriter, a A, b B, c C, d D) error,
) *Endpoint {
	return newEndpoint(func(ctx context.Context, w ResponseWriter, in *Input) error {
		a, err := ea.Extract(ctx, in)
		if err != nil {
			return err
		}

		b, err := eb.Extract(ctx, in)
		if err != nil {
			return err
		}

		c, err := ec.Extract(ctx, in)
		if err != nil {
			return err
		}

		d, err := ed.Extract(ctx, in)
		if err != nil {
			return err
		}

		handling(in)

		return fn(ctx, w, a, b, c, d)
	}, ea, eb, ec, ed)
}
