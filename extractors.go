package bdispatch

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Param extracts the named path parameter and parses it.
func Param[T any](name string, parse func(string) (T, error)) Extractor[T] {
	return NewExtractor("param "+strconv.Quote(name), func(_ context.Context, in *Input) (v T, err error) {
		raw, ok := in.Param(name)
		if !ok {
			return v, NewExtractionError(ExtractMissing, errors.Newf("route has no parameter %q", name))
		}

		return parse(raw)
	})
}

// ParamString extracts the named path parameter as is.
func ParamString(name string) Extractor[string] {
	return Param(name, func(s string) (string, error) { return s, nil })
}

// ParamInt extracts the named path parameter as a base 10 integer.
func ParamInt(name string) Extractor[int64] {
	return Param(name, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

// Wildcard extracts the remainder of the path captured by the route's trailing wildcard.
func Wildcard() Extractor[string] {
	return NewExtractor("wildcard", func(_ context.Context, in *Input) (string, error) {
		v, ok := in.Params().Wildcard()
		if !ok {
			return "", NewExtractionError(ExtractMissing, errors.New("route has no wildcard"))
		}

		return v, nil
	})
}

// Query extracts all query parameters. A malformed query string fails the extraction.
func Query() Extractor[url.Values] {
	return NewExtractor("query", func(_ context.Context, in *Input) (url.Values, error) {
		return url.ParseQuery(in.Request.URL.RawQuery)
	})
}

// QueryValue extracts a single query parameter that must be present.
func QueryValue(name string) Extractor[string] {
	return NewExtractor("query "+strconv.Quote(name), func(_ context.Context, in *Input) (string, error) {
		vals, err := url.ParseQuery(in.Request.URL.RawQuery)
		if err != nil {
			return "", err
		}

		if !vals.Has(name) {
			return "", NewExtractionError(ExtractMissing, errors.Newf("no query parameter %q", name))
		}

		return vals.Get(name), nil
	})
}

// Header extracts a request header that must be present.
func Header(name string) Extractor[string] {
	name = http.CanonicalHeaderKey(name)

	return NewExtractor("header "+strconv.Quote(name), func(_ context.Context, in *Input) (string, error) {
		vals, ok := in.Request.Header[name]
		if !ok || len(vals) < 1 {
			return "", NewExtractionError(ExtractMissing, errors.Newf("no %s header", name))
		}

		return vals[0], nil
	})
}

// Method extracts the request method.
func Method() Extractor[string] {
	return NewExtractor("method", func(_ context.Context, in *Input) (string, error) {
		return in.Request.Method, nil
	})
}

// Shared extracts a value provided on the route's scope or one of its ancestors.
func Shared[T any](k *Key[T]) Extractor[T] {
	return NewExtractor("shared "+strconv.Quote(k.name), func(_ context.Context, in *Input) (v T, err error) {
		v, ok := Lookup(in, k)
		if !ok {
			return v, NewExtractionError(ExtractUsage, errors.Newf("no scope provides %q", k.name))
		}

		return v, nil
	})
}

// Local extracts a value an earlier extractor or middleware stored with [SetLocal].
func Local[T any](k *Key[T]) Extractor[T] {
	return NewExtractor("local "+strconv.Quote(k.name), func(_ context.Context, in *Input) (v T, err error) {
		v, ok := GetLocal(in, k)
		if !ok {
			return v, NewExtractionError(ExtractMissing, errors.Newf("no local value %q", k.name))
		}

		return v, nil
	})
}

// Optional turns a missing value into nil. Every other failure still stops the pipeline.
func Optional[T any](e Extractor[T]) Extractor[*T] {
	return Extractor[*T]{name: "optional " + e.name, body: e.body, fn: func(ctx context.Context, in *Input) (*T, error) {
		v, err := e.Extract(ctx, in)
		if err != nil {
			var xerr *ExtractionError
			if errors.As(err, &xerr) && xerr.Kind == ExtractMissing {
				return nil, nil
			}

			return nil, err
		}

		return &v, nil
	}}
}

// Or runs 'b' when 'a' fails because its input is missing or malformed.
func Or[T any](a, b Extractor[T]) Extractor[T] {
	return Extractor[T]{name: a.name + " or " + b.name, body: a.body || b.body, fn: func(ctx context.Context, in *Input) (T, error) {
		v, err := a.Extract(ctx, in)
		if err == nil {
			return v, nil
		}

		var xerr *ExtractionError
		if !errors.As(err, &xerr) || (xerr.Kind != ExtractMissing && xerr.Kind != ExtractMalformed) {
			return v, err
		}

		return b.Extract(ctx, in)
	}}
}

// Map converts the value of 'e'. The result keeps the name and body flag of 'e'.
func Map[T, U any](e Extractor[T], fn func(T) U) Extractor[U] {
	return Extractor[U]{name: e.name, body: e.body, fn: func(ctx context.Context, in *Input) (u U, err error) {
		v, err := e.Extract(ctx, in)
		if err != nil {
			return u, err
		}

		return fn(v), nil
	}}
}

// MapErr replaces the failure of 'e'. An error carrying a [Code] decides the status of the response.
func MapErr[T any](e Extractor[T], fn func(err error) error) Extractor[T] {
	return Extractor[T]{name: e.name, body: e.body, fn: func(ctx context.Context, in *Input) (T, error) {
		v, err := e.Extract(ctx, in)
		if err != nil {
			return v, fn(err)
		}

		return v, nil
	}}
}

// AndThen validates or converts the value of 'e'. An error from 'fn' fails the extraction as malformed
// input unless it is an [*ExtractionError] itself.
func AndThen[T, U any](e Extractor[T], fn func(ctx context.Context, v T) (U, error)) Extractor[U] {
	return Extractor[U]{name: e.name, body: e.body, fn: func(ctx context.Context, in *Input) (u U, err error) {
		v, err := e.Extract(ctx, in)
		if err != nil {
			return u, err
		}

		return fn(ctx, v)
	}}
}

// Attempt is the value of a [Fallible] extractor.
type Attempt[T any] struct {
	Value T
	Err   error
}

// Fallible hands the failure of 'e' to the handler instead of stopping the pipeline. A request that is
// already canceled still fails.
func Fallible[T any](e Extractor[T]) Extractor[Attempt[T]] {
	return Extractor[Attempt[T]]{name: e.name, body: e.body, fn: func(ctx context.Context, in *Input) (Attempt[T], error) {
		v, err := e.Extract(ctx, in)
		return Attempt[T]{Value: v, Err: err}, nil
	}}
}

// JSON decodes an "application/json" request body.
func JSON[T any]() Extractor[T] {
	return NewBodyExtractor("json body", func(_ context.Context, in *Input) (v T, err error) {
		if err := requireMediaType(in.Request, "application/json", true); err != nil {
			return v, err
		}

		body, err := readBody(in)
		if err != nil {
			return v, err
		}

		if err := json.Unmarshal(body, &v); err != nil {
			return v, errors.Wrap(err, "decode json")
		}

		return v, nil
	})
}

// Form decodes an "application/x-www-form-urlencoded" request body.
func Form() Extractor[url.Values] {
	return NewBodyExtractor("form body", func(_ context.Context, in *Input) (url.Values, error) {
		if err := requireMediaType(in.Request, "application/x-www-form-urlencoded", true); err != nil {
			return nil, err
		}

		body, err := readBody(in)
		if err != nil {
			return nil, err
		}

		return url.ParseQuery(string(body))
	})
}

// Text reads the body as utf-8 text. A content type is optional but must be "text/plain" when given.
func Text() Extractor[string] {
	return NewBodyExtractor("text body", func(_ context.Context, in *Input) (string, error) {
		if err := requireMediaType(in.Request, "text/plain", false); err != nil {
			return "", err
		}

		body, err := readBody(in)
		if err != nil {
			return "", err
		}

		if !utf8.Valid(body) {
			return "", errors.New("body is not valid utf-8")
		}

		return string(body), nil
	})
}

// Bytes reads the raw body.
func Bytes() Extractor[[]byte] {
	return NewBodyExtractor("body", func(_ context.Context, in *Input) ([]byte, error) {
		return readBody(in)
	})
}

func readBody(in *Input) ([]byte, error) {
	rc, err := in.TakeBody()
	if err != nil {
		return nil, err
	}

	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		if mbe := (*http.MaxBytesError)(nil); errors.As(err, &mbe) {
			return nil, NewExtractionError(ExtractTooLarge, err)
		}

		return nil, errors.Wrap(err, "read body")
	}

	return body, nil
}

func requireMediaType(r *http.Request, want string, required bool) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		if required {
			return NewExtractionError(ExtractUnsupportedMediaType, errors.Newf("missing content type, expected %s", want))
		}

		return nil
	}

	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return NewExtractionError(ExtractUnsupportedMediaType, err)
	}

	if mt != want {
		return NewExtractionError(ExtractUnsupportedMediaType, errors.Newf("content type %s, expected %s", mt, want))
	}

	if cs, ok := params["charset"]; ok && !strings.EqualFold(cs, "utf-8") {
		return NewExtractionError(ExtractUnsupportedMediaType, errors.Newf("unsupported charset %s", cs))
	}

	return nil
}
