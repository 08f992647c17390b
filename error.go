package bdispatch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. It can be used to create errors to pass around across
// middleware layers to handle errors structurally.
type Code int

const (
	CodeUnknown                      Code = 0
	CodeBadRequest                   Code = http.StatusBadRequest                   // RFC 9110, 15.5.1
	CodeUnauthorized                 Code = http.StatusUnauthorized                 // RFC 9110, 15.5.2
	CodePaymentRequired              Code = http.StatusPaymentRequired              // RFC 9110, 15.5.3
	CodeForbidden                    Code = http.StatusForbidden                    // RFC 9110, 15.5.4
	CodeNotFound                     Code = http.StatusNotFound                     // RFC 9110, 15.5.5
	CodeMethodNotAllowed             Code = http.StatusMethodNotAllowed             // RFC 9110, 15.5.6
	CodeNotAcceptable                Code = http.StatusNotAcceptable                // RFC 9110, 15.5.7
	CodeProxyAuthRequired            Code = http.StatusProxyAuthRequired            // RFC 9110, 15.5.8
	CodeRequestTimeout               Code = http.StatusRequestTimeout               // RFC 9110, 15.5.9
	CodeConflict                     Code = http.StatusConflict                     // RFC 9110, 15.5.10
	CodeGone                         Code = http.StatusGone                         // RFC 9110, 15.5.11
	CodeLengthRequired               Code = http.StatusLengthRequired               // RFC 9110, 15.5.12
	CodePreconditionFailed           Code = http.StatusPreconditionFailed           // RFC 9110, 15.5.13
	CodeRequestEntityTooLarge        Code = http.StatusRequestEntityTooLarge        // RFC 9110, 15.5.14
	CodeRequestURITooLong            Code = http.StatusRequestURITooLong            // RFC 9110, 15.5.15
	CodeUnsupportedMediaType         Code = http.StatusUnsupportedMediaType         // RFC 9110, 15.5.16
	CodeRequestedRangeNotSatisfiable Code = http.StatusRequestedRangeNotSatisfiable // RFC 9110, 15.5.17
	CodeExpectationFailed            Code = http.StatusExpectationFailed            // RFC 9110, 15.5.18
	CodeTeapot                       Code = http.StatusTeapot                       // RFC 9110, 15.5.19 (Unused)
	CodeMisdirectedRequest           Code = http.StatusMisdirectedRequest           // RFC 9110, 15.5.20
	CodeUnprocessableEntity          Code = http.StatusUnprocessableEntity          // RFC 9110, 15.5.21
	CodeLocked                       Code = http.StatusLocked                       // RFC 4918, 11.3
	CodeFailedDependency             Code = http.StatusFailedDependency             // RFC 4918, 11.4
	CodeTooEarly                     Code = http.StatusTooEarly                     // RFC 8470, 5.2.
	CodeUpgradeRequired              Code = http.StatusUpgradeRequired              // RFC 9110, 15.5.22
	CodePreconditionRequired         Code = http.StatusPreconditionRequired         // RFC 6585, 3
	CodeTooManyRequests              Code = http.StatusTooManyRequests              // RFC 6585, 4
	CodeRequestHeaderFieldsTooLarge  Code = http.StatusRequestHeaderFieldsTooLarge  // RFC 6585, 5
	CodeUnavailableForLegalReasons   Code = http.StatusUnavailableForLegalReasons   // RFC 7725, 3

	CodeInternalServerError           Code = http.StatusInternalServerError           // RFC 9110, 15.6.1
	CodeNotImplemented                Code = http.StatusNotImplemented                // RFC 9110, 15.6.2
	CodeBadGateway                    Code = http.StatusBadGateway                    // RFC 9110, 15.6.3
	CodeServiceUnavailable            Code = http.StatusServiceUnavailable            // RFC 9110, 15.6.4
	CodeGatewayTimeout                Code = http.StatusGatewayTimeout                // RFC 9110, 15.6.5
	CodeHTTPVersionNotSupported       Code = http.StatusHTTPVersionNotSupported       // RFC 9110, 15.6.6
	CodeVariantAlsoNegotiates         Code = http.StatusVariantAlsoNegotiates         // RFC 2295, 8.1
	CodeInsufficientStorage           Code = http.StatusInsufficientStorage           // RFC 4918, 11.5
	CodeLoopDetected                  Code = http.StatusLoopDetected                  // RFC 5842, 7.2
	CodeNotExtended                   Code = http.StatusNotExtended                   // RFC 2774, 7
	CodeNetworkAuthenticationRequired Code = http.StatusNetworkAuthenticationRequired // RFC 6585, 6
)

// Error describes an http error.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	if e.err == nil {
		return status
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// coder is implemented by every error in this package that maps to a status code.
type coder interface {
	error
	Code() Code
}

// CodeOf returns the status code of the first error in the chain that carries one, and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	var ce coder
	if errors.As(err, &ce) {
		return ce.Code()
	}

	return CodeUnknown
}

var (
	// ErrRouteNotFound is reported when no route pattern matches the request path.
	ErrRouteNotFound = NewError(CodeNotFound, errors.New("no route matches the request path"))

	// ErrUpgradeRejected is reported when a handler requested a protocol upgrade but the request did not
	// negotiate that protocol.
	ErrUpgradeRejected = NewError(CodeBadRequest, errors.New("protocol upgrade rejected"))

	// ErrMethodNotAllowed is the sentinel wrapped by every [*MethodNotAllowedError].
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrExtractionFailure is the sentinel wrapped by every [*ExtractionError].
	ErrExtractionFailure = errors.New("extraction failed")

	// ErrHandlerFailure is the sentinel wrapped by every [*HandlerError].
	ErrHandlerFailure = errors.New("handler failed")

	// ErrBuildConflict is the sentinel wrapped by every [*ConflictError].
	ErrBuildConflict = errors.New("conflicting routes")

	// ErrInvalidPattern is returned when a route pattern cannot be parsed.
	ErrInvalidPattern = errors.New("invalid route pattern")

	// ErrBodyConsumed is returned when the request body is taken more than once.
	ErrBodyConsumed = errors.New("request body already consumed")
)

// MethodNotAllowedError is reported when the path matched at least one route but none of them accepts
// the request method.
type MethodNotAllowedError struct {
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed, allowed: %s", e.Method, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) Code() Code    { return CodeMethodNotAllowed }
func (e *MethodNotAllowedError) Unwrap() error { return ErrMethodNotAllowed }

// ExtractionKind classifies why an extractor failed.
type ExtractionKind int

const (
	// ExtractMalformed means the input was present but could not be parsed.
	ExtractMalformed ExtractionKind = iota
	// ExtractMissing means required input was absent.
	ExtractMissing
	// ExtractUnsupportedMediaType means the body has a content type the extractor does not accept.
	ExtractUnsupportedMediaType
	// ExtractTooLarge means the body exceeded the configured limit.
	ExtractTooLarge
	// ExtractCanceled means the request context was done before extraction could run.
	ExtractCanceled
	// ExtractUsage means the route misused the request, such as taking the body twice.
	ExtractUsage
)

func (k ExtractionKind) String() string {
	switch k {
	case ExtractMalformed:
		return "malformed"
	case ExtractMissing:
		return "missing"
	case ExtractUnsupportedMediaType:
		return "unsupported media type"
	case ExtractTooLarge:
		return "too large"
	case ExtractCanceled:
		return "canceled"
	case ExtractUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// ExtractionError is reported when an extractor fails. The handler is never run in that case.
type ExtractionError struct {
	Kind      ExtractionKind
	Extractor string
	Cause     error
}

// NewExtractionError creates an extraction error. The pipeline fills in the extractor name.
func NewExtractionError(kind ExtractionKind, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Cause: cause}
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s: %s", e.Extractor, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *ExtractionError) Unwrap() []error { return causes(ErrExtractionFailure, e.Cause) }

// Code returns the code carried by the cause, or one derived from the kind.
func (e *ExtractionError) Code() Code {
	if c := CodeOf(e.Cause); c != CodeUnknown {
		return c
	}

	switch e.Kind {
	case ExtractUnsupportedMediaType:
		return CodeUnsupportedMediaType
	case ExtractTooLarge:
		return CodeRequestEntityTooLarge
	case ExtractCanceled:
		return CodeRequestTimeout
	case ExtractUsage:
		return CodeInternalServerError
	default:
		return CodeBadRequest
	}
}

// HandlerError is reported when a handler, or middleware around it, returned an error or panicked.
type HandlerError struct {
	Route    string
	Panicked bool
	Cause    error
}

func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler %q panicked: %s", e.Route, e.Cause)
	}

	return fmt.Sprintf("handler %q: %s", e.Route, e.Cause)
}

func (e *HandlerError) Unwrap() []error { return causes(ErrHandlerFailure, e.Cause) }

// Code returns the code carried by the cause, or [CodeInternalServerError].
func (e *HandlerError) Code() Code {
	if e.Panicked {
		return CodeInternalServerError
	}

	if c := CodeOf(e.Cause); c != CodeUnknown {
		return c
	}

	return CodeInternalServerError
}

// ConflictPair names two routes that could match the same request.
type ConflictPair struct {
	First, Second RouteInfo
}

// ConflictError is returned by [Builder.Build] and lists every pair of routes the matcher cannot order.
// The pairs are sorted by registration order.
type ConflictError struct {
	Pairs []ConflictPair
}

func (e *ConflictError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d conflicting route pair(s):", len(e.Pairs))
	for _, p := range e.Pairs {
		fmt.Fprintf(&sb, " [%s and %s]", p.First, p.Second)
	}

	return sb.String()
}

func (e *ConflictError) Unwrap() error { return ErrBuildConflict }

func causes(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}

	return []error{sentinel, cause}
}
