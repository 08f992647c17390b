package bdispatch_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	err1 := bdispatch.NewError(bdispatch.CodeBadRequest, errors.New("foo"))
	require.Equal(t, bdispatch.Code(400), err1.Code())
	require.Equal(t, bdispatch.CodeBadRequest, bdispatch.CodeOf(err1))
	require.Equal(t, "Bad Request: foo", err1.Error())

	require.Equal(t, bdispatch.CodeUnknown, bdispatch.CodeOf(errors.New("bar")))
	require.Equal(t, "Unknown: rab", bdispatch.NewError(900, errors.New("rab")).Error())
	require.Equal(t, bdispatch.CodeBadRequest, bdispatch.CodeOf(errors.Wrap(err1, "wrapped")))
}

func TestErrorTaxonomy(t *testing.T) {
	for _, tt := range []struct {
		name     string
		err      error
		sentinel error
		code     bdispatch.Code
	}{
		{"route not found", bdispatch.ErrRouteNotFound, bdispatch.ErrRouteNotFound, bdispatch.CodeNotFound},
		{
			"method not allowed",
			&bdispatch.MethodNotAllowedError{Method: "DELETE", Allowed: []string{"GET"}},
			bdispatch.ErrMethodNotAllowed, bdispatch.CodeMethodNotAllowed,
		},
		{
			"malformed input",
			&bdispatch.ExtractionError{Kind: bdispatch.ExtractMalformed, Extractor: "param", Cause: errors.New("x")},
			bdispatch.ErrExtractionFailure, bdispatch.CodeBadRequest,
		},
		{
			"unsupported media type",
			bdispatch.NewExtractionError(bdispatch.ExtractUnsupportedMediaType, nil),
			bdispatch.ErrExtractionFailure, bdispatch.CodeUnsupportedMediaType,
		},
		{
			"body too large",
			bdispatch.NewExtractionError(bdispatch.ExtractTooLarge, nil),
			bdispatch.ErrExtractionFailure, bdispatch.CodeRequestEntityTooLarge,
		},
		{
			"body consumed twice",
			bdispatch.NewExtractionError(bdispatch.ExtractUsage, bdispatch.ErrBodyConsumed),
			bdispatch.ErrBodyConsumed, bdispatch.CodeInternalServerError,
		},
		{
			"handler without code",
			&bdispatch.HandlerError{Route: "/", Cause: errors.New("boom")},
			bdispatch.ErrHandlerFailure, bdispatch.CodeInternalServerError,
		},
		{
			"handler with code",
			&bdispatch.HandlerError{Route: "/", Cause: bdispatch.NewError(bdispatch.CodeForbidden, errors.New("no"))},
			bdispatch.ErrHandlerFailure, bdispatch.CodeForbidden,
		},
		{"upgrade rejected", errors.Wrap(bdispatch.ErrUpgradeRejected, "nope"), bdispatch.ErrUpgradeRejected, bdispatch.CodeBadRequest},
		{"conflict", &bdispatch.ConflictError{}, bdispatch.ErrBuildConflict, bdispatch.CodeUnknown},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.err, tt.sentinel)
			require.Equal(t, tt.code, bdispatch.CodeOf(tt.err))
		})
	}
}

func TestMethodNotAllowedMessage(t *testing.T) {
	err := &bdispatch.MethodNotAllowedError{Method: http.MethodDelete, Allowed: []string{"GET", "POST"}}
	require.Equal(t, "method DELETE not allowed, allowed: GET, POST", err.Error())
}
