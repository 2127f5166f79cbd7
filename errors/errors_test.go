package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndStatus(t *testing.T) {
	cases := []struct {
		reason string
		code   int32
		status int32
	}{
		{ReasonMalformedSyntax, CodeParseError, http.StatusBadRequest},
		{ReasonUnknownKind, CodeInvalidRequest, http.StatusBadRequest},
		{ReasonMissingField, CodeInvalidParams, http.StatusBadRequest},
		{ReasonUnknownTool, CodeMethodNotFound, http.StatusNotFound},
		{ReasonStartTimeout, CodeInternalError, http.StatusServiceUnavailable},
		{ReasonBadResponse, CodeInternalError, http.StatusBadGateway},
		{ReasonNotFound, CodeInternalError, http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.reason, func(t *testing.T) {
			e := FromReason(c.reason, "boom")
			assert.Equal(t, c.code, e.Code())
			assert.Equal(t, c.status, e.HttpStatus())
			assert.Equal(t, "boom", e.Message())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(KindUpstream, ReasonUnreachable, "upstream unreachable", cause)

	assert.True(t, Is(err, cause))
	assert.True(t, err.Retriable())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFromErrorUnwrapsChains(t *testing.T) {
	inner := New(KindResource, ReasonNotFound, "container missing")
	outer := fmt.Errorf("startup: %w", inner)

	got := FromError(outer)
	require.NotNil(t, got)
	assert.Equal(t, ReasonNotFound, got.Reason())
	assert.Equal(t, KindResource, got.Kind())
	assert.False(t, got.Retriable())

	plain := FromError(stderrors.New("x"))
	assert.Equal(t, UnknownReason, plain.Reason())
	assert.Equal(t, KindInternal, plain.Kind())
	assert.Nil(t, FromError(nil))
}

func TestReasonHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindValidation, ReasonOutOfRange, "temperature"))
	assert.True(t, IsReason(err, ReasonOutOfRange))
	assert.False(t, IsReason(err, ReasonMissingField))
	assert.Equal(t, ReasonOutOfRange, ReasonOf(err))
	assert.Equal(t, UnknownReason, ReasonOf(stderrors.New("plain")))
}

func TestMarshalHidesCause(t *testing.T) {
	err := Wrap(KindUpstream, ReasonBadResponse, "upstream returned 400 Bad Request", stderrors.New("secret"))
	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"reason":"BadResponse"`)
}
