package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("download: %w", NewNotFound("blob_not_found", "stored content is missing"))

	require.True(t, errors.Is(err, NotFound))
	require.False(t, errors.Is(err, Permission))
	require.True(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "blob_not_found"}))
	require.False(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "document_not_found"}))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		NewValidation("missing_file", "x"):         http.StatusBadRequest,
		NewPermission("forbidden", "x"):            http.StatusForbidden,
		NewNotFound("document_not_found", "x"):     http.StatusNotFound,
		NewConflict("duplicate_name", "x", nil):    http.StatusConflict,
		NewInvalidState("document_active", "x"):    http.StatusConflict,
		NewStorage("blob_timeout", "x", nil):       http.StatusBadGateway,
		errors.New("raw driver failure"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestBodyHidesUnclassifiedCause(t *testing.T) {
	b := Body(errors.New("mongo: connection reset"))
	require.Equal(t, "internal", b["error"])
	require.NotContains(t, b["message"], "mongo")

	cause := errors.New("minio: 503")
	e := NewStorage("blob_unavailable", "blob store unavailable", cause)
	require.ErrorIs(t, e, cause)
	require.Equal(t, "blob_unavailable", Body(e)["error"])
}
