package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
)

func TestFromError_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: subject is required", crm.ErrValidation), 400, "VALIDATION_FAILED"},
		{crm.ErrInvalidCredentials, 401, "INVALID_CREDENTIALS"},
		{crm.ErrInvalidState, 400, "INVALID_STATE"},
		{repository.ErrForbidden, 403, "FORBIDDEN"},
		{fmt.Errorf("mongo: get email: %w", repository.ErrNotFound), 404, "NOT_FOUND"},
		{crm.ErrUsernameTaken, 409, "USERNAME_TAKEN"},
		{crm.ErrListNotEmpty, 409, "LIST_NOT_EMPTY"},
		{crm.ErrEmailLocked, 409, "CONFLICT"},
		{fmt.Errorf("%w: abc", dispatch.ErrAlreadyClaimed), 409, "EMAIL_NOT_SENDABLE"},
		{dispatch.ErrAccountNotLinked, 422, "ACCOUNT_NOT_LINKED"},
		{dispatch.ErrNoRecipients, 422, "NO_RECIPIENTS"},
		{google.ErrMissingCredential, 422, "GMAIL_LINK_FAILED"},
		{fmt.Errorf("dispatch: authorize sender: %w: invalid_grant", google.ErrRefreshFailed), 422, "GMAIL_RELINK_REQUIRED"},
		{fmt.Errorf("%w: %w", dispatch.ErrInterrupted, context.Canceled), 503, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("mongo: find emails: %w", context.DeadlineExceeded), 503, "SERVICE_UNAVAILABLE"},
		{stderrors.New("mongo: connection reset"), 500, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		require.Equal(t, tc.status, got.HTTPStatus, tc.err.Error())
		require.Equal(t, tc.code, got.Code, tc.err.Error())
		require.ErrorIs(t, got, tc.err)
	}
}

func TestFromError_KeepsAppError(t *testing.T) {
	e := ErrBadRequest.WithDetail("x")
	require.Same(t, e, FromError(e))
	require.Same(t, e, FromError(fmt.Errorf("wrapped: %w", e)))
}

func TestWithDetail_DoesNotMutateBase(t *testing.T) {
	_ = ErrNotFound.WithDetail("email")
	require.Empty(t, ErrNotFound.Detail)
}

func TestWriteError_ValidationDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("row 2: %w", fmt.Errorf("%w: invalid email address %q", crm.ErrValidation, "x")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body["code"])
	require.Equal(t, `row 2: invalid email address "x"`, body["detail"])
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "password authentication")
}
