package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"camlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	appErr := NewNotFoundError("profile")
	assert.Equal(t, "NOT_FOUND: profile not found", appErr.Error())

	cause := errors.New("dial tcp: refused")
	wrapped := WrapError(cause, ErrCodeInternal, "gateway call failed", http.StatusInternalServerError)
	assert.Contains(t, wrapped.Error(), "caused by: dial tcp: refused")
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithContext(t *testing.T) {
	appErr := NewInvalidInputError("bad protocol").
		WithContext("protocol", "rtsp")
	assert.Equal(t, "rtsp", appErr.Context["protocol"])
}

func TestFromDomain(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.ErrProfileNotFound, http.StatusNotFound, ErrCodeNotFound},
		{domain.ErrMonitorNotFound, http.StatusNotFound, ErrCodeNotFound},
		{domain.ErrTokenExpired, http.StatusUnauthorized, ErrCodeUnauthorized},
		{domain.ErrGatewayUnreachable, http.StatusBadGateway, ErrCodeGatewayUnreachable},
		{errors.New("anything else"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		appErr := FromDomain(tc.err)
		require.NotNil(t, appErr)
		assert.Equal(t, tc.status, appErr.HTTPStatus)
		assert.Equal(t, tc.code, appErr.Code)
		assert.ErrorIs(t, appErr, tc.err)
	}

	assert.Nil(t, FromDomain(nil))
}

func TestFromDomainSeesWrappedSentinels(t *testing.T) {
	err := fmt.Errorf("loading profile: %w", domain.ErrProfileNotFound)
	appErr := FromDomain(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestGetAppError(t *testing.T) {
	appErr := NewInternalError("boom")
	wrapped := fmt.Errorf("handler: %w", appErr)

	assert.Equal(t, appErr, GetAppError(wrapped))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}
