package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Category
	}{
		{"nil", nil, ""},
		{"denied", apperrors.ErrAccessDenied, apperrors.CategoryDenied},
		{"wrapped denied", fmt.Errorf("callback: %w", apperrors.ErrAccessDenied), apperrors.CategoryDenied},
		{"csrf", apperrors.ErrStateMismatch, apperrors.CategoryCSRF},
		{"no pending", apperrors.ErrNoPendingAuthorization, apperrors.CategoryCSRF},
		{"malformed request", apperrors.ErrMalformedRequest, apperrors.CategoryMalformedRequest},
		{"malformed callback", apperrors.ErrMalformedCallback, apperrors.CategoryMalformedRequest},
		{"network", apperrors.Wrapf(apperrors.ErrNetwork, "token exchange"), apperrors.CategoryNetwork},
		{"expired", apperrors.ErrSessionExpired, apperrors.CategoryExpiredSession},
		{"other", fmt.Errorf("boom"), apperrors.CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperrors.Classify(tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	require.Nil(t, apperrors.Wrapf(nil, "ignored"))

	err := apperrors.Wrapf(apperrors.ErrNetwork, "[%s] exchange", "find")
	require.EqualError(t, err, "[find] exchange: network error")
	require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
}
