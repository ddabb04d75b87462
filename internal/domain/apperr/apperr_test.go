package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
)

func TestIs_MatchesOnCode(t *testing.T) {
	err := apperr.Validation("invalid phone number format")

	require.ErrorIs(t, err, apperr.ErrValidation)
	require.NotErrorIs(t, err, apperr.ErrConflict)
}

func TestIs_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start payment: %w", apperr.Conflict("payment check already in progress"))

	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Equal(t, "payment check already in progress", apperr.Message(err))
}

func TestTransient_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Transient("failed to confirm payment", cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, apperr.ErrTransientNetwork)
	require.Contains(t, err.Error(), "connection refused")
}

func TestMessage_FallsBackToErrorText(t *testing.T) {
	require.Equal(t, "boom", apperr.Message(errors.New("boom")))
}
