package runs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalStates(t *testing.T) {
	require.True(t, StateCompleted.Terminal())
	require.True(t, StateFailed.Terminal())
	require.False(t, StateQueued.Terminal())
	require.False(t, StateInProgress.Terminal())
	require.False(t, StateRequiresAction.Terminal())
}

func TestServiceErrorWrapping(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewServiceError("get_run", cause)
	require.EqualError(t, err, "run service get_run: context deadline exceeded")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "get_run", se.Op)
}
