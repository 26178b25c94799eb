package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func TestAsyncSinkRetriesAndDrains(t *testing.T) {
	next := &flakySink{failN: 2}
	s := NewAsyncSink(next, AsyncConfig{QueueSize: 1, RetryCount: 3, BackoffInterval: time.Millisecond})

	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Persist(ctx, testOutcome(name, common.OutcomeMeasured)))
	}
	require.NoError(t, s.Close())

	calls, stored, closed := next.snapshot()
	assert.Equal(t, 5, calls)
	assert.Equal(t, 3, stored)
	assert.True(t, closed)
	assert.Empty(t, s.Failed())

	assert.ErrorIs(t, s.Persist(ctx, testOutcome("d", common.OutcomeMeasured)), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestAsyncSinkGivesUp(t *testing.T) {
	next := &flakySink{failN: 100}
	s := NewAsyncSink(next, AsyncConfig{RetryCount: 1, BackoffInterval: time.Millisecond})
	require.NoError(t, s.Persist(context.Background(), testOutcome("a", common.OutcomeMeasured)))
	require.NoError(t, s.Persist(context.Background(), testOutcome("b", common.OutcomeFailed)))

	err := s.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndelivered)
	assert.Contains(t, err.Error(), "django__django-11099/gpt-4o/a")
	assert.Contains(t, err.Error(), "django__django-11099/gpt-4o/b")

	calls, _, closed := next.snapshot()
	assert.Equal(t, 4, calls)
	assert.True(t, closed, "wrapped sink is closed even when delivery failed")
	require.Len(t, s.Failed(), 2)
	assert.Equal(t, "a", s.Failed()[0].Key.TestName)
	assert.NoError(t, s.Close())
}
