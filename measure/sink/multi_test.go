package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func TestMultiSinkAttemptsEverySink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	broken := &flakySink{failN: 10}
	m := NewMultiSink(a, broken, b)

	err := m.Persist(context.Background(), testOutcome("t", common.OutcomeMeasured))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Len(t, a.Outcomes(), 1)
	assert.Len(t, b.Outcomes(), 1)

	require.NoError(t, m.Close())
	_, _, closed := broken.snapshot()
	assert.True(t, closed)
}
