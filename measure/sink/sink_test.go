package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func TestEncodeKeepsUnavailableExplicit(t *testing.T) {
	data, err := Encode(testOutcome("test_a", common.OutcomeMeasured))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gpu_energy_joules":{"value":null,"unit":"joules","available":false,"partial":false}`)

	back, err := Decode(data)
	require.NoError(t, err)
	_, ok := back.Metrics.Value("gpu_energy_joules")
	assert.False(t, ok)
	v, ok := back.Metrics.Value(common.TotalEnergyName)
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)
}

func TestMemorySinkReplacesByKey(t *testing.T) {
	m := NewMemorySink()
	ctx := context.Background()
	require.NoError(t, m.Persist(ctx, testOutcome("test_a", common.OutcomeFailed)))
	require.NoError(t, m.Persist(ctx, testOutcome("test_b", common.OutcomeMeasured)))
	require.NoError(t, m.Persist(ctx, testOutcome("test_a", common.OutcomeMeasured)))

	outs := m.Outcomes()
	require.Len(t, outs, 2)
	assert.Equal(t, "test_a", outs[0].Key.TestName)
	assert.Equal(t, common.OutcomeMeasured, outs[0].Status)
}
