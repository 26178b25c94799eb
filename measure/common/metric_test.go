package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricJSONUnavailableIsNull(t *testing.T) {
	set := NewMetricSet()
	set.Set("cpu_energy_joules", 12.5, UnitJoules)
	set.SetUnavailable("gpu_energy_joules", UnitJoules)

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Nil(t, raw["gpu_energy_joules"]["value"])
	assert.Equal(t, false, raw["gpu_energy_joules"]["available"])
	assert.Equal(t, 12.5, raw["cpu_energy_joules"]["value"])

	var back MetricSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, set, back)
}

func TestMetricSetValue(t *testing.T) {
	set := NewMetricSet()
	set.SetUnavailable("a", UnitWatts)
	set.Set("b", 0, UnitWatts)

	_, ok := set.Value("a")
	assert.False(t, ok)
	_, ok = set.Value("missing")
	assert.False(t, ok)
	v, ok := set.Value("b")
	assert.True(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, []string{"a"}, set.Unavailable())
}

func TestMetricSetMergeReportsCollisions(t *testing.T) {
	a := NewMetricSet()
	a.Set("x", 1, "")
	a.Set("y", 2, "")
	b := NewMetricSet()
	b.Set("y", 3, "")
	b.Set("z", 4, "")

	collisions := a.Merge(b)
	assert.Equal(t, []string{"y"}, collisions)
	assert.Equal(t, []string{"x", "y", "z"}, a.Names())
	v, _ := a.Value("y")
	assert.Equal(t, 3.0, v)
}

func TestEnergySource(t *testing.T) {
	src, ok := EnergySource(EnergyName(SourceGPU))
	assert.True(t, ok)
	assert.Equal(t, "gpu", src)

	_, ok = EnergySource(TotalEnergyName)
	assert.False(t, ok)
	_, ok = EnergySource(MeanPowerName(SourceCPU))
	assert.False(t, ok)
}

func TestSessionKeyString(t *testing.T) {
	k := SessionKey{InstanceID: "django-1234", VariantID: "gpt4", TestName: "tests/test_a.py"}
	assert.Equal(t, "django-1234/gpt4/tests/test_a.py", k.String())
}
