package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/sensors/sensorstest"
)

func TestGroupOrdering(t *testing.T) {
	a := sensorstest.New("a", common.SeriesSpec{Kind: common.KindCPUUsage, Role: common.RoleUtilization})
	b := sensorstest.NewUnavailable("b", common.SeriesSpec{Kind: common.KindGPUUsage, Role: common.RoleUtilization})
	c := sensorstest.New("c", common.SeriesSpec{Kind: common.KindSystemPower, Role: common.RolePower, Source: common.SourceSystem})

	g := NewGroup(a, b, c)
	require.True(t, g.AnyAvailable())
	g.Start()
	time.Sleep(time.Millisecond)
	windows := g.Stop()

	require.Len(t, windows, 3)
	assert.Equal(t, "a", windows[0].Sensor)
	assert.True(t, windows[1].Degraded)
	assert.Equal(t, "c", windows[2].Sensor)

	assert.Empty(t, b.Starts())
	assert.False(t, a.Starts()[0].After(c.Starts()[0]), "start in declared order")
	assert.False(t, c.Stops()[0].After(a.Stops()[0]), "stop in reverse order")
}

func TestGroupNothingAvailable(t *testing.T) {
	g := NewGroup(sensorstest.NewUnavailable("x"))
	assert.False(t, g.AnyAvailable())
}
