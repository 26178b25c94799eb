package sensors

import (
	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// Group starts sensors in their fixed order and stops them in reverse.
// Unavailable sensors are never started; their windows are synthesized as
// degraded so their metrics are reported unavailable.
type Group struct {
	sensors []Sensor
}

func NewGroup(sensors ...Sensor) *Group {
	return &Group{sensors: sensors}
}

func (g *Group) Sensors() []Sensor {
	return g.sensors
}

func (g *Group) AnyAvailable() bool {
	for _, s := range g.sensors {
		if s.Available() {
			return true
		}
	}
	return false
}

func (g *Group) Start() {
	for _, s := range g.sensors {
		if s.Available() {
			s.Start()
		}
	}
}

// Stop returns the windows in the group's declared order.
func (g *Group) Stop() []common.Window {
	windows := make([]common.Window, len(g.sensors))
	for i := len(g.sensors) - 1; i >= 0; i-- {
		s := g.sensors[i]
		if !s.Available() {
			windows[i] = unavailableWindow(s)
			continue
		}
		windows[i] = s.Stop()
	}
	return windows
}

func unavailableWindow(s Sensor) common.Window {
	reason := reasonUnavailable
	if r, ok := s.(interface{ UnavailableReason() string }); ok && r.UnavailableReason() != "" {
		reason = r.UnavailableReason()
	}
	return common.Window{
		Sensor:   s.Name(),
		Specs:    s.Series(),
		Degraded: true,
		Reason:   reason,
	}
}
