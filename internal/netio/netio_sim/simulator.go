// Package netio_sim emulates a NETIO PowerBOX JSON endpoint for bench runs
// without a physical meter.
package netio_sim

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultIdleWatts = 60
	defaultBusyWatts = 180
)

type Simulator struct {
	mu sync.Mutex

	outputID  int
	name      string
	idleWatts float64
	busyWatts float64
	busy      bool

	energyWh   float64
	lastUpdate time.Time
	failNext   int
	requests   int

	now func() time.Time
}

type Option func(*Simulator)

func WithOutput(id int, name string) Option {
	return func(s *Simulator) {
		s.outputID = id
		s.name = name
	}
}

func WithLoad(idleWatts, busyWatts float64) Option {
	return func(s *Simulator) {
		s.idleWatts = idleWatts
		s.busyWatts = busyWatts
	}
}

func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		outputID:  1,
		name:      "server",
		idleWatts: defaultIdleWatts,
		busyWatts: defaultBusyWatts,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdate = s.now()
	return s
}

// SetBusy switches the simulated load between the idle and busy draw.
func (s *Simulator) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate()
	s.busy = busy
}

// FailNext makes the next n requests answer 503.
func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Simulator) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Simulator) EnergyWh() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate()
	return s.energyWh
}

func (s *Simulator) load() float64 {
	if s.busy {
		return s.busyWatts
	}
	return s.idleWatts
}

// accumulate integrates the current load since the last update. Callers hold mu.
func (s *Simulator) accumulate() {
	now := s.now()
	s.energyWh += s.load() * now.Sub(s.lastUpdate).Hours()
	s.lastUpdate = now
}

func (s *Simulator) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/netio.json", s.status)
	return r
}

func (s *Simulator) status(c *gin.Context) {
	s.mu.Lock()
	s.requests++
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulated failure"})
		return
	}
	s.accumulate()
	out := gin.H{
		"ID":     s.outputID,
		"Name":   s.name,
		"State":  1,
		"Load":   s.load(),
		"Energy": s.energyWh,
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"Agent":   gin.H{"Model": "NETIO PowerBOX 4KF (simulated)", "NumOutputs": 1},
		"Outputs": []gin.H{out},
	})
}
