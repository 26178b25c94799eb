package sensors

import (
	"sync"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// SampleBuffer is the append-only store of one sensor for one window.
// Timestamps never go backwards: an out-of-order sample is clamped to the
// previous timestamp. Once closed, appends are rejected.
type SampleBuffer struct {
	mu      sync.Mutex
	samples []common.Sample
	closed  bool
}

func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{samples: make([]common.Sample, 0, 64)}
}

func (b *SampleBuffer) Append(s common.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if n := len(b.samples); n > 0 && s.Timestamp.Before(b.samples[n-1].Timestamp) {
		s.Timestamp = b.samples[n-1].Timestamp
	}
	b.samples = append(b.samples, s)
	return true
}

func (b *SampleBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *SampleBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Snapshot returns a copy of the samples recorded so far.
func (b *SampleBuffer) Snapshot() []common.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]common.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}
