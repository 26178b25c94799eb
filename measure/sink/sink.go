package sink

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// Sink stores finished outcomes, one per (instance, variant, test).
// Persisting the same key twice replaces the earlier outcome.
type Sink interface {
	Persist(ctx context.Context, o *common.Outcome) error
	Close() error
}

// Encode is the wire form shared by every backend.
func Encode(o *common.Outcome) ([]byte, error) {
	return json.Marshal(o)
}

func Decode(data []byte) (*common.Outcome, error) {
	o := &common.Outcome{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, err
	}
	return o, nil
}

func DocumentKey(k common.SessionKey) string {
	return k.String()
}

// MemorySink keeps outcomes in memory. Dry runs and tests use it.
type MemorySink struct {
	mu       sync.Mutex
	outcomes map[string]*common.Outcome
	order    []string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{outcomes: make(map[string]*common.Outcome)}
}

func (m *MemorySink) Persist(ctx context.Context, o *common.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := DocumentKey(o.Key)
	if _, ok := m.outcomes[k]; !ok {
		m.order = append(m.order, k)
	}
	m.outcomes[k] = o
	return nil
}

func (m *MemorySink) Get(k common.SessionKey) (*common.Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[DocumentKey(k)]
	return o, ok
}

// Outcomes returns stored outcomes in first-persisted order.
func (m *MemorySink) Outcomes() []*common.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*common.Outcome, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.outcomes[k])
	}
	return out
}

func (m *MemorySink) Close() error {
	return nil
}
