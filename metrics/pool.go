package metrics

import "sync"

type itemPool struct {
	size int
	pool sync.Pool
}

func newItemPool(size int) *itemPool {
	p := &itemPool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]metricItem, 0, p.size)
		return &buf
	}
	return p
}

func (p *itemPool) get() *[]metricItem {
	return p.pool.Get().(*[]metricItem)
}

func (p *itemPool) put(items *[]metricItem) {
	*items = (*items)[:0]
	p.pool.Put(items)
}
