package metrics

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var ErrClientClosed = errors.New("metrics client closed")

// MetricsClient batches counters, timers and gauges and ships them as
// datagrams to a local agent socket. Emitting never blocks: when the send
// queue is full the batch is dropped and counted.
type MetricsClient struct {
	monitor *monitor
	config  Config
	pool    *itemPool

	dataBuf chan *[]metricItem

	batchBuf  *[]metricItem
	batchLock sync.Mutex
	// sendLock guards dataBuf against close while an emitter hands off a batch.
	sendLock sync.RWMutex
	closed   bool

	flusherStop chan struct{}
	flusherWg   sync.WaitGroup
	senderWg    sync.WaitGroup
	closeOnce   sync.Once
}

func NewMetricClient(options ...ClientOption) *MetricsClient {
	config := Config{
		address:       defaultAddress,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
	if env := os.Getenv(AddressEnv); env != "" {
		config.address = env
	}
	for _, opt := range options {
		opt(&config)
	}
	pool := newItemPool(config.batchSize)
	return &MetricsClient{
		monitor:     newMonitor(config.logger, config.flushInterval),
		config:      config,
		pool:        pool,
		dataBuf:     make(chan *[]metricItem, queueSize),
		batchBuf:    pool.get(),
		flusherStop: make(chan struct{}),
	}
}

func (mc *MetricsClient) Address() string {
	return mc.config.address
}

func (mc *MetricsClient) Start() {
	mc.monitor.start()

	mc.flusherWg.Add(1)
	go func() {
		defer mc.flusherWg.Done()
		mc.batchFlushLoop()
	}()
	for i := 0; i < senderWorkers; i++ {
		mc.senderWg.Add(1)
		go func() {
			defer mc.senderWg.Done()
			mc.sendLoop()
		}()
	}
}

// Close flushes what is buffered and waits for the senders to drain.
func (mc *MetricsClient) Close() error {
	mc.closeOnce.Do(func() {
		mc.batchLock.Lock()
		mc.closed = true
		mc.batchLock.Unlock()

		close(mc.flusherStop)
		mc.flusherWg.Wait()

		mc.sendLock.Lock()
		close(mc.dataBuf)
		mc.sendLock.Unlock()
		mc.senderWg.Wait()

		mc.monitor.stop()
	})
	return nil
}

func (mc *MetricsClient) EmitCounter(name string, value float64, tags map[string]string) error {
	return mc.emitMetric(mtCounter, name, value, tags)
}

func (mc *MetricsClient) EmitTimer(name string, value float64, tags map[string]string) error {
	return mc.emitMetric(mtTimer, name, value, tags)
}

func (mc *MetricsClient) EmitGauge(name string, value float64, tags map[string]string) error {
	return mc.emitMetric(mtGauge, name, value, tags)
}

func (mc *MetricsClient) emitMetric(mt uint8, name string, value float64, tags map[string]string) error {
	item := newMetricItem(mt, name, value, tags)

	var full *[]metricItem
	mc.batchLock.Lock()
	if mc.closed {
		mc.batchLock.Unlock()
		return ErrClientClosed
	}
	*mc.batchBuf = append(*mc.batchBuf, item)
	if len(*mc.batchBuf) >= mc.config.batchSize {
		full = mc.batchBuf
		mc.batchBuf = mc.pool.get()
	}
	mc.batchLock.Unlock()

	if full != nil {
		mc.sendLock.RLock()
		select {
		case mc.dataBuf <- full:
		default:
			atomic.AddInt64(&mc.monitor.queueFull, 1)
			mc.pool.put(full)
		}
		mc.sendLock.RUnlock()
	}
	return nil
}

func (mc *MetricsClient) batchFlushLoop() {
	ticker := time.NewTicker(mc.config.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.batchFlush()
		case <-mc.flusherStop:
			mc.batchFlush()
			return
		}
	}
}

func (mc *MetricsClient) batchFlush() {
	var batch *[]metricItem
	mc.batchLock.Lock()
	if len(*mc.batchBuf) != 0 {
		batch = mc.batchBuf
		mc.batchBuf = mc.pool.get()
	}
	mc.batchLock.Unlock()
	if batch != nil {
		mc.dataBuf <- batch
	}
}

// sendLoop packs items into datagrams of at most maxPacketSize bytes. An
// item larger than that goes out alone.
func (mc *MetricsClient) sendLoop() {
	s := newSender(mc.config.address, mc.monitor)
	defer s.close()

	packet := make([]byte, 0, maxPacketSize)
	itemBuf := bytes.NewBuffer(nil)
	for items := range mc.dataBuf {
		for _, item := range *items {
			itemBuf.Reset()
			if err := encodeItem(itemBuf, mc.config.prefix, item); err != nil {
				atomic.AddInt64(&mc.monitor.formatError, 1)
				mc.monitor.logger.Debug("[MetricsClient.sendLoop] format fail. name=%s err=%v", item.name, err)
				continue
			}
			data := itemBuf.Bytes()
			switch {
			case len(data) > maxPacketSize:
				s.send(data)
			case len(packet)+len(data) > maxPacketSize:
				s.send(packet)
				packet = append(packet[:0], data...)
			default:
				packet = append(packet, data...)
			}
		}
		mc.pool.put(items)
		s.send(packet)
		packet = packet[:0]
	}
}
