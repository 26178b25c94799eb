package metrics

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (*net.UnixConn, string) {
	dir, err := os.MkdirTemp("", "gbm")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "m.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, path
}

func receive(t *testing.T, conn *net.UnixConn, want int) []decoded {
	var items []decoded
	buf := make([]byte, 65536)
	for len(items) < want {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err := conn.Read(buf)
		require.NoError(t, err)
		items = append(items, decodePacket(t, buf[:n])...)
	}
	return items
}

func TestMetricsClientFlushOnClose(t *testing.T) {
	conn, path := listen(t)

	client := NewMetricClient(WithAddress(path), WithPrefix("gb"), WithFlushInterval(time.Hour))
	client.Start()
	require.NoError(t, client.EmitCounter("repetition.attempt", 1, map[string]string{"test": "t1"}))
	require.NoError(t, client.EmitTimer("repetition.duration_ms", 250, nil))
	require.NoError(t, client.EmitGauge("calibration.duration_ms", 5000, nil))
	require.NoError(t, client.Close())

	items := receive(t, conn, 3)
	require.Len(t, items, 3)
	assert.Equal(t, "gb.repetition.attempt", items[0].name)
	assert.Equal(t, mtCounter, items[0].mt)
	assert.Equal(t, "t1", items[0].tags["test"])
	assert.Equal(t, mtTimer, items[1].mt)
	assert.Equal(t, 250.0, items[1].value)
	assert.Equal(t, mtGauge, items[2].mt)
}

func TestMetricsClientFullBatchIsSentBeforeInterval(t *testing.T) {
	conn, path := listen(t)

	client := NewMetricClient(WithAddress(path), WithBatchSize(2), WithFlushInterval(time.Hour))
	client.Start()
	defer client.Close()

	require.NoError(t, client.EmitCounter("a", 1, nil))
	require.NoError(t, client.EmitCounter("b", 2, nil))

	items := receive(t, conn, 2)
	assert.Equal(t, "a", items[0].name)
	assert.Equal(t, "b", items[1].name)
}

func TestMetricsClientEmitAfterClose(t *testing.T) {
	client := NewMetricClient(WithAddress(filepath.Join(os.TempDir(), "greenbench-missing.sock")))
	client.Start()
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.EmitCounter("late", 1, nil), ErrClientClosed)
}

func TestMetricsClientAddressFromEnv(t *testing.T) {
	t.Setenv(AddressEnv, "/tmp/from-env.sock")
	assert.Equal(t, "/tmp/from-env.sock", NewMetricClient().Address())
	assert.Equal(t, "/tmp/explicit.sock", NewMetricClient(WithAddress("/tmp/explicit.sock")).Address())
}

func TestMetricsClientDialFailureIsCounted(t *testing.T) {
	client := NewMetricClient(WithAddress(filepath.Join(os.TempDir(), "greenbench-none.sock")))
	s := newSender(client.config.address, client.monitor)
	s.send([]byte{1})
	assert.EqualValues(t, 1, client.monitor.senderDialError)
}
