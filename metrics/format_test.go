package metrics

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decoded struct {
	mt    uint8
	name  string
	value float64
	tags  map[string]string
}

func decodeString(t *testing.T, data []byte) (string, []byte) {
	require.NotEmpty(t, data)
	n := int(data[0])
	require.GreaterOrEqual(t, len(data), 1+n)
	return string(data[1 : 1+n]), data[1+n:]
}

// decodePacket parses a datagram back into its items.
func decodePacket(t *testing.T, data []byte) []decoded {
	var out []decoded
	for len(data) > 0 {
		var d decoded
		d.mt = data[0]
		d.name, data = decodeString(t, data[1:])
		require.GreaterOrEqual(t, len(data), 9)
		d.value = math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
		ntags := int(data[8])
		data = data[9:]
		d.tags = map[string]string{}
		for i := 0; i < ntags; i++ {
			var k, v string
			k, data = decodeString(t, data)
			v, data = decodeString(t, data)
			d.tags[k] = v
		}
		out = append(out, d)
	}
	return out
}

func TestEncodeItem(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	item := newMetricItem(mtTimer, "repetition.duration_ms", 1234.5, map[string]string{"test": "t1", "status": "ok"})
	require.NoError(t, encodeItem(buf, "greenbench", item))

	items := decodePacket(t, buf.Bytes())
	require.Len(t, items, 1)
	assert.Equal(t, mtTimer, items[0].mt)
	assert.Equal(t, "greenbench.repetition.duration_ms", items[0].name)
	assert.Equal(t, 1234.5, items[0].value)
	assert.Equal(t, map[string]string{"test": "t1", "status": "ok"}, items[0].tags)
}

func TestNewMetricItemSortsTags(t *testing.T) {
	item := newMetricItem(mtGauge, "g", 1, map[string]string{"b": "2", "a": "1", "c": "3"})
	require.Len(t, item.tags, 3)
	assert.Equal(t, "a", item.tags[0].key)
	assert.Equal(t, "b", item.tags[1].key)
	assert.Equal(t, "c", item.tags[2].key)
}

func TestEncodeItemLimits(t *testing.T) {
	long := strings.Repeat("x", 250)

	err := encodeItem(bytes.NewBuffer(nil), "prefix", newMetricItem(mtCounter, long, 1, nil))
	assert.Error(t, err)

	err = encodeItem(bytes.NewBuffer(nil), "", newMetricItem(mtCounter, "ok", 1, map[string]string{"k": strings.Repeat("v", 256)}))
	assert.Error(t, err)

	assert.NoError(t, encodeItem(bytes.NewBuffer(nil), "", newMetricItem(mtCounter, long, 1, nil)))
}
