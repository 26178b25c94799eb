package metrics

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"
)

const maxStringLen = 255

const (
	mtCounter = uint8(1)
	mtTimer   = uint8(2)
	mtGauge   = uint8(3)
)

type tag struct {
	key   string
	value string
}

type metricItem struct {
	mt    uint8
	name  string
	value float64
	tags  []tag
}

func newMetricItem(mt uint8, name string, value float64, tags map[string]string) metricItem {
	item := metricItem{mt: mt, name: name, value: value}
	if len(tags) == 0 {
		return item
	}
	item.tags = make([]tag, 0, len(tags))
	for k, v := range tags {
		item.tags = append(item.tags, tag{key: k, value: v})
	}
	sort.Slice(item.tags, func(i, j int) bool { return item.tags[i].key < item.tags[j].key })
	return item
}

// encodeItem writes one item as
//
//	type(1) | len(1) name | value(8, little endian float64) | ntags(1) | (len(1) key len(1) value)*
//
// Datagrams are concatenations of items.
func encodeItem(buf *bytes.Buffer, prefix string, item metricItem) error {
	buf.WriteByte(item.mt)
	if err := writeName(buf, prefix, item.name); err != nil {
		return err
	}
	writeFloat64(buf, item.value)
	return writeTags(buf, item.tags)
}

func writeName(buf *bytes.Buffer, prefix string, name string) error {
	if prefix == "" {
		return writeString(buf, name)
	}
	length := len(prefix) + len(name) + 1
	if length > maxStringLen {
		return errors.Errorf("metric name %s.%s is %d bytes, limit %d", prefix, name, length, maxStringLen)
	}
	buf.WriteByte(uint8(length))
	buf.WriteString(prefix)
	buf.WriteByte('.')
	buf.WriteString(name)
	return nil
}

func writeTags(buf *bytes.Buffer, tags []tag) error {
	if len(tags) > maxStringLen {
		return errors.Errorf("%d tags, limit %d", len(tags), maxStringLen)
	}
	buf.WriteByte(uint8(len(tags)))
	for _, tg := range tags {
		if err := writeString(buf, tg.key); err != nil {
			return errors.Wrap(err, "tag key")
		}
		if err := writeString(buf, tg.value); err != nil {
			return errors.Wrapf(err, "tag %s", tg.key)
		}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return errors.Errorf("string is %d bytes, limit %d", len(s), maxStringLen)
	}
	buf.WriteByte(uint8(len(s)))
	buf.WriteString(s)
	return nil
}

func writeFloat64(buf *bytes.Buffer, value float64) {
	var vv [8]byte
	binary.LittleEndian.PutUint64(vv[:], math.Float64bits(value))
	buf.Write(vv[:])
}
