package sink

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func TestMySQLRows(t *testing.T) {
	o := testOutcome("test_a", common.OutcomeMeasured)
	row, metrics, err := Rows(o)
	require.NoError(t, err)
	assert.Equal(t, "django__django-11099/gpt-4o/test_a", row.DocumentKey)
	assert.Equal(t, "measured", row.Status)
	require.Len(t, metrics, 2)

	byName := map[string]MetricRow{}
	for _, m := range metrics {
		byName[m.Name] = m
	}
	assert.Nil(t, byName["gpu_energy_joules"].Value, "unavailable stored as NULL")
	require.NotNil(t, byName[common.TotalEnergyName].Value)
	assert.Equal(t, 1234.5, *byName[common.TotalEnergyName].Value)
	assert.Equal(t, 3, byName[common.TotalEnergyName].Count)
}

func TestMongoDocument(t *testing.T) {
	doc, err := Document(testOutcome("test_a", common.OutcomeMeasured))
	require.NoError(t, err)
	assert.Equal(t, "_id", doc[0].Key)
	assert.Equal(t, "django__django-11099/gpt-4o/test_a", doc[0].Value)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	v := bson.Raw(raw).Lookup("metrics", "gpu_energy_joules", "value")
	assert.Equal(t, bson.TypeNull, v.Type)
}

func TestRedisKeys(t *testing.T) {
	s := NewRedisSinkWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "", 0)
	defer s.Close()
	k := common.SessionKey{InstanceID: "i", VariantID: "v", TestName: "t"}
	assert.Equal(t, "greenbench:outcome:i/v/t", s.OutcomeKey(k))
	assert.Equal(t, "greenbench:status", s.StatusKey())
}

func TestCassandraSplitMetrics(t *testing.T) {
	values, missing := splitMetrics(testOutcome("t", common.OutcomeMeasured).Metrics)
	assert.Equal(t, map[string]float64{common.TotalEnergyName: 1234.5}, values)
	assert.Equal(t, []string{"gpu_energy_joules"}, missing)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(context.Background(), Config{Backends: []string{BackendMemory}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemorySink{}, s)

	s, err = New(context.Background(), Config{Backends: []string{BackendMemory, BackendFile}, Dir: t.TempDir(), Async: true}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AsyncSink{}, s)
	require.NoError(t, s.Close())

	_, err = New(context.Background(), Config{Backends: []string{BackendMemory, "carrier-pigeon"}}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), Config{Backends: []string{BackendRedis}}, nil)
	assert.Error(t, err)
}
