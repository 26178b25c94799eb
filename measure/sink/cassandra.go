package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

type CassandraConfig struct {
	Hosts          []string      `yaml:"hosts"`
	Keyspace       string        `yaml:"keyspace"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	CreateKeyspace bool          `yaml:"create_keyspace"`
	Timeout        time.Duration `yaml:"timeout"`
}

// CassandraSink keeps one row per test keyed by (instance, variant, test).
type CassandraSink struct {
	session *gocql.Session
}

func clusterConfig(cfg CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = gocql.LocalOne
	cluster.ProtoVersion = 4
	if cfg.Timeout > 0 {
		cluster.ConnectTimeout = cfg.Timeout
		cluster.Timeout = cfg.Timeout
	}
	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster
}

func NewCassandraSink(cfg CassandraConfig) (*CassandraSink, error) {
	if len(cfg.Hosts) == 0 || cfg.Keyspace == "" {
		return nil, errors.New("cassandra sink: hosts and keyspace are required")
	}
	cluster := clusterConfig(cfg)
	if cfg.CreateKeyspace {
		if err := createKeyspace(cluster, cfg.Keyspace); err != nil {
			return nil, err
		}
	}
	cluster.Keyspace = cfg.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "cassandra sink: connect %v", cfg.Hosts)
	}
	if err := session.Query(createOutcomesTable).Exec(); err != nil {
		session.Close()
		return nil, errors.Wrap(err, "cassandra sink: create table")
	}
	return &CassandraSink{session: session}, nil
}

const createOutcomesTable = `CREATE TABLE IF NOT EXISTS outcomes (
	instance_id text, variant_id text, test_name text,
	session_id text, status text, failure_reason text,
	metrics map<text,double>, unavailable set<text>,
	document blob, finished_at timestamp,
	PRIMARY KEY ((instance_id), variant_id, test_name))`

func createKeyspace(cluster *gocql.ClusterConfig, keyspace string) error {
	session, err := cluster.CreateSession()
	if err != nil {
		return errors.Wrap(err, "cassandra sink: session for keyspace creation")
	}
	defer session.Close()
	q := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 1}", keyspace)
	return errors.Wrap(session.Query(q).Exec(), "cassandra sink: create keyspace")
}

// splitMetrics separates available values from unavailable names; the
// metrics map cannot hold nulls.
func splitMetrics(set common.MetricSet) (map[string]float64, []string) {
	values := make(map[string]float64, len(set))
	var missing []string
	for _, name := range set.Names() {
		if v, ok := set.Value(name); ok {
			values[name] = v
		} else {
			missing = append(missing, name)
		}
	}
	return values, missing
}

func (c *CassandraSink) Persist(ctx context.Context, o *common.Outcome) error {
	doc, err := Encode(o)
	if err != nil {
		return errors.Wrap(err, "cassandra sink: encode")
	}
	values, missing := splitMetrics(o.Metrics)
	err = c.session.Query(`INSERT INTO outcomes (instance_id, variant_id, test_name, session_id, status, failure_reason, metrics, unavailable, document, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Key.InstanceID, o.Key.VariantID, o.Key.TestName, o.SessionID, string(o.Status), o.FailureReason,
		values, missing, doc, o.FinishedAt).WithContext(ctx).Exec()
	return errors.Wrapf(err, "cassandra sink: insert %s", DocumentKey(o.Key))
}

func (c *CassandraSink) Close() error {
	c.session.Close()
	return nil
}
