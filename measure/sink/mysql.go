package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

// OutcomeRow is one test outcome. Document holds the full encoded outcome.
type OutcomeRow struct {
	DocumentKey   string `gorm:"primaryKey;size:512"`
	SessionID     string `gorm:"size:64"`
	InstanceID    string `gorm:"size:191;index"`
	VariantID     string `gorm:"size:191;index"`
	TestName      string `gorm:"size:512"`
	Status        string `gorm:"size:16"`
	FailureReason string `gorm:"type:text"`
	OKRepetitions int
	Repetitions   int
	StartedAt     time.Time
	FinishedAt    time.Time
	Document      []byte `gorm:"type:longblob"`
}

// MetricRow is one aggregated metric. Value is NULL when unavailable.
type MetricRow struct {
	DocumentKey string `gorm:"primaryKey;size:512"`
	Name        string `gorm:"primaryKey;size:128"`
	Value       *float64
	Unit        string `gorm:"size:32"`
	Partial     bool
	StdDev      *float64
	Count       int
}

func (OutcomeRow) TableName() string { return "greenbench_outcomes" }
func (MetricRow) TableName() string  { return "greenbench_metrics" }

type MySQLSink struct {
	db *gorm.DB
}

func NewMySQLSink(cfg MySQLConfig) (*MySQLSink, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "mysql sink: open")
	}
	return NewMySQLSinkWithDB(db)
}

func NewMySQLSinkWithDB(db *gorm.DB) (*MySQLSink, error) {
	if err := db.AutoMigrate(&OutcomeRow{}, &MetricRow{}); err != nil {
		return nil, errors.Wrap(err, "mysql sink: migrate")
	}
	return &MySQLSink{db: db}, nil
}

// Rows flattens an outcome into its table rows.
func Rows(o *common.Outcome) (OutcomeRow, []MetricRow, error) {
	doc, err := Encode(o)
	if err != nil {
		return OutcomeRow{}, nil, err
	}
	key := DocumentKey(o.Key)
	row := OutcomeRow{
		DocumentKey:   key,
		SessionID:     o.SessionID,
		InstanceID:    o.Key.InstanceID,
		VariantID:     o.Key.VariantID,
		TestName:      o.Key.TestName,
		Status:        string(o.Status),
		FailureReason: o.FailureReason,
		OKRepetitions: o.OKRepetitions,
		Repetitions:   len(o.Repetitions),
		StartedAt:     o.StartedAt,
		FinishedAt:    o.FinishedAt,
		Document:      doc,
	}
	metrics := make([]MetricRow, 0, len(o.Metrics))
	for _, name := range o.Metrics.Names() {
		m := o.Metrics[name]
		mr := MetricRow{DocumentKey: key, Name: name, Unit: m.Unit, Partial: m.Partial}
		if m.Available {
			v := m.Value
			mr.Value = &v
		}
		if st, ok := o.Stats[name]; ok {
			sd := st.StdDev
			mr.StdDev = &sd
			mr.Count = st.Count
		}
		metrics = append(metrics, mr)
	}
	return row, metrics, nil
}

func (m *MySQLSink) Persist(ctx context.Context, o *common.Outcome) error {
	row, metrics, err := Rows(o)
	if err != nil {
		return errors.Wrap(err, "mysql sink: encode")
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("document_key = ?", row.DocumentKey).Delete(&MetricRow{}).Error; err != nil {
			return err
		}
		if len(metrics) == 0 {
			return nil
		}
		return tx.Create(&metrics).Error
	})
	return errors.Wrapf(err, "mysql sink: persist %s", row.DocumentKey)
}

func (m *MySQLSink) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
