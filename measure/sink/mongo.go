package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MongoSink upserts one document per test, with the document key as _id.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, errors.New("mongo sink: uri and database are required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "outcomes"
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout)
		opts.SetServerSelectionTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "mongo sink: connect %s", cfg.URI)
	}
	return &MongoSink{client: client, collection: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

// Document converts an outcome to the stored BSON form. It goes through the
// JSON encoding so unavailable metrics keep their null value.
func Document(o *common.Outcome) (bson.D, error) {
	data, err := Encode(o)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, errors.Wrap(err, "mongo sink: convert document")
	}
	return append(bson.D{{Key: "_id", Value: DocumentKey(o.Key)}}, doc...), nil
}

func (m *MongoSink) Persist(ctx context.Context, o *common.Outcome) error {
	doc, err := Document(o)
	if err != nil {
		return err
	}
	_, err = m.collection.ReplaceOne(ctx, bson.M{"_id": DocumentKey(o.Key)}, doc, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "mongo sink: upsert %s", DocumentKey(o.Key))
}

func (m *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
