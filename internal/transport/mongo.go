package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the stored shape: one whole-collection JSON value per
// path, keyed by the path itself.
type mongoDocument struct {
	Path  string `bson:"_id"`
	Value string `bson:"value"`
}

// Mongo implements Transport on a single collection, using change streams
// for snapshot subscriptions. Requires a replica set (change streams are
// not available on standalone servers).
type Mongo struct {
	coll *mongo.Collection
	log  *logrus.Entry
}

// NewMongo wraps the documents collection of the given database.
func NewMongo(client *mongo.Client, database string, log *logrus.Entry) *Mongo {
	return &Mongo{
		coll: client.Database(database).Collection("documents"),
		log:  log,
	}
}

// Write upserts the whole document. Watchers observe the write through
// their change streams.
func (m *Mongo) Write(ctx context.Context, path string, value []byte) error {
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"_id": path},
		mongoDocument{Path: path, Value: string(value)},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", path, err)
	}
	return nil
}

// Subscribe reads the current value and opens a change stream scoped to
// the path.
func (m *Mongo) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"documentKey._id": path}}},
	}
	stream, err := m.coll.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	// Read the initial value after the stream is open so no write can
	// fall between the read and the first stream event.
	var initial []byte
	var doc mongoDocument
	switch err := m.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc); {
	case err == nil:
		initial = []byte(doc.Value)
	case errors.Is(err, mongo.ErrNoDocuments):
		// document not created yet
	default:
		stream.Close(ctx)
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	ch := make(chan []byte, snapshotBuffer)
	go m.pump(ctx, path, stream, ch)

	return &Subscription{Initial: initial, Updates: ch}, nil
}

func (m *Mongo) pump(ctx context.Context, path string, stream *mongo.ChangeStream, ch chan []byte) {
	defer close(ch)
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			FullDocument mongoDocument `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			m.log.WithError(err).WithField("path", path).Warn("decode change event")
			continue
		}
		pushSnapshot(ch, []byte(event.FullDocument.Value))
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		m.log.WithError(err).WithField("path", path).Warn("change stream closed")
	}
}
