package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"mcq-queue-service/internal/domain"
)

const (
	DefaultCollection = "mcq_documents"
	DefaultDocument   = "default"
)

type documentRecord struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// DocumentStore keeps the queue document as the raw JSON payload of a single Mongo document.
// ReplaceOne with upsert swaps the whole record in one write.
type DocumentStore struct {
	coll *mongo.Collection
	name string
	now  func() time.Time
}

func NewDocumentStore(db *mongo.Database, collection, name string) *DocumentStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if name == "" {
		name = DefaultDocument
	}
	return &DocumentStore{coll: db.Collection(collection), name: name, now: time.Now}
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	var rec documentRecord
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: s.name}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", s.name, err)
	}
	return rec.Data, nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	rec := documentRecord{ID: s.name, Data: data, UpdatedAt: s.now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: s.name}}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace document %s: %w", s.name, err)
	}
	return nil
}

// Connect opens a client, retrying the initial ping a few times before giving up.
func Connect(ctx context.Context, uri string, attempts int, interval time.Duration) (*mongo.Client, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second))
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("connect to mongo: %w", lastErr)
}
