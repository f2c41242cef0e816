// Package mongo implements the store interfaces on top of the official
// MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by a MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes a client connection and verifies it with a ping
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Collection returns a handle for the named collection
func (s *Store) Collection(name string) store.Collection {
	return &collection{coll: s.db.Collection(name)}
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes that guard the read-then-write
// paths against concurrent duplicates: one account per email, unique API
// keys, one pending registration per email, and one payment per order.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		store.Accounts: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{Key: "api_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		store.PendingRegistrations: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "verification_token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		store.Payments: {
			{
				Keys:    bson.D{{Key: "paypal_order_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		store.Searches: {
			{Keys: bson.D{{Key: "api_key", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		store.AnonymousSearches: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create %s indexes: %w", name, err)
		}
	}
	return nil
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) FindOne(ctx context.Context, filter store.Filter, out interface{}) error {
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNoDocuments
	}
	return err
}

func (c *collection) InsertOne(ctx context.Context, doc interface{}) (string, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", store.ErrDuplicateKey
		}
		return "", err
	}
	if id, ok := res.InsertedID.(string); ok {
		return id, nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}

func (c *collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	set := bson.D{}
	for _, f := range update.Fields() {
		set = append(set, bson.E{Key: f.Field, Value: f.Value})
	}

	res, err := c.coll.UpdateOne(ctx, toBSON(filter), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateKey
		}
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNoDocuments
	}
	return nil
}

func (c *collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	_, err := c.coll.DeleteOne(ctx, toBSON(filter))
	return err
}

func (c *collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	return c.coll.CountDocuments(ctx, toBSON(filter))
}

// toBSON translates a typed filter into driver syntax
func toBSON(filter store.Filter) bson.D {
	out := bson.D{}
	for _, cond := range filter {
		switch cond.Op {
		case store.OpGt:
			out = append(out, bson.E{Key: cond.Field, Value: bson.D{{Key: "$gt", Value: cond.Value}}})
		case store.OpLt:
			out = append(out, bson.E{Key: cond.Field, Value: bson.D{{Key: "$lt", Value: cond.Value}}})
		default:
			out = append(out, bson.E{Key: cond.Field, Value: cond.Value})
		}
	}
	return out
}
