// Package memory implements the store interfaces with in-process maps.
// Documents round-trip through bson so filters and decoding behave like the
// real driver. Used by tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/otakudescriptor/api/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store with in-memory collections
type Store struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	unique      map[string][]uniqueIndex
}

type uniqueIndex struct {
	field  string
	sparse bool
}

// New creates an empty store with the same unique indexes the MongoDB
// deployment carries
func New() *Store {
	return &Store{
		collections: make(map[string][]bson.M),
		unique: map[string][]uniqueIndex{
			store.Accounts: {
				{field: "email", sparse: true},
				{field: "api_key"},
			},
			store.PendingRegistrations: {
				{field: "email"},
				{field: "verification_token"},
			},
			store.Payments: {
				{field: "paypal_order_id"},
			},
		},
	}
}

// Collection returns a handle for the named collection
func (s *Store) Collection(name string) store.Collection {
	return &collection{store: s, name: name}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close(ctx context.Context) error {
	return nil
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) FindOne(ctx context.Context, filter store.Filter, out interface{}) error {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	for _, doc := range c.store.collections[c.name] {
		if matches(doc, filter) {
			return decode(doc, out)
		}
	}
	return store.ErrNoDocuments
}

func (c *collection) InsertOne(ctx context.Context, doc interface{}) (string, error) {
	m, err := toDoc(doc)
	if err != nil {
		return "", err
	}

	id, ok := m["_id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		m["_id"] = id
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	for _, idx := range c.store.unique[c.name] {
		val, present := m[idx.field]
		if !present || val == nil {
			continue
		}
		if s, isStr := val.(string); isStr && s == "" && idx.sparse {
			continue
		}
		for _, existing := range c.store.collections[c.name] {
			if eq(existing[idx.field], val) {
				return "", store.ErrDuplicateKey
			}
		}
	}

	c.store.collections[c.name] = append(c.store.collections[c.name], m)
	return id, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	for _, doc := range c.store.collections[c.name] {
		if matches(doc, filter) {
			for _, f := range update.Fields() {
				doc[f.Field] = normalize(f.Value)
			}
			return nil
		}
	}
	return store.ErrNoDocuments
}

func (c *collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.name]
	for i, doc := range docs {
		if matches(doc, filter) {
			c.store.collections[c.name] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var n int64
	for _, doc := range c.store.collections[c.name] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// CountAll reports the total number of documents in a collection. Test helper.
func (s *Store) CountAll(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[name])
}

func toDoc(doc interface{}) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memory: marshal document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("memory: unmarshal document: %w", err)
	}
	return m, nil
}

func decode(doc bson.M, out interface{}) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory: marshal document: %w", err)
	}
	return bson.Unmarshal(data, out)
}

func matches(doc bson.M, filter store.Filter) bool {
	for _, cond := range filter {
		val, present := doc[cond.Field]
		if !present {
			return false
		}
		cmp, ok := compare(val, cond.Value)
		switch cond.Op {
		case store.OpGt:
			if !ok || cmp <= 0 {
				return false
			}
		case store.OpLt:
			if !ok || cmp >= 0 {
				return false
			}
		default:
			if !eq(val, cond.Value) {
				return false
			}
		}
	}
	return true
}

func eq(a, b interface{}) bool {
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return normalize(a) == normalize(b)
}

// compare orders two values when both normalize to numbers. Times are
// compared at millisecond precision, matching BSON datetime resolution.
func compare(a, b interface{}) (int, bool) {
	af, aok := asFloat(normalize(a))
	bf, bok := asFloat(normalize(b))
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case bson.DateTime:
		return int64(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}
