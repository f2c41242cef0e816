// Package store defines the document store abstraction used by the workflows.
// Filters are built from typed field/operator/value conditions so that query
// shapes are checked at compile time rather than assembled from loose maps.
package store

import (
	"context"
	"errors"
)

// Collection names used by the service.
const (
	Accounts             = "accounts"
	PendingRegistrations = "pending_registrations"
	Payments             = "payments"
	Searches             = "searches"
	AnonymousSearches    = "anonymous_searches"
)

var (
	// ErrNoDocuments is returned when a lookup matches no document
	ErrNoDocuments = errors.New("store: no documents in result")
	// ErrDuplicateKey is returned when an insert violates a unique index
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Op is a filter comparison operator
type Op string

const (
	OpEq Op = "eq"
	OpGt Op = "gt"
	OpLt Op = "lt"
)

// Cond is a single field comparison
type Cond struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter is a conjunction of field conditions
type Filter []Cond

// Where starts a filter with an equality condition
func Where(field string, value interface{}) Filter {
	return Filter{{Field: field, Op: OpEq, Value: value}}
}

// Eq appends an equality condition
func (f Filter) Eq(field string, value interface{}) Filter {
	return append(f, Cond{Field: field, Op: OpEq, Value: value})
}

// Gt appends a greater-than condition
func (f Filter) Gt(field string, value interface{}) Filter {
	return append(f, Cond{Field: field, Op: OpGt, Value: value})
}

// Lt appends a less-than condition
func (f Filter) Lt(field string, value interface{}) Filter {
	return append(f, Cond{Field: field, Op: OpLt, Value: value})
}

// Update is a $set-style patch
type Update struct {
	fields []Cond
}

// Set starts an update patch
func Set(field string, value interface{}) Update {
	return Update{fields: []Cond{{Field: field, Value: value}}}
}

// Set appends another field to the patch
func (u Update) Set(field string, value interface{}) Update {
	u.fields = append(u.fields, Cond{Field: field, Value: value})
	return u
}

// Fields returns the patched field/value pairs in insertion order
func (u Update) Fields() []Cond {
	return u.fields
}

// Collection provides access to a single document collection
type Collection interface {
	// FindOne decodes the first matching document into out. Returns
	// ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, filter Filter, out interface{}) error

	// InsertOne stores a document and returns its id. The document must
	// carry its id in a bson "_id" field. Returns ErrDuplicateKey when a
	// unique index is violated.
	InsertOne(ctx context.Context, doc interface{}) (string, error)

	// UpdateOne applies a patch to the first matching document. Returns
	// ErrNoDocuments when nothing matches.
	UpdateOne(ctx context.Context, filter Filter, update Update) error

	// DeleteOne removes the first matching document. Deleting a missing
	// document is not an error.
	DeleteOne(ctx context.Context, filter Filter) error

	// Count returns the number of matching documents.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Store provides access to named collections
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
