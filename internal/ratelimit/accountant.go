// Package ratelimit counts recent billable activity per identity inside a
// sliding window. It only reads and appends events; enforcement is the
// caller's concern.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/store"
)

// DefaultWindow is the trailing window used for hourly quota accounting.
const DefaultWindow = time.Hour

// SearchEvent is one billable action by an authenticated account
type SearchEvent struct {
	ID        string    `bson:"_id"`
	APIKey    string    `bson:"api_key"`
	Timestamp time.Time `bson:"timestamp"`
}

// AnonymousSearchEvent is one billable action by an anonymous session
type AnonymousSearchEvent struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Timestamp time.Time `bson:"timestamp"`
}

// Snapshot is the quota view returned to clients
type Snapshot struct {
	HourlySearches int64 `json:"hourly_searches"`
	HourlyLimit    int   `json:"hourly_limit"`
	Remaining      int64 `json:"remaining"`
}

// Accountant counts and records activity events
type Accountant struct {
	store  store.Store
	limits config.LimitsConfig
	now    func() time.Time
}

// New creates an accountant with the configured per-tier caps
func New(st store.Store, limits config.LimitsConfig) *Accountant {
	return &Accountant{
		store:  st,
		limits: limits,
		now:    time.Now,
	}
}

// Limits returns the configured per-tier caps
func (a *Accountant) Limits() config.LimitsConfig {
	return a.limits
}

// CountAuthenticated counts events for an API key with timestamps inside
// the trailing window
func (a *Accountant) CountAuthenticated(ctx context.Context, apiKey string, window time.Duration) (int64, error) {
	cutoff := a.now().Add(-window)
	n, err := a.store.Collection(store.Searches).
		Count(ctx, store.Where("api_key", apiKey).Gt("timestamp", cutoff))
	if err != nil {
		return 0, errors.Internal("Failed to count recent searches", err)
	}
	return n, nil
}

// CountAnonymous counts events for a session fingerprint with timestamps
// inside the trailing window
func (a *Accountant) CountAnonymous(ctx context.Context, sessionID string, window time.Duration) (int64, error) {
	cutoff := a.now().Add(-window)
	n, err := a.store.Collection(store.AnonymousSearches).
		Count(ctx, store.Where("session_id", sessionID).Gt("timestamp", cutoff))
	if err != nil {
		return 0, errors.Internal("Failed to count recent searches", err)
	}
	return n, nil
}

// RecordSearch appends one activity event for an authenticated account
func (a *Accountant) RecordSearch(ctx context.Context, apiKey string) error {
	_, err := a.store.Collection(store.Searches).InsertOne(ctx, SearchEvent{
		ID:        uuid.NewString(),
		APIKey:    apiKey,
		Timestamp: a.now(),
	})
	return err
}

// RecordAnonymousSearch appends one activity event for an anonymous session
func (a *Accountant) RecordAnonymousSearch(ctx context.Context, sessionID string) error {
	_, err := a.store.Collection(store.AnonymousSearches).InsertOne(ctx, AnonymousSearchEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Timestamp: a.now(),
	})
	return err
}

// SnapshotFor derives the remaining quota from a count and a cap
func SnapshotFor(count int64, limit int) Snapshot {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		HourlySearches: count,
		HourlyLimit:    limit,
		Remaining:      remaining,
	}
}

// Fingerprint derives a stable anonymous session identifier from the client
// network address and user agent. Same inputs always map to the same value.
func Fingerprint(remoteAddr, userAgent string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", host, userAgent)))
	return hex.EncodeToString(sum[:])
}
