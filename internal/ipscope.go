// Package ipscope defines domain types and interfaces for the ipscope lookup client.
// This package has no project imports -- it is the dependency root.
package ipscope

import (
	"context"
	"encoding/json"
	"time"
)

// Value is a decoded-on-demand response payload. Cached values keep the exact
// upstream JSON so nested, loosely-typed fields survive a cache round trip.
type Value = json.RawMessage

// --- Cache ---

// Cache stores lookup responses under normalized keys.
// Implementations never fail: capacity pressure is resolved by eviction.
type Cache interface {
	// Has reports whether an unexpired entry exists for key.
	Has(ctx context.Context, key string) bool
	// Get returns the cached value. ok is false when the key is unknown or expired.
	Get(ctx context.Context, key string) (val Value, ok bool)
	// Set inserts or overwrites the value for key.
	Set(ctx context.Context, key string, val Value)
	// Delete removes a cached value.
	Delete(ctx context.Context, key string)
	// Purge removes all cached values.
	Purge(ctx context.Context)
	// Len returns the number of stored entries, expired ones included.
	Len() int
}

// CacheKeyVersion is appended to every cache key so a change in the cached
// payload format invalidates old entries without a manual purge.
const CacheKeyVersion = "1"

// CacheKey returns the versioned cache key for a lookup identifier.
func CacheKey(key string) string {
	return key + "_v" + CacheKeyVersion
}

// --- Upstream ---

// Fetcher resolves many identifiers in a single remote call.
type Fetcher interface {
	// FetchBatch returns values for the keys the upstream could resolve.
	// filter is passed through to the remote endpoint.
	FetchBatch(ctx context.Context, keys []string, filter bool) (map[string]Value, error)
}

// Upstream is the remote metadata service used by the lookup path.
type Upstream interface {
	Fetcher
	// Lookup fetches metadata for a single identifier. An empty ip
	// resolves the caller's own address.
	Lookup(ctx context.Context, ip string) (Value, error)
	// MapReport uploads addresses for map rendering and returns the report URL.
	MapReport(ctx context.Context, ips []string) (string, error)
}

// --- Batch ---

// Batch size limits shared by the dispatcher, server and CLI.
const (
	MaxBatchSize        = 1000
	DefaultBatchTimeout = 5 * time.Second
)

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
