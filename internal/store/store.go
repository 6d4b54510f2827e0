// Package store defines the document-store capability the quiz core
// consumes: key-path-addressable documents with point writes, partial
// field merges, keyed appends, and push-based subscription to a subtree.
// The store's collection encoding is deliberately loose (a keyed object
// of opaque push keys, or a plain array); normalization happens at the
// repository boundary, not here.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is delivered to subscribers whenever a document under their
// prefix changes. Value is the raw document at Path after the change.
type Event struct {
	Path  string
	Value json.RawMessage
}

// DocumentStore is the external real-time store boundary. Writes are
// last-write-wins; subscribers eventually see the latest value for each
// path, monotonically per subscriber, with no cross-writer ordering.
type DocumentStore interface {
	// Write fully overwrites the document at path.
	Write(ctx context.Context, path string, value any) error
	// Update merges the named fields into the document at path, leaving
	// other fields untouched.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Append inserts value under a freshly generated push key within the
	// collection at path and returns the key.
	Append(ctx context.Context, path string, value any) (string, error)
	// AppendIfAbsent inserts value under the caller-supplied key only if
	// that key is not already present, reporting whether it was inserted.
	// This is the conditional write that keeps duplicate submissions out
	// of the response log.
	AppendIfAbsent(ctx context.Context, path, key string, value any) (bool, error)
	// Read fetches the document at path; ok is false when absent.
	Read(ctx context.Context, path string) (raw json.RawMessage, ok bool, err error)
	// Subscribe registers fn for every document under prefix: once
	// immediately with the current value of each existing document, then
	// on every subsequent change. The returned cancel stops delivery.
	Subscribe(ctx context.Context, prefix string, fn func(Event)) (cancel func(), err error)
}

var pushSeq atomic.Uint64

// PushKey generates a collection key that sorts lexicographically in
// creation order: fixed-width hex millis, a process-local sequence for
// same-millisecond ties, and a random suffix for cross-process
// uniqueness. Sorting a keyed object by key therefore reproduces
// insertion order.
func PushKey(now time.Time) string {
	seq := pushSeq.Add(1) & 0xffff
	return fmt.Sprintf("%013x%04x-%s", now.UnixMilli(), seq, uuid.NewString()[:8])
}
