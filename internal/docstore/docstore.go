// Package docstore provides a small document-collection abstraction: named
// collections of schemaless documents with field-equality queries, ordered
// results, and atomic multi-document batches. Two implementations exist, a
// SQLite-backed store and an in-memory store.
package docstore

import (
	"context"
	"errors"
)

// Collection names used by the application.
const (
	CollUsers     = "users"
	CollChecklist = "checklist"
	CollHistory   = "history"
)

// ErrNotFound is returned by Get, and by Update when the target document does
// not exist. Delete on a missing document is a silent no-op.
var ErrNotFound = errors.New("document not found")

// Document is a stored document: a store-assigned ID plus its fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter narrows a query to documents whose field equals the given value.
type Filter struct {
	Field string
	Value any
}

// Order sorts query results by a single field.
type Order struct {
	Field string
	Desc  bool
}

// Store is the document store contract the engine is written against.
type Store interface {
	// Query returns all documents in the collection matching every filter,
	// sorted per order (nil order means unspecified).
	Query(ctx context.Context, collection string, filters []Filter, order *Order) ([]Document, error)

	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Add stores a new document and returns its generated ID.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges the given fields into an existing document. Returns
	// ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// Batch returns an accumulator of updates and deletes that commits as a
	// single all-or-nothing operation.
	Batch() Batch
}

// Batch accumulates writes for an atomic commit. A batch is single-use.
type Batch interface {
	Update(collection, id string, fields map[string]any)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}
