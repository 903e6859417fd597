/*
store.go - Persistence Port consumed by the Ledger Store

PURPOSE:
  Defines the interface between the in-memory ledger and a durable
  document store. Records are JSON documents grouped by collection.
  The ledger treats the store as eventually consistent with memory.

OPERATIONS:
  GetAll:      all documents of a collection, insertion order
  Add:         insert one document, returns its id
  Update:      merge top-level fields into an existing document
               (a nil value removes the field)
  Delete:      remove one document (missing ids are not an error)
  Clear:       remove every document of a collection
  BulkReplace: clear then insert, atomically where the engine allows
  DeleteWhere: remove documents whose string field equals value
               (cascading transaction delete on account delete)

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite document table
  - ledger/store/memory.go: In-memory for tests and dev
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names one entity type in the backing store.
type Collection string

const (
	CollAccounts       Collection = "accounts"
	CollTransactions   Collection = "transactions"
	CollCategories     Collection = "categories"
	CollEvents         Collection = "events"
	CollEventLogs      Collection = "eventLogs"
	CollEventPlans     Collection = "eventPlans"
	CollInvestmentLogs Collection = "investmentLogs"
	CollMandates       Collection = "mandates"
	CollAuditTrails    Collection = "auditTrails"
	CollSettings       Collection = "settings"
)

// Collections lists every collection in import order.
var Collections = []Collection{
	CollAccounts, CollTransactions, CollCategories, CollEvents, CollEventLogs,
	CollEventPlans, CollInvestmentLogs, CollMandates, CollAuditTrails, CollSettings,
}

// Document is one stored record.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Store is the Persistence Port.
type Store interface {
	GetAll(ctx context.Context, c Collection) ([]Document, error)
	Add(ctx context.Context, c Collection, doc Document) (string, error)
	Update(ctx context.Context, c Collection, id string, fields map[string]any) error
	Delete(ctx context.Context, c Collection, id string) error
	Clear(ctx context.Context, c Collection) error
	BulkReplace(ctx context.Context, c Collection, docs []Document) error
	DeleteWhere(ctx context.Context, c Collection, field, value string) (int, error)
}

// NewDocument encodes v as a document with the given id.
func NewDocument(id string, v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	return Document{ID: id, Body: body}, nil
}

// Fields flattens v into top-level JSON fields for Store.Update.
func Fields(v any) (map[string]any, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func encodeAll[T any](items []T, id func(T) string) ([]Document, error) {
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		d, err := NewDocument(id(item), item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}
